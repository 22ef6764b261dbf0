package perception

import "strings"

// stripMarkdownCodeFences removes markdown code fence wrapping from a string.
// Handles ```json, ```, and variations with language specifiers.
func stripMarkdownCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "```") {
		firstNewline := strings.Index(trimmed, "\n")
		if firstNewline != -1 {
			lastFence := strings.LastIndex(trimmed, "```")
			if lastFence > firstNewline {
				return strings.TrimSpace(trimmed[firstNewline+1 : lastFence])
			}
		}
	}
	return trimmed
}

// extractJSON returns the first balanced JSON object in response, or "" when
// there is none. Braces inside string literals are ignored.
func extractJSON(response string) string {
	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		c := response[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}
	return ""
}

// cleanStructuredReply normalizes a model reply to a bare JSON object when one
// can be found, otherwise it returns the trimmed reply unchanged.
func cleanStructuredReply(reply string) string {
	reply = stripMarkdownCodeFences(reply)
	if obj := extractJSON(reply); obj != "" {
		return obj
	}
	return reply
}
