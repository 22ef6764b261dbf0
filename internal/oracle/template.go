package oracle

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"relogic/internal/logging"
)

//go:embed prompts/*.txt
var embeddedPrompts embed.FS

// Placeholder is replaced by the input text when a frame is rendered.
const Placeholder = "{input}"

const (
	frameOutput   = "Now, it is your turn\n\nInput: \"" + Placeholder + "\"\nOutput: "
	frameClassify = "Now, classify this\n\nSentence: '" + Placeholder + "'\nAnswer: "
	frameRephrase = "Now, it is your turn\n\nInput: \"" + Placeholder + "\"\nRephrased: "
)

// Template is an instruction body plus the frame that carries the input.
type Template struct {
	Name  string
	Body  string
	Frame string
}

// Render produces the full prompt for input.
func (t Template) Render(input string) string {
	return strings.TrimSpace(t.Body) + "\n\n" + strings.Replace(t.Frame, Placeholder, input, 1)
}

// PromptSet maps each schema to its template.
type PromptSet map[Schema]Template

func frameFor(s Schema) string {
	switch s {
	case SchemaSentenceKind:
		return frameClassify
	case SchemaRewrite:
		return frameRephrase
	}
	return frameOutput
}

// DefaultPrompts returns the templates compiled into the binary.
func DefaultPrompts() PromptSet {
	set := make(PromptSet, len(AllSchemas))
	for _, s := range AllSchemas {
		body, err := embeddedPrompts.ReadFile("prompts/" + string(s) + ".txt")
		if err != nil {
			// Every schema ships with a prompt; a missing file is a build defect.
			panic(fmt.Sprintf("oracle: missing embedded prompt for %s: %v", s, err))
		}
		set[s] = Template{Name: string(s), Body: string(body), Frame: frameFor(s)}
	}
	return set
}

// LoadPrompts returns the default templates with bodies replaced by any
// <dir>/<schema>.txt files. An empty dir returns the defaults.
func LoadPrompts(dir string) (PromptSet, error) {
	set := DefaultPrompts()
	if dir == "" {
		return set, nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("prompt directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("prompt directory %s is not a directory", dir)
	}

	overridden := 0
	for _, s := range AllSchemas {
		data, err := os.ReadFile(filepath.Join(dir, string(s)+".txt"))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read prompt %s: %w", s, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			return nil, fmt.Errorf("prompt %s in %s is empty", s, dir)
		}
		t := set[s]
		t.Body = string(data)
		set[s] = t
		overridden++
	}
	logging.OracleDebug("Loaded prompt overrides from %s: %d/%d templates", dir, overridden, len(AllSchemas))
	return set, nil
}

// Template returns the template for s, or a bare frame when none is registered.
func (p PromptSet) Template(s Schema) Template {
	if t, ok := p[s]; ok {
		return t
	}
	return Template{Name: string(s), Frame: frameFor(s)}
}

// Bodies returns template bodies keyed by name, for trace redaction.
func (p PromptSet) Bodies() map[string]string {
	out := make(map[string]string, len(p))
	for s, t := range p {
		out[string(s)] = t.Body
	}
	return out
}
