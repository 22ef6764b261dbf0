package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// AuditEventType names an audit event. Each maps to a Mangle predicate.
type AuditEventType string

const (
	// oracle_call/5
	AuditOracleCall  AuditEventType = "oracle_call"
	AuditOracleError AuditEventType = "oracle_error"

	// decompose_fallback/3
	AuditFallback AuditEventType = "fallback"

	// decompose_done/4
	AuditDecomposed     AuditEventType = "decomposed"
	AuditDecomposeError AuditEventType = "decompose_error"

	// contract_rule/5
	AuditRuleCompiled AuditEventType = "rule_compiled"
	AuditRuleSkipped  AuditEventType = "rule_skipped"
)

// AuditEvent is one JSON line in the audit log. MangleFact carries the same
// event as a Mangle fact so the log can be loaded back into a program.
type AuditEvent struct {
	Timestamp  int64          `json:"ts"`
	EventType  AuditEventType `json:"event"`
	Category   string         `json:"cat"`
	RequestID  string         `json:"req,omitempty"`
	Target     string         `json:"target"`
	Action     string         `json:"action"`
	Success    bool           `json:"success"`
	DurationMs int64          `json:"dur_ms"`
	Error      string         `json:"error,omitempty"`
	MangleFact string         `json:"mangle"`
}

var (
	auditFile   *os.File
	auditMu     sync.Mutex
	auditLogger *AuditLogger
)

// AuditLogger writes audit events, optionally scoped to a request.
type AuditLogger struct {
	requestID string
	category  Category
}

// InitAudit opens <workspace>/.relogic/logs/audit.jsonl. It is a no-op unless
// debug mode is on.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}
	configMu.RLock()
	dir := logsDir
	configMu.RUnlock()

	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, "audit.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	auditFile = f
	auditLogger = &AuditLogger{}
	return nil
}

// CloseAudit closes the audit log file
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
	auditLogger = nil
}

// Audit returns the global audit logger
func Audit() *AuditLogger {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditLogger == nil {
		return &AuditLogger{}
	}
	return auditLogger
}

// AuditWithRequest returns an audit logger scoped to a request or batch run.
func AuditWithRequest(requestID string, category Category) *AuditLogger {
	return &AuditLogger{requestID: requestID, category: category}
}

// Log writes an audit event
func (a *AuditLogger) Log(event AuditEvent) {
	if !IsDebugMode() {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.RequestID == "" {
		event.RequestID = a.requestID
	}
	if event.Category == "" && a.category != "" {
		event.Category = string(a.category)
	}
	event.MangleFact = generateMangleFact(event)

	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile == nil {
		return
	}
	if data, err := json.Marshal(event); err == nil {
		auditFile.WriteString(string(data) + "\n")
	}
}

func generateMangleFact(e AuditEvent) string {
	switch e.EventType {
	case AuditOracleCall, AuditOracleError:
		return fmt.Sprintf("oracle_call(%d, /%s, \"%s\", %v, %d).",
			e.Timestamp, e.Action, escapeString(e.Target), e.Success, e.DurationMs)
	case AuditFallback:
		return fmt.Sprintf("decompose_fallback(%d, /%s, \"%s\").",
			e.Timestamp, e.Action, escapeString(e.Target))
	case AuditDecomposed, AuditDecomposeError:
		return fmt.Sprintf("decompose_done(%d, \"%s\", %v, %d).",
			e.Timestamp, escapeString(e.Target), e.Success, e.DurationMs)
	case AuditRuleCompiled, AuditRuleSkipped:
		return fmt.Sprintf("contract_rule(%d, \"%s\", \"%s\", \"%s\", %v).",
			e.Timestamp, e.RequestID, escapeString(e.Target), escapeString(e.Action), e.Success)
	}
	return fmt.Sprintf("audit_event(%d, /%s, \"%s\", %v).",
		e.Timestamp, e.EventType, escapeString(e.Target), e.Success)
}

func escapeString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/10)
	for _, c := range s {
		switch c {
		case '"':
			b.WriteString("\\\"")
		case '\\':
			b.WriteString("\\\\")
		case '\n':
			b.WriteString("\\n")
		case '\r':
			b.WriteString("\\r")
		case '\t':
			b.WriteString("\\t")
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// OracleCall records one oracle question and its outcome.
func (a *AuditLogger) OracleCall(schema, input string, d time.Duration, err error) {
	e := AuditEvent{
		EventType:  AuditOracleCall,
		Category:   string(CategoryOracle),
		Target:     input,
		Action:     schema,
		Success:    err == nil,
		DurationMs: d.Milliseconds(),
	}
	if err != nil {
		e.EventType = AuditOracleError
		e.Error = err.Error()
	}
	a.Log(e)
}

// Fallback records a redirect to relation extraction.
func (a *AuditLogger) Fallback(reason, text string) {
	a.Log(AuditEvent{
		EventType: AuditFallback,
		Category:  string(CategoryDecompose),
		Target:    text,
		Action:    reason,
		Success:   true,
	})
}

// Decomposed records the end of a top-level decomposition.
func (a *AuditLogger) Decomposed(text string, d time.Duration, err error) {
	e := AuditEvent{
		EventType:  AuditDecomposed,
		Category:   string(CategoryDecompose),
		Target:     text,
		Success:    err == nil,
		DurationMs: d.Milliseconds(),
	}
	if err != nil {
		e.EventType = AuditDecomposeError
		e.Error = err.Error()
	}
	a.Log(e)
}

// ContractRule records a compiled or skipped penalty rule.
func (a *AuditLogger) ContractRule(contractName, triggerCond string, err error) {
	e := AuditEvent{
		EventType: AuditRuleCompiled,
		Category:  string(CategoryContract),
		Target:    contractName,
		Action:    triggerCond,
		Success:   err == nil,
	}
	if err != nil {
		e.EventType = AuditRuleSkipped
		e.Error = err.Error()
	}
	a.Log(e)
}
