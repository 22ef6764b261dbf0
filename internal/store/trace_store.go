package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"relogic/internal/logging"
	"relogic/internal/perception"
)

// TraceStore persists oracle call traces. It implements perception.TraceStore.
type TraceStore struct {
	db *sql.DB
	mu sync.Mutex
}

var _ perception.TraceStore = (*TraceStore)(nil)

// StoreCallTrace inserts or replaces a trace.
func (ts *TraceStore) StoreCallTrace(trace *perception.CallTrace) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	created := trace.Timestamp
	if created.IsZero() {
		created = time.Now()
	}

	logging.StoreDebug("Storing call trace: id=%s schema=%s success=%v", trace.ID, trace.Schema, trace.Success)
	_, err := ts.db.Exec(`
		INSERT OR REPLACE INTO call_traces
		(id, run_id, provider, model, schema_name, prompt, response, duration_ms, success, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trace.ID, trace.RunID, trace.Provider, trace.Model, trace.Schema, trace.Prompt,
		trace.Response, trace.DurationMs, trace.Success, trace.ErrorMessage, created.UTC(),
	)
	if err != nil {
		logging.StoreError("Failed to store call trace %s: %v", trace.ID, err)
		return fmt.Errorf("failed to store call trace: %w", err)
	}
	return nil
}

const traceColumns = `id, run_id, provider, model, schema_name, prompt, response, duration_ms, success, error_message, created_at`

// ListTraces returns the most recent traces, newest first.
func (ts *TraceStore) ListTraces(limit int) ([]*perception.CallTrace, error) {
	if limit <= 0 {
		limit = 50
	}
	return ts.query(`SELECT `+traceColumns+` FROM call_traces ORDER BY created_at DESC, id LIMIT ?`, limit)
}

// GetRunTraces returns the traces of one run in call order.
func (ts *TraceStore) GetRunTraces(runID string) ([]*perception.CallTrace, error) {
	return ts.query(`SELECT `+traceColumns+` FROM call_traces WHERE run_id = ? ORDER BY created_at ASC, id`, runID)
}

// TraceStats summarizes stored traces.
type TraceStats struct {
	Total         int
	Failed        int
	AvgDurationMs float64
	BySchema      map[string]int
}

// Stats aggregates all stored traces.
func (ts *TraceStore) Stats() (*TraceStats, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	stats := &TraceStats{BySchema: make(map[string]int)}
	var avg sql.NullFloat64
	var failed sql.NullInt64
	err := ts.db.QueryRow(`
		SELECT COUNT(*), SUM(CASE WHEN success THEN 0 ELSE 1 END), AVG(duration_ms)
		FROM call_traces`).Scan(&stats.Total, &failed, &avg)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate traces: %w", err)
	}
	stats.Failed = int(failed.Int64)
	stats.AvgDurationMs = avg.Float64

	rows, err := ts.db.Query(`SELECT schema_name, COUNT(*) FROM call_traces GROUP BY schema_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to group traces: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		stats.BySchema[name] = n
	}
	return stats, rows.Err()
}

func (ts *TraceStore) query(q string, args ...interface{}) ([]*perception.CallTrace, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	rows, err := ts.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query traces: %w", err)
	}
	defer rows.Close()

	var out []*perception.CallTrace
	for rows.Next() {
		var t perception.CallTrace
		var runID, model, response, errMsg sql.NullString
		var duration sql.NullInt64
		if err := rows.Scan(&t.ID, &runID, &t.Provider, &model, &t.Schema, &t.Prompt,
			&response, &duration, &t.Success, &errMsg, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan trace: %w", err)
		}
		t.RunID = runID.String
		t.Model = model.String
		t.Response = response.String
		t.DurationMs = duration.Int64
		t.ErrorMessage = errMsg.String
		out = append(out, &t)
	}
	return out, rows.Err()
}
