// Package store persists oracle call traces and compiled documents in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"relogic/internal/logging"
)

// LocalStore owns the SQLite database behind the trace and document stores.
type LocalStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string

	traces    *TraceStore
	documents *DocumentStore
}

// NewLocalStore opens (creating if needed) the database at path.
func NewLocalStore(path string) (*LocalStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewLocalStore")
	defer timer.Stop()

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &LocalStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	s.traces = &TraceStore{db: db}
	s.documents = &DocumentStore{db: db}

	logging.Store("Opened store at %s", path)
	return s, nil
}

func (s *LocalStore) initialize() error {
	traces := `
	CREATE TABLE IF NOT EXISTS call_traces (
		id TEXT PRIMARY KEY,
		run_id TEXT,
		provider TEXT NOT NULL,
		model TEXT,
		schema_name TEXT NOT NULL,
		prompt TEXT NOT NULL,
		response TEXT,
		duration_ms INTEGER,
		success BOOLEAN NOT NULL,
		error_message TEXT,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_traces_run ON call_traces(run_id);
	CREATE INDEX IF NOT EXISTS idx_traces_schema ON call_traces(schema_name);
	CREATE INDEX IF NOT EXISTS idx_traces_created ON call_traces(created_at);
	`

	documents := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		source TEXT,
		original_sentence TEXT NOT NULL,
		sentence_count INTEGER NOT NULL,
		document TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source);
	`

	for name, ddl := range map[string]string{"call_traces": traces, "documents": documents} {
		if _, err := s.db.Exec(ddl); err != nil {
			logging.StoreError("Failed to create %s table: %v", name, err)
			return fmt.Errorf("failed to create %s table: %w", name, err)
		}
	}
	return nil
}

// GetTraceStore returns the call trace store.
func (s *LocalStore) GetTraceStore() *TraceStore { return s.traces }

// GetDocumentStore returns the document store.
func (s *LocalStore) GetDocumentStore() *DocumentStore { return s.documents }

// Path returns the database path.
func (s *LocalStore) Path() string { return s.dbPath }

// Close closes the database.
func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
