package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"relogic/internal/logging"
	"relogic/internal/logic"
)

// ErrNotFound is returned when no row matches an ID.
var ErrNotFound = errors.New("not found")

// DocumentStore persists compiled RelationalLogic units as documents.
type DocumentStore struct {
	db *sql.DB
	mu sync.Mutex
}

// DocumentSummary describes a stored unit without decoding it.
type DocumentSummary struct {
	ID               string    `json:"id"`
	Source           string    `json:"source,omitempty"`
	OriginalSentence string    `json:"original_sentence"`
	SentenceCount    int       `json:"sentence_count"`
	CreatedAt        time.Time `json:"created_at"`
}

// SaveDocument stores rl and returns its new ID. source labels where the text
// came from (a contract name, "cli", ...).
func (ds *DocumentStore) SaveDocument(rl *logic.RelationalLogic, source string) (string, error) {
	data, err := json.Marshal(rl)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	id := uuid.New().String()
	_, err = ds.db.Exec(`
		INSERT INTO documents (id, source, original_sentence, sentence_count, document, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, source, rl.OriginalSentence, rl.Len(), string(data), time.Now().UTC(),
	)
	if err != nil {
		logging.StoreError("Failed to save document: %v", err)
		return "", fmt.Errorf("failed to save document: %w", err)
	}
	logging.StoreDebug("Saved document %s (%d sentences)", id, rl.Len())
	return id, nil
}

// LoadDocument decodes the stored unit with the given ID.
func (ds *DocumentStore) LoadDocument(id string) (*logic.RelationalLogic, error) {
	ds.mu.Lock()
	var data string
	err := ds.db.QueryRow(`SELECT document FROM documents WHERE id = ?`, id).Scan(&data)
	ds.mu.Unlock()

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	var rl logic.RelationalLogic
	if err := json.Unmarshal([]byte(data), &rl); err != nil {
		return nil, fmt.Errorf("document %s: %w", id, err)
	}
	return &rl, nil
}

// ListDocuments returns summaries, newest first.
func (ds *DocumentStore) ListDocuments(limit int) ([]DocumentSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	rows, err := ds.db.Query(`
		SELECT id, source, original_sentence, sentence_count, created_at
		FROM documents ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentSummary
	for rows.Next() {
		var d DocumentSummary
		var source sql.NullString
		if err := rows.Scan(&d.ID, &source, &d.OriginalSentence, &d.SentenceCount, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		d.Source = source.String
		out = append(out, d)
	}
	return out, rows.Err()
}
