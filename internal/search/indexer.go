package search

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/matheus3301/vsms/internal/store"
)

// Indexer is the full-text index boundary. Implementations are invoked
// only after a store transaction commits, never inside one: an index
// update cannot be rolled back, so it must never run against state that
// is subsequently rolled back.
type Indexer interface {
	Add(m *store.Message) error
	Remove(id int64) error
	RemoveAll() error
	Rebuild(msgs []store.Message) error
}

// SQLiteIndexer keeps an FTS5 index of message bodies in its own
// database file, keyed by the store's message row ids.
type SQLiteIndexer struct {
	db     *sql.DB
	logger *zap.Logger
}

// Hit is one search result.
type Hit struct {
	ID      int64
	DID     string
	Contact string
	Snippet string
}

// Open opens (creating if needed) the index database at path.
func Open(path string, logger *zap.Logger) (*SQLiteIndexer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	if _, err := db.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts
		USING fts5(body, did UNINDEXED, contact UNINDEXED)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create fts table: %w", err)
	}
	return &SQLiteIndexer{db: db, logger: logger}, nil
}

// Close closes the index database.
func (x *SQLiteIndexer) Close() error {
	return x.db.Close()
}

// Add indexes one message body under its store row id.
func (x *SQLiteIndexer) Add(m *store.Message) error {
	_, err := x.db.Exec(`
		INSERT OR REPLACE INTO messages_fts (rowid, body, did, contact)
		VALUES (?, ?, ?, ?)`,
		m.ID, m.Body, m.DID, m.Contact)
	return err
}

// Remove drops one message from the index.
func (x *SQLiteIndexer) Remove(id int64) error {
	_, err := x.db.Exec("DELETE FROM messages_fts WHERE rowid = ?", id)
	return err
}

// RemoveAll clears the index.
func (x *SQLiteIndexer) RemoveAll() error {
	_, err := x.db.Exec("DELETE FROM messages_fts")
	return err
}

// Rebuild clears the index and re-adds the given messages. Used after a
// snapshot import, when the index file no longer matches the store.
func (x *SQLiteIndexer) Rebuild(msgs []store.Message) error {
	tx, err := x.db.Begin()
	if err != nil {
		return fmt.Errorf("begin rebuild: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM messages_fts"); err != nil {
		return err
	}
	for i := range msgs {
		m := &msgs[i]
		if _, err := tx.Exec(`
			INSERT INTO messages_fts (rowid, body, did, contact)
			VALUES (?, ?, ?, ?)`,
			m.ID, m.Body, m.DID, m.Contact); err != nil {
			return fmt.Errorf("index message %d: %w", m.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	x.logger.Info("search index rebuilt", zap.Int("messages", len(msgs)))
	return nil
}

// Search returns up to limit hits for an FTS5 match query, best first,
// with a snippet around the match.
func (x *SQLiteIndexer) Search(query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := x.db.Query(`
		SELECT rowid, did, contact, snippet(messages_fts, 0, '<<', '>>', '...', 32)
		FROM messages_fts
		WHERE messages_fts MATCH ?
		ORDER BY rank LIMIT ?`, query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ID, &h.DID, &h.Contact, &h.Snippet); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
