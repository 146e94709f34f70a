package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// ErrStoreCorrupt reports that the underlying engine could not allocate a
// row id for an insert. It is always fatal to the enclosing transaction.
var ErrStoreCorrupt = errors.New("store: failed to allocate row id")

// Store owns the message database: the SQLite handle, the reader/writer
// gate that serializes snapshot import/export against row operations, and
// the migration chain run at open time.
//
// One Store is constructed per process at startup and passed by handle to
// all callers; nothing else touches the four tables directly.
type Store struct {
	gate   gate // shared: row ops; exclusive: snapshot import/export
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// Open opens (creating if needed) the message database at path and brings
// it to the current schema version. Migration runs inside one transaction;
// on failure the file is left at its prior version and Open fails.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := openHandle(path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, path: path, logger: logger}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// openHandle creates a SQLite connection with WAL mode and recommended
// pragmas, verifying it with a ping.
func openHandle(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// Close closes the underlying handle. No row operation may be in flight.
func (s *Store) Close() error {
	s.gate.Lock()
	defer s.gate.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// withTx runs fn inside one transaction under the shared gate. If fn
// returns an error the transaction rolls back and no statement applies;
// rollback is the sole recovery mechanism for partial failure. Side
// effects that cannot roll back (search index, shortcuts) belong after
// withTx returns nil, never inside fn.
func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	s.gate.RLock()
	defer s.gate.RUnlock()
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// insertMessage inserts a message row, naming all ten columns; the row id
// is passed as NULL so allocation stays with the engine. Returns
// ErrStoreCorrupt if no id comes back.
func insertMessage(tx *sql.Tx, m *Message) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO messages (id, remote_id, date, incoming, did, contact, body, unread, delivered, delivery_in_progress)
		VALUES (NULL, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableID(m.RemoteID), m.Date, m.Incoming, m.DID, m.Contact, m.Body,
		m.Unread, m.Delivered, m.DeliveryInProgress)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil || id <= 0 {
		return 0, ErrStoreCorrupt
	}
	return id, nil
}

// nullableID maps the zero remote id to SQL NULL.
func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const messageColumns = "id, remote_id, date, incoming, did, contact, body, unread, delivered, delivery_in_progress"

func scanMessage(r rowScanner) (*Message, error) {
	var m Message
	var remoteID sql.NullInt64
	if err := r.Scan(&m.ID, &remoteID, &m.Date, &m.Incoming, &m.DID, &m.Contact,
		&m.Body, &m.Unread, &m.Delivered, &m.DeliveryInProgress); err != nil {
		return nil, err
	}
	m.RemoteID = remoteID.Int64
	return &m, nil
}

func collectMessages(rows *sql.Rows) ([]Message, error) {
	defer func() { _ = rows.Close() }()
	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}
