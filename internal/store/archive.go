package store

import "database/sql"

// IsArchived reports whether the conversation carries the archived flag.
func (s *Store) IsArchived(conv ConversationID) (bool, error) {
	s.gate.RLock()
	defer s.gate.RUnlock()
	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM archived WHERE did = ? AND contact = ?",
		conv.DID, conv.Contact).Scan(&n)
	return n > 0, err
}

// Archive flags the conversation as archived. At most one row exists per
// conversation.
func (s *Store) Archive(conv ConversationID) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT OR IGNORE INTO archived (did, contact) VALUES (?, ?)`,
			conv.DID, conv.Contact)
		return err
	})
}

// Unarchive clears the archived flag.
func (s *Store) Unarchive(conv ConversationID) error {
	return s.withTx(func(tx *sql.Tx) error {
		return clearArchived(tx, conv)
	})
}

// clearArchived removes the archived flag inside an existing transaction.
// New activity in a conversation unarchives it.
func clearArchived(tx *sql.Tx, conv ConversationID) error {
	_, err := tx.Exec(
		"DELETE FROM archived WHERE did = ? AND contact = ?", conv.DID, conv.Contact)
	return err
}
