package store

import "database/sql"

// GetDraft returns the draft for a conversation, or nil if none exists.
// A placeholder draft with empty text (left behind by conversation
// deletion) is still a draft row and is returned as such.
func (s *Store) GetDraft(conv ConversationID) (*Draft, error) {
	s.gate.RLock()
	defer s.gate.RUnlock()
	var d Draft
	err := s.db.QueryRow(
		"SELECT id, did, contact, body FROM drafts WHERE did = ? AND contact = ?",
		conv.DID, conv.Contact).Scan(&d.ID, &d.DID, &d.Contact, &d.Body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// SetDraft creates or replaces the conversation's draft. Empty text
// deletes the draft row instead, so a conversation never holds an empty
// draft through this path, and non-empty text always yields exactly one
// row.
func (s *Store) SetDraft(conv ConversationID, body string) error {
	return s.withTx(func(tx *sql.Tx) error {
		if body == "" {
			_, err := tx.Exec(
				"DELETE FROM drafts WHERE did = ? AND contact = ?",
				conv.DID, conv.Contact)
			return err
		}
		_, err := tx.Exec(`
			INSERT INTO drafts (did, contact, body) VALUES (?, ?, ?)
			ON CONFLICT(did, contact) DO UPDATE SET body = excluded.body`,
			conv.DID, conv.Contact, body)
		return err
	})
}

// draftsFor returns all drafts whose DID is in the given set.
func (s *Store) draftsFor(dids []string) ([]Draft, error) {
	if len(dids) == 0 {
		return nil, nil
	}
	q, args := inClause("SELECT id, did, contact, body FROM drafts WHERE did IN", dids)
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var drafts []Draft
	for rows.Next() {
		var d Draft
		if err := rows.Scan(&d.ID, &d.DID, &d.Contact, &d.Body); err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}
