package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// InsertOutgoing records a message about to be handed to the provider:
// delivery in progress, not yet delivered, no remote id. Returns the
// allocated row id.
func (s *Store) InsertOutgoing(conv ConversationID, body string) (int64, error) {
	var id int64
	err := s.withTx(func(tx *sql.Tx) error {
		var err error
		id, err = insertMessage(tx, &Message{
			Date:               time.Now().Unix(),
			Incoming:           false,
			DID:                conv.DID,
			Contact:            conv.Contact,
			Body:               body,
			Unread:             false,
			Delivered:          false,
			DeliveryInProgress: true,
		})
		return err
	})
	return id, err
}

// MarkSent records provider confirmation of an outbound message: the
// remote id is attached and the lifecycle flips to delivered.
func (s *Store) MarkSent(id, remoteID int64) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			UPDATE messages
			SET remote_id = ?, delivered = 1, delivery_in_progress = 0
			WHERE id = ?`, remoteID, id)
		return err
	})
}

// MarkNotSent records a failed outbound delivery: neither delivered nor
// in progress, so the message surfaces as sendable again.
func (s *Store) MarkNotSent(id int64) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			UPDATE messages
			SET delivered = 0, delivery_in_progress = 0
			WHERE id = ?`, id)
		return err
	})
}

// MarkConversationRead clears the unread flag on every message in the
// conversation.
func (s *Store) MarkConversationRead(conv ConversationID) error {
	return s.setConversationUnread(conv, false)
}

// MarkConversationUnread sets the unread flag on every message in the
// conversation.
func (s *Store) MarkConversationUnread(conv ConversationID) error {
	return s.setConversationUnread(conv, true)
}

func (s *Store) setConversationUnread(conv ConversationID, unread bool) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			UPDATE messages SET unread = ? WHERE did = ? AND contact = ?`,
			unread, conv.DID, conv.Contact)
		return err
	})
}

// GetMessage returns the message with the given row id, or nil if absent.
func (s *Store) GetMessage(id int64) (*Message, error) {
	s.gate.RLock()
	defer s.gate.RUnlock()
	m, err := scanMessage(s.db.QueryRow(
		"SELECT "+messageColumns+" FROM messages WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// PendingDeliveries returns all messages whose delivery is in progress,
// oldest first. The delivery sender drains these.
func (s *Store) PendingDeliveries() ([]Message, error) {
	s.gate.RLock()
	defer s.gate.RUnlock()
	rows, err := s.db.Query(`
		SELECT ` + messageColumns + ` FROM messages
		WHERE delivery_in_progress = 1
		ORDER BY date ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

// DeleteMessage removes a single message. If the message carries a remote
// id a tombstone is written first (idempotent) so the next sync does not
// resurrect it. Returns the deleted message, or nil if the id was unknown.
func (s *Store) DeleteMessage(id int64) (*Message, error) {
	var deleted *Message
	err := s.withTx(func(tx *sql.Tx) error {
		m, err := scanMessage(tx.QueryRow(
			"SELECT "+messageColumns+" FROM messages WHERE id = ?", id))
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		if m.RemoteID != 0 {
			if err := insertTombstone(tx, m.DID, m.RemoteID); err != nil {
				return err
			}
		}
		if _, err := tx.Exec("DELETE FROM messages WHERE id = ?", id); err != nil {
			return err
		}
		deleted = m
		return nil
	})
	return deleted, err
}

// DeleteConversation removes a whole conversation: every remote-id-bearing
// message is tombstoned, its message/draft/archived rows are bulk-deleted,
// and an empty draft placeholder is re-inserted so the conversation stays
// addressable for a fresh draft while disappearing from listings. Returns
// the row ids of the deleted messages for index cleanup.
func (s *Store) DeleteConversation(conv ConversationID) ([]int64, error) {
	var ids []int64
	err := s.withTx(func(tx *sql.Tx) error {
		rows, err := tx.Query(`
			SELECT id, remote_id FROM messages WHERE did = ? AND contact = ?`,
			conv.DID, conv.Contact)
		if err != nil {
			return err
		}
		type ref struct {
			id       int64
			remoteID sql.NullInt64
		}
		var refs []ref
		for rows.Next() {
			var r ref
			if err := rows.Scan(&r.id, &r.remoteID); err != nil {
				_ = rows.Close()
				return err
			}
			refs = append(refs, r)
		}
		_ = rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, r := range refs {
			if r.remoteID.Valid {
				if err := insertTombstone(tx, conv.DID, r.remoteID.Int64); err != nil {
					return err
				}
			}
			ids = append(ids, r.id)
		}

		for _, table := range []string{"messages", "drafts", "archived"} {
			if _, err := tx.Exec(
				fmt.Sprintf("DELETE FROM %s WHERE did = ? AND contact = ?", table),
				conv.DID, conv.Contact); err != nil {
				return err
			}
		}

		_, err = tx.Exec(`
			INSERT INTO drafts (did, contact, body) VALUES (?, ?, '')`,
			conv.DID, conv.Contact)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteNotRetained removes all rows, in all four tables, whose DID is
// not in the retained set. This models account removal, not remote
// message deletion, so no tombstones are written.
func (s *Store) DeleteNotRetained(retainedDIDs []string) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(retainedDIDs)), ",")
	args := make([]any, len(retainedDIDs))
	for i, did := range retainedDIDs {
		args[i] = did
	}
	return s.withTx(func(tx *sql.Tx) error {
		for _, table := range []string{"messages", "tombstones", "drafts", "archived"} {
			q := fmt.Sprintf("DELETE FROM %s", table)
			if len(retainedDIDs) > 0 {
				q += fmt.Sprintf(" WHERE did NOT IN (%s)", placeholders)
			}
			if _, err := tx.Exec(q, args...); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteAll clears all four tables. Full reset; row ids are not reused
// afterwards since the AUTOINCREMENT sequence survives.
func (s *Store) DeleteAll() error {
	return s.withTx(func(tx *sql.Tx) error {
		for _, table := range []string{"messages", "tombstones", "drafts", "archived"} {
			if _, err := tx.Exec("DELETE FROM " + table); err != nil {
				return err
			}
		}
		return nil
	})
}

// AllMessages returns every stored message in chronological order. Used
// for index rebuilds.
func (s *Store) AllMessages() ([]Message, error) {
	s.gate.RLock()
	defer s.gate.RUnlock()
	rows, err := s.db.Query(`
		SELECT ` + messageColumns + ` FROM messages
		ORDER BY delivery_in_progress ASC, date ASC, remote_id ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}
