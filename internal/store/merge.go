package store

import "database/sql"

// RemoteMessage is one entry of a sync batch as delivered by the remote
// synchronization client.
type RemoteMessage struct {
	RemoteID int64
	Date     int64 // seconds since epoch
	Incoming bool
	DID      string
	Contact  string
	Body     string
}

// MergeResult reports what a batch merge changed.
type MergeResult struct {
	// Inserted holds the newly stored rows with their allocated ids,
	// in batch order. Collaborators feed these to the search index.
	Inserted []Message
	// Conversations lists each conversation that received at least one
	// new row, for downstream notification and shortcut refresh.
	Conversations []ConversationID
}

// MergeRemoteBatch merges an ordered batch of externally-sourced messages
// into the store as one transaction; a single failure aborts the whole
// batch. Per entry:
//
//  1. with retrieveDeleted, any tombstone for (did, remote_id) is removed
//     and the message is re-inserted;
//  2. otherwise an existing tombstone wins and the entry is skipped;
//  3. an entry whose (did, remote_id) is already stored is skipped;
//  4. anything left is inserted delivered, and the conversation's
//     archived flag is cleared (new activity unarchives).
//
// An entry without a remote id carries no identity to reconcile against,
// so it is skipped rather than re-inserted on every resync.
func (s *Store) MergeRemoteBatch(batch []RemoteMessage, retrieveDeleted bool) (*MergeResult, error) {
	res := &MergeResult{}
	seen := map[ConversationID]bool{}
	err := s.withTx(func(tx *sql.Tx) error {
		for _, rm := range batch {
			if rm.RemoteID == 0 {
				continue
			}
			if retrieveDeleted {
				if err := removeTombstone(tx, rm.DID, rm.RemoteID); err != nil {
					return err
				}
			} else {
				dead, err := tombstoneExists(tx.QueryRow(
					"SELECT COUNT(*) FROM tombstones WHERE did = ? AND remote_id = ?",
					rm.DID, rm.RemoteID))
				if err != nil {
					return err
				}
				if dead {
					continue
				}
			}

			var n int
			if err := tx.QueryRow(
				"SELECT COUNT(*) FROM messages WHERE did = ? AND remote_id = ?",
				rm.DID, rm.RemoteID).Scan(&n); err != nil {
				return err
			}
			if n > 0 {
				continue
			}

			m := Message{
				RemoteID:  rm.RemoteID,
				Date:      rm.Date,
				Incoming:  rm.Incoming,
				DID:       rm.DID,
				Contact:   rm.Contact,
				Body:      rm.Body,
				Unread:    rm.Incoming,
				Delivered: true,
			}
			id, err := insertMessage(tx, &m)
			if err != nil {
				return err
			}
			m.ID = id

			conv := m.Conversation()
			if err := clearArchived(tx, conv); err != nil {
				return err
			}

			res.Inserted = append(res.Inserted, m)
			if !seen[conv] {
				seen[conv] = true
				res.Conversations = append(res.Conversations, conv)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
