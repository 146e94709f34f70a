package store

import "database/sql"

// HasTombstone reports whether (did, remoteID) was deleted remotely.
func (s *Store) HasTombstone(did string, remoteID int64) (bool, error) {
	s.gate.RLock()
	defer s.gate.RUnlock()
	return tombstoneExists(s.db.QueryRow(
		"SELECT COUNT(*) FROM tombstones WHERE did = ? AND remote_id = ?", did, remoteID))
}

// Tombstones returns all tombstones for a DID, useful for diagnostics.
func (s *Store) Tombstones(did string) ([]Tombstone, error) {
	s.gate.RLock()
	defer s.gate.RUnlock()
	rows, err := s.db.Query(
		"SELECT id, remote_id, did FROM tombstones WHERE did = ? ORDER BY remote_id ASC", did)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ts []Tombstone
	for rows.Next() {
		var t Tombstone
		if err := rows.Scan(&t.ID, &t.RemoteID, &t.DID); err != nil {
			return nil, err
		}
		ts = append(ts, t)
	}
	return ts, rows.Err()
}

func tombstoneExists(row rowScanner) (bool, error) {
	var n int
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// insertTombstone writes a tombstone for (did, remoteID). Idempotent: the
// unique index makes a duplicate insert a no-op, so at most one tombstone
// ever exists per pair.
func insertTombstone(tx *sql.Tx, did string, remoteID int64) error {
	_, err := tx.Exec(
		"INSERT OR IGNORE INTO tombstones (remote_id, did) VALUES (?, ?)", remoteID, did)
	return err
}

// removeTombstone clears a tombstone, un-deleting the pair for sync.
func removeTombstone(tx *sql.Tx, did string, remoteID int64) error {
	_, err := tx.Exec(
		"DELETE FROM tombstones WHERE did = ? AND remote_id = ?", did, remoteID)
	return err
}
