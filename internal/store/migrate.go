package store

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SchemaVersion is the current on-disk schema version, stored in the
// SQLite user_version field.
const SchemaVersion = 9

// A migration transforms one historical layout toward the current one.
// It applies when the stored version is at most upTo. Steps are cumulative
// and run oldest-first inside a single transaction; interim versions are
// never persisted individually.
type migration struct {
	upTo  int
	name  string
	apply func(tx *sql.Tx) error

	// terminal steps recreate the current layout from scratch; later
	// steps are skipped.
	terminal bool
}

var migrations = []migration{
	// Anything at version 5 or older is pure cache: drop it and start
	// over with the current layout. Fresh databases (version 0) take
	// this path too.
	{upTo: 5, name: "recreate", apply: recreateCurrent, terminal: true},
	// Version 6 databases carry timestamps parsed under a permanent
	// standard-time assumption; re-derive them through real local rules.
	{upTo: 6, name: "fix_dst_dates", apply: fixDSTDates},
	// The draft indicator column arrived in version 8's predecessor.
	{upTo: 7, name: "add_draft_column", apply: addDraftColumn},
	// Version 9 split the legacy single table into the four current ones.
	{upTo: 8, name: "split_legacy_table", apply: splitLegacyTable},
}

// migrate brings the database to SchemaVersion. All due steps run inside
// one transaction, so a failure rolls everything back and the file stays
// at its prior version. Opening an already-current store runs zero steps.
func (s *Store) migrate() error {
	var from int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&from); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if from >= SchemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, m := range migrations {
		if from > m.upTo {
			continue
		}
		s.logger.Info("applying migration",
			zap.String("step", m.name),
			zap.Int("from_version", from))
		if err := m.apply(tx); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
		if m.terminal {
			break
		}
	}

	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return tx.Commit()
}

// recreateCurrent drops the legacy table and creates the current schema
// fresh. No data is carried forward.
func recreateCurrent(tx *sql.Tx) error {
	if _, err := tx.Exec("DROP TABLE IF EXISTS sms"); err != nil {
		return err
	}
	return createSchema(tx)
}

// fixDSTDates rewrites every stored timestamp that was derived as if the
// provider zone never observed DST. The wall-clock time implied by the
// erroneous fixed offset is re-anchored through the real zone rules.
func fixDSTDates(tx *sql.Tx) error {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return err
	}

	rows, err := tx.Query("SELECT id, date FROM sms")
	if err != nil {
		return err
	}
	type rowDate struct {
		id   int64
		date int64
	}
	var dates []rowDate
	for rows.Next() {
		var r rowDate
		if err := rows.Scan(&r.id, &r.date); err != nil {
			_ = rows.Close()
			return err
		}
		dates = append(dates, r)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, r := range dates {
		fixed := redriveTimestamp(r.date, loc)
		if fixed == r.date {
			continue
		}
		if _, err := tx.Exec("UPDATE sms SET date = ? WHERE id = ?", fixed, r.id); err != nil {
			return err
		}
	}
	return nil
}

// standardOffset is the fixed UTC offset the broken parser assumed
// year-round (Eastern standard time).
const standardOffset = -5 * 60 * 60

// redriveTimestamp takes an epoch second produced under the fixed
// standard-time offset, recovers the wall-clock time it was meant to
// represent, and re-derives the epoch under the zone's real rules. Winter
// timestamps come back unchanged; summer ones shift by the DST delta.
func redriveTimestamp(ts int64, loc *time.Location) int64 {
	wall := time.Unix(ts, 0).In(time.FixedZone("EST", standardOffset))
	return time.Date(wall.Year(), wall.Month(), wall.Day(),
		wall.Hour(), wall.Minute(), wall.Second(), 0, loc).Unix()
}

// addDraftColumn adds the draft indicator to the legacy single-table
// layout. Structural only; no rows are rewritten.
func addDraftColumn(tx *sql.Tx) error {
	_, err := tx.Exec("ALTER TABLE sms ADD COLUMN draft INTEGER NOT NULL DEFAULT 0")
	return err
}

// splitLegacyTable moves tombstone and draft rows out of the legacy table
// into their own tables, creates the archived table, and rebuilds the
// message table without the deleted/draft columns. Every sub-step is
// additive or transformational; surviving rows are copied, never lost.
func splitLegacyTable(tx *sql.Tx) error {
	// Tombstones out of the legacy table.
	if _, err := tx.Exec(schemaTombstones); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT OR IGNORE INTO tombstones (remote_id, did)
		SELECT remote_id, did FROM sms WHERE deleted = 1 AND remote_id IS NOT NULL`); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM sms WHERE deleted = 1"); err != nil {
		return err
	}

	// Drafts with non-empty text.
	if _, err := tx.Exec(schemaDrafts); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT OR IGNORE INTO drafts (did, contact, body)
		SELECT did, contact, body FROM sms WHERE draft = 1 AND body != ''`); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM sms WHERE draft = 1"); err != nil {
		return err
	}

	// Archived starts empty.
	if _, err := tx.Exec(schemaArchived); err != nil {
		return err
	}

	// Rebuild the message table without the deleted/draft columns.
	if _, err := tx.Exec("ALTER TABLE sms RENAME TO sms_old"); err != nil {
		return err
	}
	if _, err := tx.Exec(schemaMessages); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT INTO messages (id, remote_id, date, incoming, did, contact, body, unread, delivered, delivery_in_progress)
		SELECT id, remote_id, date, incoming, did, contact, body, unread, delivered, delivery_in_progress
		FROM sms_old`); err != nil {
		return err
	}
	if _, err := tx.Exec("DROP TABLE sms_old"); err != nil {
		return err
	}
	return nil
}
