package store

import "database/sql"

// Current table layout (schema version 9). The legacy single-table layout
// lived under the name "sms" and is only touched by migrations.

const schemaMessages = `
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		remote_id INTEGER,
		date INTEGER NOT NULL,
		incoming INTEGER NOT NULL,
		did TEXT NOT NULL,
		contact TEXT NOT NULL,
		body TEXT NOT NULL,
		unread INTEGER NOT NULL,
		delivered INTEGER NOT NULL,
		delivery_in_progress INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation
		ON messages(did, contact, date DESC);
	CREATE INDEX IF NOT EXISTS idx_messages_remote
		ON messages(did, remote_id);`

const schemaTombstones = `
	CREATE TABLE IF NOT EXISTS tombstones (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		remote_id INTEGER NOT NULL,
		did TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_tombstones_remote
		ON tombstones(did, remote_id);`

const schemaDrafts = `
	CREATE TABLE IF NOT EXISTS drafts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		did TEXT NOT NULL,
		contact TEXT NOT NULL,
		body TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_drafts_conversation
		ON drafts(did, contact);`

const schemaArchived = `
	CREATE TABLE IF NOT EXISTS archived (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		did TEXT NOT NULL,
		contact TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_archived_conversation
		ON archived(did, contact);`

// createSchema creates the four current tables and their indexes.
func createSchema(tx *sql.Tx) error {
	for _, stmt := range []string{schemaMessages, schemaTombstones, schemaDrafts, schemaArchived} {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
