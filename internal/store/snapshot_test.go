package store

import (
	"bytes"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExportImportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "test.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })

	id, err := s.InsertOutgoing(conv, "snapshot me")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.MarkSent(id, 42); err != nil {
		t.Fatal(err)
	}
	if err := s.SetDraft(conv, "draft survives"); err != nil {
		t.Fatal(err)
	}

	snap, err := os.Create(filepath.Join(dir, "backup.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = snap.Close() })
	if err := s.Export(snap); err != nil {
		t.Fatal(err)
	}

	// Mutate, then restore the snapshot.
	if _, err := s.InsertOutgoing(conv, "after the snapshot"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(snap.Name())
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Fatal("exported snapshot is empty")
	}
	if err := s.Import(bytes.NewReader(data)); err != nil {
		t.Fatal(err)
	}

	msgs, err := s.ConversationMessages(conv, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Body != "snapshot me" {
		t.Errorf("messages = %v, want only the pre-snapshot message", msgs)
	}
	if msgs[0].RemoteID != 42 {
		t.Errorf("remote_id = %d, want 42", msgs[0].RemoteID)
	}
	d, err := s.GetDraft(conv)
	if err != nil {
		t.Fatal(err)
	}
	if d == nil || d.Body != "draft survives" {
		t.Errorf("draft = %v, want it restored", d)
	}
}

func TestExportTruncatesDestination(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "test.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })

	dst, err := os.Create(filepath.Join(dir, "backup.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = dst.Close() })
	// Pre-existing garbage much larger than the store.
	if _, err := dst.Write(bytes.Repeat([]byte{0xFF}, 1<<20)); err != nil {
		t.Fatal(err)
	}

	if err := s.Export(dst); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(dst.Name())
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 || len(data) == 1<<20 {
		t.Errorf("destination = %d bytes, want it replaced by the store file", len(data))
	}
	if !bytes.HasPrefix(data, []byte("SQLite format 3")) {
		t.Error("destination does not start with the SQLite header")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("source stream broke")
}

func TestImportFailureRestoresOriginal(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "test.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })

	id, err := s.InsertOutgoing(conv, "must survive")
	if err != nil {
		t.Fatal(err)
	}

	err = s.Import(failingReader{})
	if !errors.Is(err, ErrImportFailed) {
		t.Fatalf("err = %v, want ErrImportFailed", err)
	}

	// The original store is intact and usable.
	m, err := s.GetMessage(id)
	if err != nil {
		t.Fatal(err)
	}
	if m == nil || m.Body != "must survive" {
		t.Errorf("message = %v, want the original store restored", m)
	}

	// And no backup files linger.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "test.db.backup-") {
			t.Errorf("leftover backup file %s", e.Name())
		}
	}
}

func TestImportLegacySnapshotMigrates(t *testing.T) {
	// A snapshot taken on an old client version migrates on import.
	legacyPath := legacyDB(t, 8, func(db *sql.DB) {
		mustExec(t, db, legacySchema)
		mustExec(t, db, "ALTER TABLE sms ADD COLUMN draft INTEGER NOT NULL DEFAULT 0")
		mustExec(t, db, `INSERT INTO sms (remote_id, date, incoming, did, contact, body, unread, delivered, delivery_in_progress, deleted, draft)
			VALUES (9, 100, 1, '5551234567', '5559876543', 'from old snapshot', 1, 1, 0, 0, 0)`)
	})
	data, err := os.ReadFile(legacyPath)
	if err != nil {
		t.Fatal(err)
	}

	s := testStore(t)
	if err := s.Import(bytes.NewReader(data)); err != nil {
		t.Fatal(err)
	}
	if v := storedVersion(t, s); v != SchemaVersion {
		t.Errorf("version = %d after legacy import, want %d", v, SchemaVersion)
	}
	msgs, err := s.ConversationMessages(conv, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Body != "from old snapshot" {
		t.Errorf("messages = %v, want the migrated legacy row", msgs)
	}
}

func TestOperationsBlockedDuringExport(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "test.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if _, err := s.InsertOutgoing(conv, "x"); err != nil {
		t.Fatal(err)
	}

	dst, err := os.Create(filepath.Join(dir, "backup.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = dst.Close() })

	done := make(chan error, 1)
	go func() {
		done <- s.Export(dst)
	}()

	// A row operation issued concurrently must not observe a closed
	// handle: it either runs before the export takes the gate or after
	// the handle is back.
	if _, err := s.MostRecent(conv); err != nil {
		t.Errorf("row op during export: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}
