package store

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrImportFailed reports that reading the snapshot source failed and the
// original database was restored. The store remains usable.
var ErrImportFailed = errors.New("store: import failed, original restored")

// Export writes a consistent snapshot of the whole database file to dst,
// truncating whatever it held. It takes the gate exclusively: the handle
// is checkpointed and closed so the file on disk is complete, copied, and
// reopened before any row operation may resume.
func (s *Store) Export(dst *os.File) error {
	s.gate.Lock()
	defer s.gate.Unlock()

	// Fold the WAL into the main file so one file is the whole store.
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close for export: %w", err)
	}

	copyErr := func() error {
		if err := dst.Truncate(0); err != nil {
			return err
		}
		if _, err := dst.Seek(0, io.SeekStart); err != nil {
			return err
		}
		src, err := os.Open(s.path)
		if err != nil {
			return err
		}
		defer func() { _ = src.Close() }()
		_, err = io.Copy(dst, src)
		return err
	}()

	db, openErr := openHandle(s.path)
	if openErr != nil {
		return fmt.Errorf("reopen after export: %w", openErr)
	}
	s.db = db

	if copyErr != nil {
		return fmt.Errorf("export: %w", copyErr)
	}
	s.logger.Info("database exported", zap.String("path", s.path))
	return nil
}

// Import replaces the whole database file with the contents of src under
// the exclusive gate. The current file is copied aside first; any failure
// while reading src restores it, so the store is never left empty or
// corrupt, and the read error is surfaced. A reopen or migration failure
// after a successful copy is surfaced as-is: at that point the new file
// is in place and there is nothing safe to roll back to.
func (s *Store) Import(src io.Reader) error {
	s.gate.Lock()
	defer s.gate.Unlock()

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close for import: %w", err)
	}
	s.db = nil

	backup := s.path + ".backup-" + uuid.NewString()
	if err := copyFile(s.path, backup); err != nil {
		return s.reopenAfter(fmt.Errorf("backup before import: %w", err))
	}

	if err := writeFile(s.path, src); err != nil {
		// Source stream failed: put the original back.
		if restoreErr := copyFile(backup, s.path); restoreErr != nil {
			return fmt.Errorf("import failed (%v) and restore failed: %w", err, restoreErr)
		}
		_ = os.Remove(backup)
		if reopenErr := s.reopenAfter(nil); reopenErr != nil {
			return reopenErr
		}
		s.logger.Warn("import failed, original store restored", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrImportFailed, err)
	}

	// Stale WAL/SHM files belong to the replaced database.
	_ = os.Remove(s.path + "-wal")
	_ = os.Remove(s.path + "-shm")

	db, err := openHandle(s.path)
	if err != nil {
		return fmt.Errorf("reopen after import: %w", err)
	}
	s.db = db

	// The imported file may predate the current schema.
	if err := s.migrate(); err != nil {
		return fmt.Errorf("migrate imported store: %w", err)
	}

	_ = os.Remove(backup)
	s.logger.Info("database imported", zap.String("path", s.path))
	return nil
}

// reopenAfter reopens the handle after a failed import step that left the
// original file untouched, preferring the original error for the caller.
func (s *Store) reopenAfter(cause error) error {
	db, err := openHandle(s.path)
	if err != nil {
		if cause != nil {
			return fmt.Errorf("%v; reopen failed: %w", cause, err)
		}
		return fmt.Errorf("reopen: %w", err)
	}
	s.db = db
	return cause
}

func copyFile(from, to string) error {
	src, err := os.Open(from)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()
	return writeFile(to, src)
}

func writeFile(path string, src io.Reader) error {
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(dst, src)
	if closeErr := dst.Close(); copyErr == nil {
		return closeErr
	}
	return copyErr
}
