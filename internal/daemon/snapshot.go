package daemon

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/matheus3301/vsms/internal/status"
	"github.com/matheus3301/vsms/internal/store"
	intsync "github.com/matheus3301/vsms/internal/sync"
)

// Snapshotter drives whole-store backup and restore through the runtime
// state machine: the daemon is Restoring for the duration, which keeps
// the sync poller off the store while the file is swapped.
type Snapshotter struct {
	store      *store.Store
	reconciler *intsync.Reconciler
	machine    *status.Machine
	logger     *zap.Logger
}

func NewSnapshotter(s *store.Store, r *intsync.Reconciler, m *status.Machine, logger *zap.Logger) *Snapshotter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Snapshotter{store: s, reconciler: r, machine: m, logger: logger}
}

// ExportTo writes a snapshot of the store to the given path.
func (s *Snapshotter) ExportTo(path string) error {
	if err := s.machine.Transition(status.Restoring); err != nil {
		return fmt.Errorf("cannot export now: %w", err)
	}
	defer func() { _ = s.machine.Transition(status.Ready) }()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.store.Export(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	s.logger.Info("snapshot exported", zap.String("path", path))
	return nil
}

// ImportFrom replaces the store with the snapshot at the given path and
// rebuilds the search index from the restored rows. A read failure leaves
// the original store in place and the daemon Ready; a failure after the
// file was swapped lands in Error, since the store handle may be gone.
func (s *Snapshotter) ImportFrom(path string) error {
	if err := s.machine.Transition(status.Restoring); err != nil {
		return fmt.Errorf("cannot import now: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		_ = s.machine.Transition(status.Ready)
		return err
	}
	defer func() { _ = f.Close() }()

	if err := s.store.Import(f); err != nil {
		if errors.Is(err, store.ErrImportFailed) {
			_ = s.machine.Transition(status.Ready)
		} else {
			_ = s.machine.Transition(status.Error)
		}
		return err
	}

	if err := s.reconciler.RebuildIndex(); err != nil {
		s.logger.Warn("index rebuild after import failed", zap.Error(err))
	}
	_ = s.machine.Transition(status.Ready)
	s.logger.Info("snapshot imported", zap.String("path", path))
	return nil
}
