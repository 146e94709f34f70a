package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/vsms/internal/status"
	"github.com/matheus3301/vsms/internal/store"
)

// Client is the remote synchronization boundary: it retrieves the
// messages the provider recorded for the given DIDs since a point in
// time. Implementations live outside this module.
type Client interface {
	Retrieve(ctx context.Context, dids []string, since time.Time) ([]store.RemoteMessage, error)
}

// Poller periodically retrieves new messages from the provider and feeds
// them to the reconciler. Retrieval and merge run off the caller's path,
// on the poller's own goroutine.
type Poller struct {
	client     Client
	reconciler *Reconciler
	machine    *status.Machine
	logger     *zap.Logger
	dids       []string
	interval   time.Duration
	lastSync   time.Time
	cancel     context.CancelFunc
}

// NewPoller creates a poller. interval <= 0 disables it.
func NewPoller(client Client, reconciler *Reconciler, machine *status.Machine, logger *zap.Logger, dids []string, interval time.Duration) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		client:     client,
		reconciler: reconciler,
		machine:    machine,
		logger:     logger,
		dids:       dids,
		interval:   interval,
	}
}

// Start begins the poll loop.
func (p *Poller) Start(ctx context.Context) {
	if p.client == nil || p.interval <= 0 {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	go p.loop(ctx)
}

// Stop stops the poll loop. A merge already begun runs to completion.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *Poller) loop(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.pollOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	if err := p.machine.Transition(status.Syncing); err != nil {
		// Restoring or otherwise busy; try again next tick.
		return
	}

	since := p.lastSync
	started := time.Now()
	batch, err := p.client.Retrieve(ctx, p.dids, since)
	if err != nil {
		p.logger.Warn("sync retrieve failed", zap.Error(err))
		_ = p.machine.Transition(status.Degraded)
		return
	}

	if _, err := p.reconciler.Apply(batch, false); err != nil {
		p.logger.Error("sync batch failed, rolled back", zap.Error(err))
		_ = p.machine.Transition(status.Degraded)
		return
	}

	p.lastSync = started
	_ = p.machine.Transition(status.Ready)
}
