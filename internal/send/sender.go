package send

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/vsms/internal/bus"
	"github.com/matheus3301/vsms/internal/search"
	"github.com/matheus3301/vsms/internal/store"
)

// Transport hands one message to the SMS provider. The token is a fresh
// idempotency key per attempt so a retried request cannot double-send.
// Implementations live outside this module.
type Transport interface {
	Send(ctx context.Context, token, did, contact, body string) (remoteID int64, err error)
}

// Sender drains delivery-in-progress messages through the transport,
// flipping each to delivered (with its remote id) or back to not-sent.
type Sender struct {
	store     *store.Store
	transport Transport
	indexer   search.Indexer
	bus       *bus.Bus
	logger    *zap.Logger
	cancel    context.CancelFunc
}

// NewSender creates a delivery sender. indexer may be nil.
func NewSender(s *store.Store, transport Transport, indexer search.Indexer, b *bus.Bus, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		store:     s,
		transport: transport,
		indexer:   indexer,
		bus:       b,
		logger:    logger,
	}
}

// Start begins polling for pending deliveries.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
}

// Stop stops the sender loop.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Sender) loop(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) processPending(ctx context.Context) {
	pending, err := s.store.PendingDeliveries()
	if err != nil {
		s.logger.Error("failed to read pending deliveries", zap.Error(err))
		return
	}

	for i := range pending {
		m := &pending[i]
		remoteID, err := s.transport.Send(ctx, uuid.NewString(), m.DID, m.Contact, m.Body)
		if err != nil {
			s.logger.Error("delivery failed", zap.Error(err), zap.Int64("id", m.ID))
			if err := s.store.MarkNotSent(m.ID); err != nil {
				s.logger.Error("failed to mark not sent", zap.Error(err), zap.Int64("id", m.ID))
			}
			s.publish("send.failed", m)
			continue
		}

		if err := s.store.MarkSent(m.ID, remoteID); err != nil {
			s.logger.Error("failed to mark sent", zap.Error(err), zap.Int64("id", m.ID))
			continue
		}
		if s.indexer != nil {
			if err := s.indexer.Add(m); err != nil {
				s.logger.Warn("failed to index sent message", zap.Error(err), zap.Int64("id", m.ID))
			}
		}
		s.logger.Info("message delivered",
			zap.Int64("id", m.ID), zap.Int64("remote_id", remoteID))
		s.publish("send.delivered", m)
	}
}

func (s *Sender) publish(kind string, m *store.Message) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{
		Kind:      kind,
		Timestamp: time.Now(),
		Payload:   bus.MessageRef{ID: m.ID, DID: m.DID, Contact: m.Contact},
	})
}
