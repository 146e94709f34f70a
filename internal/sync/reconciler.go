package sync

import (
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/vsms/internal/bus"
	"github.com/matheus3301/vsms/internal/search"
	"github.com/matheus3301/vsms/internal/shortcut"
	"github.com/matheus3301/vsms/internal/store"
)

// Reconciler merges batches of externally-sourced messages into the
// store and fans the results out to the collaborators that cannot live
// inside the transaction: the search index, the shortcut surface, and
// the event bus. Those run only after the merge commits; their failures
// are logged and swallowed.
type Reconciler struct {
	store     *store.Store
	indexer   search.Indexer
	shortcuts shortcut.Publisher
	bus       *bus.Bus
	logger    *zap.Logger
	dids      []string
}

// NewReconciler creates a reconciler. indexer and shortcuts may be nil
// when those surfaces are not wired.
func NewReconciler(s *store.Store, indexer search.Indexer, shortcuts shortcut.Publisher, b *bus.Bus, logger *zap.Logger, dids []string) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		store:     s,
		indexer:   indexer,
		shortcuts: shortcuts,
		bus:       b,
		logger:    logger,
		dids:      dids,
	}
}

// Apply merges one ordered batch as a single transaction and returns the
// conversations that received at least one new row. A failure anywhere in
// the batch rolls the whole batch back.
func (r *Reconciler) Apply(batch []store.RemoteMessage, retrieveDeleted bool) ([]store.ConversationID, error) {
	res, err := r.store.MergeRemoteBatch(batch, retrieveDeleted)
	if err != nil {
		return nil, err
	}
	if len(res.Inserted) == 0 {
		return nil, nil
	}

	for i := range res.Inserted {
		m := &res.Inserted[i]
		if r.indexer != nil {
			if err := r.indexer.Add(m); err != nil {
				r.logger.Warn("failed to index message", zap.Error(err), zap.Int64("id", m.ID))
			}
		}
		if r.bus != nil {
			r.bus.Publish(bus.Event{
				Kind:      "store.message_inserted",
				Timestamp: time.Now(),
				Payload:   bus.MessageRef{ID: m.ID, DID: m.DID, Contact: m.Contact},
			})
		}
	}

	r.refreshShortcuts()

	if r.bus != nil {
		r.bus.Publish(bus.Event{
			Kind:      "sync.batch_applied",
			Timestamp: time.Now(),
			Payload: bus.BatchApplied{
				Inserted:      len(res.Inserted),
				Conversations: len(res.Conversations),
			},
		})
	}
	r.logger.Info("sync batch applied",
		zap.Int("inserted", len(res.Inserted)),
		zap.Int("conversations", len(res.Conversations)))
	return res.Conversations, nil
}

// DeleteMessage removes one message and, after the commit, drops its
// index entry and announces the deletion. Unknown ids are a no-op.
func (r *Reconciler) DeleteMessage(id int64) error {
	m, err := r.store.DeleteMessage(id)
	if err != nil {
		return err
	}
	if m == nil {
		return nil
	}
	if r.indexer != nil {
		if err := r.indexer.Remove(m.ID); err != nil {
			r.logger.Warn("failed to unindex message", zap.Error(err), zap.Int64("id", m.ID))
		}
	}
	if r.bus != nil {
		r.bus.Publish(bus.Event{
			Kind:      "store.message_deleted",
			Timestamp: time.Now(),
			Payload:   bus.MessageRef{ID: m.ID, DID: m.DID, Contact: m.Contact},
		})
	}
	r.refreshShortcuts()
	return nil
}

// DeleteConversation removes a whole conversation, then cleans the index
// entries for every removed row and refreshes the shortcut surface.
func (r *Reconciler) DeleteConversation(conv store.ConversationID) error {
	ids, err := r.store.DeleteConversation(conv)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if r.indexer != nil {
			if err := r.indexer.Remove(id); err != nil {
				r.logger.Warn("failed to unindex message", zap.Error(err), zap.Int64("id", id))
			}
		}
		if r.bus != nil {
			r.bus.Publish(bus.Event{
				Kind:      "store.message_deleted",
				Timestamp: time.Now(),
				Payload:   bus.MessageRef{ID: id, DID: conv.DID, Contact: conv.Contact},
			})
		}
	}
	r.refreshShortcuts()
	return nil
}

// RebuildIndex re-derives the search index from the stored messages.
// Run after a snapshot import, when the index file no longer matches.
func (r *Reconciler) RebuildIndex() error {
	if r.indexer == nil {
		return nil
	}
	msgs, err := r.store.AllMessages()
	if err != nil {
		return err
	}
	return r.indexer.Rebuild(msgs)
}

// Reset clears the whole store and the index with it.
func (r *Reconciler) Reset() error {
	if err := r.store.DeleteAll(); err != nil {
		return err
	}
	if r.indexer != nil {
		if err := r.indexer.RemoveAll(); err != nil {
			r.logger.Warn("failed to clear index", zap.Error(err))
		}
	}
	r.refreshShortcuts()
	return nil
}

func (r *Reconciler) refreshShortcuts() {
	if r.shortcuts == nil || len(r.dids) == 0 {
		return
	}
	recent, err := r.store.MostRecentPerConversation(r.dids, "", nil)
	if err != nil {
		r.logger.Warn("failed to read conversations for shortcuts", zap.Error(err))
		return
	}
	if err := r.shortcuts.Refresh(recent); err != nil {
		r.logger.Warn("shortcut refresh failed", zap.Error(err))
	}
}
