package bus

import "time"

// Event is a domain event published on the bus. Kinds in use:
//
//	store.message_inserted    payload MessageRef
//	store.message_deleted     payload MessageRef
//	sync.batch_applied        payload BatchApplied
//	send.delivered            payload MessageRef
//	send.failed               payload MessageRef
//	shortcut.refresh          payload (see internal/shortcut)
//	daemon.status_changed     payload (see internal/status)
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// MessageRef points at one stored message.
type MessageRef struct {
	ID      int64
	DID     string
	Contact string
}

// BatchApplied summarizes one applied sync batch.
type BatchApplied struct {
	Inserted      int
	Conversations int
}
