package shortcut

import (
	"time"

	"github.com/matheus3301/vsms/internal/bus"
	"github.com/matheus3301/vsms/internal/store"
)

// Publisher pushes the most recent conversations to whatever platform
// surface exposes them (launcher shortcuts, notification groups). Refresh
// runs after any mutation that could change the top conversations; it is
// best effort and its errors are logged and swallowed by callers, since a
// platform quota hit must not block a committed data mutation.
type Publisher interface {
	Refresh(mostRecent []store.Message) error
}

// BusPublisher publishes shortcut refreshes on the event bus, truncated
// to the top Count conversations.
type BusPublisher struct {
	Bus   *bus.Bus
	Count int
}

// Refresh publishes a shortcut.refresh event carrying the top entries.
func (p *BusPublisher) Refresh(mostRecent []store.Message) error {
	count := p.Count
	if count <= 0 {
		count = 4
	}
	if len(mostRecent) > count {
		mostRecent = mostRecent[:count]
	}
	p.Bus.Publish(bus.Event{
		Kind:      "shortcut.refresh",
		Timestamp: time.Now(),
		Payload:   mostRecent,
	})
	return nil
}
