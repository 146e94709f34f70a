package shortcut

import (
	"testing"

	"github.com/matheus3301/vsms/internal/bus"
	"github.com/matheus3301/vsms/internal/store"
)

func recent(n int) []store.Message {
	out := make([]store.Message, n)
	for i := range out {
		out[i] = store.Message{ID: int64(i + 1), DID: "5551234567", Contact: "5559876543"}
	}
	return out
}

func TestRefreshTruncatesToCount(t *testing.T) {
	b := bus.New()
	events, cancel := b.Subscribe("shortcut.", 4)
	defer cancel()

	p := &BusPublisher{Bus: b, Count: 2}
	if err := p.Refresh(recent(5)); err != nil {
		t.Fatal(err)
	}

	evt := <-events
	if evt.Kind != "shortcut.refresh" {
		t.Fatalf("unexpected kind %s", evt.Kind)
	}
	top, ok := evt.Payload.([]store.Message)
	if !ok {
		t.Fatalf("unexpected payload %T", evt.Payload)
	}
	if len(top) != 2 {
		t.Errorf("expected 2 entries, got %d", len(top))
	}
	if top[0].ID != 1 {
		t.Errorf("expected order preserved, got id %d first", top[0].ID)
	}
}

func TestRefreshDefaultCount(t *testing.T) {
	b := bus.New()
	events, cancel := b.Subscribe("shortcut.", 4)
	defer cancel()

	p := &BusPublisher{Bus: b}
	if err := p.Refresh(recent(6)); err != nil {
		t.Fatal(err)
	}

	evt := <-events
	if top := evt.Payload.([]store.Message); len(top) != 4 {
		t.Errorf("expected default of 4 entries, got %d", len(top))
	}
}

func TestRefreshFewerThanCount(t *testing.T) {
	b := bus.New()
	events, cancel := b.Subscribe("shortcut.", 4)
	defer cancel()

	p := &BusPublisher{Bus: b, Count: 4}
	if err := p.Refresh(recent(1)); err != nil {
		t.Fatal(err)
	}

	evt := <-events
	if top := evt.Payload.([]store.Message); len(top) != 1 {
		t.Errorf("expected 1 entry, got %d", len(top))
	}
}
