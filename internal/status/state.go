package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/vsms/internal/bus"
)

// State represents a daemon runtime state.
type State string

const (
	Booting   State = "BOOTING"
	Ready     State = "READY"
	Syncing   State = "SYNCING"
	Restoring State = "RESTORING" // snapshot import/export in flight
	Degraded  State = "DEGRADED"
	Error     State = "ERROR"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Booting:   {Ready, Error},
	Ready:     {Syncing, Restoring, Error},
	Syncing:   {Ready, Degraded, Error},
	Restoring: {Ready, Error},
	Degraded:  {Syncing, Ready, Error},
	Error:     {Booting},
}

// StatusChange is the payload of daemon.status_changed events.
type StatusChange struct {
	From State
	To   State
}

// Machine tracks and enforces daemon runtime state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a state machine starting in Booting.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{current: Booting, bus: b}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns an error if the
// transition is not allowed.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      "daemon.status_changed",
			Timestamp: time.Now(),
			Payload:   StatusChange{From: from, To: to},
		})
	}
	return nil
}
