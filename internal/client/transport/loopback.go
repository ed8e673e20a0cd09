package transport

import "sync"

// Loopback is an in-memory Conn. Emitted events are recorded instead of
// sent, and inbound events are injected with Deliver. It backs the offline
// mode of the client and the controller tests.
type Loopback struct {
	Registry

	mu        sync.Mutex
	connected bool
	emitted   []Event
}

var _ Conn = (*Loopback)(nil)

func NewLoopback() *Loopback {
	return &Loopback{}
}

func (l *Loopback) Emit(name string, payload any) error {
	ev, err := NewEvent(name, payload)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.connected {
		return ErrNotConnected
	}
	l.emitted = append(l.emitted, ev)
	return nil
}

// Connect marks the loopback up and dispatches "connect".
func (l *Loopback) Connect() {
	l.mu.Lock()
	l.connected = true
	l.mu.Unlock()
	l.Dispatch(Event{Type: EventConnect})
}

// Disconnect marks the loopback down and dispatches "disconnect".
func (l *Loopback) Disconnect() {
	l.mu.Lock()
	l.connected = false
	l.mu.Unlock()
	l.Dispatch(Event{Type: EventDisconnect})
}

// Deliver injects an inbound event.
func (l *Loopback) Deliver(name string, payload any) error {
	ev, err := NewEvent(name, payload)
	if err != nil {
		return err
	}
	l.Dispatch(ev)
	return nil
}

// Emitted returns a copy of everything emitted so far.
func (l *Loopback) Emitted() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.emitted...)
}

// Named returns the emitted events of one type.
func (l *Loopback) Named(name string) []Event {
	var out []Event
	for _, ev := range l.Emitted() {
		if ev.Type == name {
			out = append(out, ev)
		}
	}
	return out
}

// Reset forgets recorded emissions.
func (l *Loopback) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.emitted = nil
}
