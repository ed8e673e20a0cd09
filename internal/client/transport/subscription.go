package transport

import (
	"sync"
	"sync/atomic"
)

type Handler func(Event)

// Subscription is the handle returned by On. Releasing it is idempotent and
// takes effect immediately, including for a dispatch already in progress.
type Subscription struct {
	name     string
	handler  Handler
	registry *Registry
	released atomic.Bool
}

func (s *Subscription) Release() {
	if s == nil || !s.released.CompareAndSwap(false, true) {
		return
	}
	s.registry.remove(s)
}

func (s *Subscription) Active() bool {
	return s != nil && !s.released.Load()
}

// Registry keeps listeners per event name. It is embedded by the transports.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string][]*Subscription
}

func (r *Registry) On(name string, h Handler) *Subscription {
	sub := &Subscription{name: name, handler: h, registry: r}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handlers == nil {
		r.handlers = make(map[string][]*Subscription)
	}
	r.handlers[name] = append(r.handlers[name], sub)
	return sub
}

func (r *Registry) remove(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := r.handlers[sub.name]
	for i, s := range subs {
		if s == sub {
			r.handlers[sub.name] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(r.handlers[sub.name]) == 0 {
		delete(r.handlers, sub.name)
	}
}

// Count returns how many listeners are registered for name.
func (r *Registry) Count(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[name])
}

// Dispatch runs every active listener for ev.Type in registration order.
func (r *Registry) Dispatch(ev Event) {
	r.mu.RLock()
	subs := append([]*Subscription(nil), r.handlers[ev.Type]...)
	r.mu.RUnlock()

	for _, s := range subs {
		if s.Active() {
			s.handler(ev)
		}
	}
}

// Group releases a batch of subscriptions together.
type Group struct {
	mu   sync.Mutex
	subs []*Subscription
}

func (g *Group) Add(subs ...*Subscription) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subs = append(g.subs, subs...)
}

func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs)
}

func (g *Group) ReleaseAll() {
	g.mu.Lock()
	subs := g.subs
	g.subs = nil
	g.mu.Unlock()

	for _, s := range subs {
		s.Release()
	}
}
