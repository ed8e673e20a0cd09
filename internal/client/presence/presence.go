package presence

import (
	"sort"
	"sync"
	"time"
)

// Tracker holds the authoritative online set received from the server.
// Each snapshot replaces the set wholesale.
type Tracker struct {
	mu       sync.RWMutex
	online   map[string]bool
	lastSeen map[string]time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		online:   make(map[string]bool),
		lastSeen: make(map[string]time.Time),
	}
}

// ApplySnapshot replaces the online set. Users missing from userIDs that were
// online before get a last-seen time of at.
func (t *Tracker) ApplySnapshot(userIDs []string, at time.Time) {
	next := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		if id != "" {
			next[id] = true
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for id := range t.online {
		if !next[id] {
			t.lastSeen[id] = at
		}
	}
	t.online = next
}

// NoteStatus records a single user's status change. Only the last-seen time
// is kept; membership of the online set is left to snapshots.
func (t *Tracker) NoteStatus(userID string, online bool, at time.Time) {
	if online {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSeen[userID] = at
}

func (t *Tracker) IsOnline(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.online[userID]
}

func (t *Tracker) LastSeen(userID string) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ts, ok := t.lastSeen[userID]
	return ts, ok
}

// Online returns the sorted ids of everyone currently online.
func (t *Tracker) Online() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.online))
	for id := range t.online {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Reset forgets everything, used when the session ends.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.online = make(map[string]bool)
	t.lastSeen = make(map[string]time.Time)
}
