package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/cloudzz-dev/cldzchat/internal/client/debug"
	"github.com/cloudzz-dev/cldzchat/internal/client/models"
)

var ErrNoStore = errors.New("session: no persister configured")

// Persister stores the identity between runs.
type Persister interface {
	Load() *models.Identity
	Save(models.Identity) error
	Clear() error
}

// Listener is told about session boundaries. SessionStopping runs while
// the old identity is still current; SessionStopped runs after it has been
// cleared from the persister.
type Listener interface {
	SessionStarted(ctx context.Context, id models.Identity) error
	SessionStopping(id models.Identity)
	SessionStopped()
}

type Manager struct {
	store    Persister
	listener Listener
	log      *log.Logger

	mu      sync.Mutex
	current *models.Identity
}

func NewManager(store Persister, listener Listener, logger *log.Logger) *Manager {
	return &Manager{store: store, listener: listener, log: debug.OrDiscard(logger)}
}

// Restore resumes a persisted identity if one exists.
func (m *Manager) Restore(ctx context.Context) (models.Identity, bool) {
	if m.store == nil {
		return models.Identity{}, false
	}
	id := m.store.Load()
	if id == nil {
		return models.Identity{}, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.startLocked(ctx, *id); err != nil {
		m.log.Printf("session: restore %s: %v", id.ID, err)
		return models.Identity{}, false
	}
	m.log.Printf("session: restored %s", id.ID)
	return *id, true
}

// Login installs id as the current identity and persists it. Any session
// already in place is logged out first.
func (m *Manager) Login(ctx context.Context, id models.Identity) error {
	id.ID = strings.TrimSpace(id.ID)
	id.Name = strings.TrimSpace(id.Name)
	if err := id.Validate(); err != nil {
		return fmt.Errorf("invalid identity: %w", err)
	}
	if m.store == nil {
		return ErrNoStore
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.logoutLocked()
	}
	if err := m.store.Save(id); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if err := m.startLocked(ctx, id); err != nil {
		_ = m.store.Clear()
		return err
	}
	m.log.Printf("session: logged in as %s", id.ID)
	return nil
}

func (m *Manager) startLocked(ctx context.Context, id models.Identity) error {
	if m.listener != nil {
		if err := m.listener.SessionStarted(ctx, id); err != nil {
			return err
		}
	}
	m.current = &id
	return nil
}

// Logout ends the current session. It is a no-op without one.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logoutLocked()
}

func (m *Manager) logoutLocked() {
	if m.current == nil {
		return
	}
	id := *m.current
	if m.listener != nil {
		m.listener.SessionStopping(id)
	}
	if m.store != nil {
		if err := m.store.Clear(); err != nil {
			m.log.Printf("session: clear: %v", err)
		}
	}
	m.current = nil
	if m.listener != nil {
		m.listener.SessionStopped()
	}
	m.log.Printf("session: logged out %s", id.ID)
}

func (m *Manager) Current() (models.Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return models.Identity{}, false
	}
	return *m.current, true
}
