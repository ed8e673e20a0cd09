// Package chatsync binds the transport to the conversation store.
//
// Two inputs change state: inbound events from the server and intents from
// the local user. Both run to completion one at a time under the
// controller's lock, and every change produces a new immutable store
// snapshot. Listeners for server events are registered per session and
// released together on logout; a session epoch makes any handler that was
// already in flight at that moment inert.
package chatsync

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cloudzz-dev/cldzchat/internal/client/bootstrap"
	"github.com/cloudzz-dev/cldzchat/internal/client/debug"
	"github.com/cloudzz-dev/cldzchat/internal/client/models"
	"github.com/cloudzz-dev/cldzchat/internal/client/presence"
	"github.com/cloudzz-dev/cldzchat/internal/client/store"
	"github.com/cloudzz-dev/cldzchat/internal/client/transport"
)

// Options configure a Controller. Zero values use defaults.
type Options struct {
	Logger *log.Logger
	Now    func() time.Time
	NewID  func() string
}

type Controller struct {
	conn     transport.Conn
	loader   bootstrap.Loader
	log      *log.Logger
	now      func() time.Time
	newID    func() string
	presence *presence.Tracker
	changes  chan struct{}

	mu         sync.RWMutex
	identity   *models.Identity
	store      *store.Store
	connected  bool
	epoch      uint64
	typing     map[string]map[string]string
	selfTyping string
	lifecycle  transport.Group
	session    transport.Group
	started    bool
}

func New(conn transport.Conn, loader bootstrap.Loader, opts Options) *Controller {
	if loader == nil {
		loader = bootstrap.Static(nil)
	}
	c := &Controller{
		conn:     conn,
		loader:   loader,
		log:      debug.OrDiscard(opts.Logger),
		now:      opts.Now,
		newID:    opts.NewID,
		presence: presence.NewTracker(),
		changes:  make(chan struct{}, 1),
		store:    store.New(""),
		typing:   make(map[string]map[string]string),
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	return c
}

// Init registers the connection listeners. They live until Close.
func (c *Controller) Init() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true
	c.lifecycle.Add(
		c.conn.On(transport.EventConnect, c.onConnect),
		c.conn.On(transport.EventDisconnect, c.onDisconnect),
	)
}

// Close releases every listener and drops all session state.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.lifecycle.ReleaseAll()
	c.started = false
	c.notify()
}

// Changes signals after every state change. Signals are coalesced.
func (c *Controller) Changes() <-chan struct{} {
	return c.changes
}

func (c *Controller) notify() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

func (c *Controller) setStore(next *store.Store) {
	if next == c.store {
		return
	}
	c.store = next
	c.notify()
}

func (c *Controller) emit(name string, payload any) bool {
	if err := c.conn.Emit(name, payload); err != nil {
		c.log.Printf("sync: emit %s: %v", name, err)
		return false
	}
	return true
}

// --- Session lifecycle ---

// SessionStarted installs a session for id: it loads the conversation list,
// subscribes the event listeners and announces the user online. A session
// already in place is stopped first.
func (c *Controller) SessionStarted(ctx context.Context, id models.Identity) error {
	convs, err := c.loader.Load(ctx, id)
	if err != nil {
		c.log.Printf("sync: bootstrap for %s failed, starting empty: %v", id.ID, err)
		convs = nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity != nil {
		c.stopLocked()
	}

	c.epoch++
	ident := id
	c.identity = &ident
	c.store = store.New(id.ID).Replace(convs, c.now()).Annotate(c.presence)
	c.subscribeLocked(c.epoch)
	c.announceLocked()
	c.notify()
	return nil
}

// SessionStopping announces the user offline while the identity is still valid.
func (c *Controller) SessionStopping(id models.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity != nil {
		id = *c.identity
	}
	c.stopTypingLocked()
	c.emit(transport.EventUserOffline, id)
}

// SessionStopped drops the session: listeners are released and the store
// and active selection are cleared in one step.
func (c *Controller) SessionStopped() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.notify()
}

func (c *Controller) stopLocked() {
	c.session.ReleaseAll()
	c.epoch++
	c.identity = nil
	c.store = store.New("")
	c.typing = make(map[string]map[string]string)
	c.selfTyping = ""
	c.presence.Reset()
}

func (c *Controller) announceLocked() {
	if c.identity == nil {
		return
	}
	if !c.emit(transport.EventUserOnline, *c.identity) {
		return
	}
	for _, conv := range c.store.ListAll() {
		c.emit(transport.EventJoinChat, models.ChatRef{ChatID: conv.ID})
	}
}

// --- Reads ---

// Snapshot returns the current immutable store.
func (c *Controller) Snapshot() *store.Store {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store
}

func (c *Controller) ListAll() []models.Conversation {
	return c.Snapshot().ListAll()
}

func (c *Controller) Get(chatID string) (models.Conversation, bool) {
	return c.Snapshot().Get(chatID)
}

func (c *Controller) Active() (models.Conversation, bool) {
	return c.Snapshot().Active()
}

func (c *Controller) IsOnline(userID string) bool {
	return c.presence.IsOnline(userID)
}

func (c *Controller) OnlineUsers() []string {
	return c.presence.Online()
}

func (c *Controller) Connectivity() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Controller) Identity() (models.Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return models.Identity{}, false
	}
	return *c.identity, true
}

// Typing returns the sorted names of peers typing in chatID.
func (c *Controller) Typing(chatID string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.typing[chatID]))
	for id, name := range c.typing[chatID] {
		if name == "" {
			name = id
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// --- Intents ---

// SendMessage appends a new message to the active conversation and emits
// it. Nothing happens without a session, without an active conversation,
// or when content is blank.
func (c *Controller) SendMessage(content string, typ models.MessageType) (models.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.identity == nil || strings.TrimSpace(content) == "" {
		return models.Message{}, false
	}
	active := c.store.ActiveID()
	if active == "" {
		return models.Message{}, false
	}
	if typ == "" {
		typ = models.MessageText
	}

	msg := models.Message{
		ID:         c.newID(),
		ChatID:     active,
		Content:    content,
		Timestamp:  c.now(),
		SenderID:   c.identity.ID,
		SenderName: c.identity.Name,
		Type:       typ,
		Status:     models.StatusSent,
	}
	next, ok := c.store.AppendMessage(active, msg)
	if !ok {
		c.log.Printf("sync: local message id %s collided, not sent", msg.ID)
		return models.Message{}, false
	}
	c.setStore(next)
	c.stopTypingLocked()
	c.emit(transport.EventSendMessage, msg)
	return msg, true
}

// SelectChat makes chatID active. When it had unread messages the server is
// told they were read.
func (c *Controller) SelectChat(chatID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.identity == nil {
		return false
	}
	next, unread := c.store.SelectActive(chatID)
	if next.ActiveID() != chatID {
		return false
	}
	if c.selfTyping != chatID {
		c.stopTypingLocked()
	}
	c.setStore(next)
	if unread > 0 {
		c.emit(transport.EventMarkMessagesRead, models.ReadMark{ChatID: chatID, UserID: c.identity.ID})
	}
	return true
}

// CreateChat starts and selects a direct conversation with peer.
func (c *Controller) CreateChat(peer models.Peer) (models.Conversation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.identity == nil {
		return models.Conversation{}, false
	}
	peer.Name = strings.TrimSpace(peer.Name)
	if peer.Name == "" {
		return models.Conversation{}, false
	}
	if peer.ID != "" && c.presence.IsOnline(peer.ID) {
		peer.IsOnline = true
	}

	c.stopTypingLocked()
	next, conv := c.store.CreateConversation(peer, c.now())
	c.setStore(next)
	c.emit(transport.EventJoinChat, models.ChatRef{ChatID: conv.ID})
	return conv, true
}

// StartTyping tells peers in the active conversation that the user is typing.
func (c *Controller) StartTyping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.identity == nil {
		return false
	}
	active := c.store.ActiveID()
	if active == "" {
		return false
	}
	if c.selfTyping == active {
		return true
	}
	c.stopTypingLocked()
	if !c.emit(transport.EventTypingStart, c.typingPayload(active)) {
		return false
	}
	c.selfTyping = active
	return true
}

func (c *Controller) StopTyping() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTypingLocked()
}

func (c *Controller) stopTypingLocked() {
	if c.selfTyping == "" || c.identity == nil {
		c.selfTyping = ""
		return
	}
	c.emit(transport.EventTypingStop, c.typingPayload(c.selfTyping))
	c.selfTyping = ""
}

func (c *Controller) typingPayload(chatID string) models.Typing {
	return models.Typing{ChatID: chatID, UserID: c.identity.ID, UserName: c.identity.Name}
}
