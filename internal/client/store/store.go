package store

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/cloudzz-dev/cldzchat/internal/client/models"
	"github.com/cloudzz-dev/cldzchat/internal/client/status"
)

// Presence is the read side of the presence tracker.
type Presence interface {
	IsOnline(userID string) bool
	LastSeen(userID string) (time.Time, bool)
}

// Store is an immutable, ordered set of conversations plus the active
// selection. Every mutation returns a new Store; a mutation that changes
// nothing returns the receiver so callers can detect changes by pointer.
//
// Values reachable from a Store (conversations, message slices, last message
// pointers) are never modified after the Store is built.
type Store struct {
	self   string
	active string
	convs  []models.Conversation
}

// New returns an empty store for the local user selfID.
func New(selfID string) *Store {
	return &Store{self: selfID}
}

// Self is the local user's id.
func (s *Store) Self() string { return s.self }

// ActiveID is the id of the selected conversation, or "".
func (s *Store) ActiveID() string { return s.active }

func (s *Store) Len() int { return len(s.convs) }

// ListAll returns the conversations in display order.
func (s *Store) ListAll() []models.Conversation {
	return slices.Clone(s.convs)
}

func (s *Store) Get(chatID string) (models.Conversation, bool) {
	i := s.index(chatID)
	if i < 0 {
		return models.Conversation{}, false
	}
	return s.convs[i], true
}

// Active returns the selected conversation.
func (s *Store) Active() (models.Conversation, bool) {
	if s.active == "" {
		return models.Conversation{}, false
	}
	return s.Get(s.active)
}

func (s *Store) index(chatID string) int {
	if chatID == "" {
		return -1
	}
	for i := range s.convs {
		if s.convs[i].ID == chatID {
			return i
		}
	}
	return -1
}

func (s *Store) with(i int, conv models.Conversation) *Store {
	next := &Store{self: s.self, active: s.active, convs: slices.Clone(s.convs)}
	next.convs[i] = conv
	return next
}

// Replace swaps in a freshly loaded conversation list. Invariants on each
// conversation (last message, avatar, non-negative unread) are restored.
func (s *Store) Replace(convs []models.Conversation, now time.Time) *Store {
	next := &Store{self: s.self, convs: make([]models.Conversation, 0, len(convs))}
	seen := make(map[string]bool, len(convs))
	for _, c := range convs {
		c = normalize(c, now)
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		next.convs = append(next.convs, c)
	}
	if next.index(s.active) >= 0 {
		next.active = s.active
	}
	return next
}

func normalize(c models.Conversation, now time.Time) models.Conversation {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Avatar == "" {
		c.Avatar = models.Initials(c.Name)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UnreadCount < 0 {
		c.UnreadCount = 0
	}
	c.Participants = slices.Clone(c.Participants)

	msgs := make([]models.Message, 0, len(c.Messages))
	ids := make(map[string]bool, len(c.Messages))
	for _, m := range c.Messages {
		if ids[m.ID] {
			continue
		}
		ids[m.ID] = true
		m.ChatID = c.ID
		if !m.Status.Valid() {
			m.Status = models.StatusSent
		}
		if m.Type == "" {
			m.Type = models.MessageText
		}
		msgs = append(msgs, m)
	}
	c.Messages = msgs

	c.LastMessage = nil
	c.LastMessageTime = c.CreatedAt
	if n := len(msgs); n > 0 {
		last := msgs[n-1]
		c.LastMessage = &last
		c.LastMessageTime = last.Timestamp
	}
	return c
}

// AppendMessage adds msg to the end of conversation chatID. A message whose
// id is already present is ignored, which makes replays and echoes of the
// local user's own messages harmless. The unread counter grows only for
// messages from someone else while the conversation is not active.
func (s *Store) AppendMessage(chatID string, msg models.Message) (*Store, bool) {
	i := s.index(chatID)
	if i < 0 {
		return s, false
	}
	conv := s.convs[i]
	if conv.FindMessage(msg.ID) >= 0 {
		return s, false
	}

	msg.ChatID = chatID
	msgs := make([]models.Message, len(conv.Messages), len(conv.Messages)+1)
	copy(msgs, conv.Messages)
	conv.Messages = append(msgs, msg)

	last := msg
	conv.LastMessage = &last
	conv.LastMessageTime = msg.Timestamp
	if chatID != s.active && msg.SenderID != s.self {
		conv.UnreadCount++
	}
	return s.with(i, conv), true
}

// UpdateMessageStatus advances one message. Unknown conversations or
// messages, and backward moves, return the receiver unchanged.
func (s *Store) UpdateMessageStatus(chatID, messageID string, next models.Status) (*Store, bool) {
	i := s.index(chatID)
	if i < 0 {
		return s, false
	}
	conv, ok := status.Apply(s.convs[i], messageID, next)
	if !ok {
		return s, false
	}
	return s.with(i, conv), true
}

// MarkOwnMessages advances every message the local user sent in chatID.
func (s *Store) MarkOwnMessages(chatID string, next models.Status) (*Store, bool) {
	i := s.index(chatID)
	if i < 0 {
		return s, false
	}
	conv, ok := status.ApplyFrom(s.convs[i], s.self, next)
	if !ok {
		return s, false
	}
	return s.with(i, conv), true
}

// SelectActive makes chatID the active conversation and zeroes its unread
// counter in the same step, returning the count it had before.
func (s *Store) SelectActive(chatID string) (*Store, int) {
	i := s.index(chatID)
	if i < 0 {
		return s, 0
	}
	conv := s.convs[i]
	prev := conv.UnreadCount
	if s.active == chatID && prev == 0 {
		return s, 0
	}

	conv.UnreadCount = 0
	next := s.with(i, conv)
	next.active = chatID
	return next, prev
}

// CreateConversation starts a direct conversation with peer, puts it first
// and selects it.
func (s *Store) CreateConversation(peer models.Peer, now time.Time) (*Store, models.Conversation) {
	conv := models.Conversation{
		ID:              uuid.NewString(),
		Name:            peer.Name,
		Avatar:          models.Initials(peer.Name),
		PeerID:          peer.ID,
		Messages:        []models.Message{},
		LastMessageTime: now,
		CreatedAt:       now,
		IsOnline:        peer.IsOnline,
	}

	convs := make([]models.Conversation, 0, len(s.convs)+1)
	convs = append(convs, conv)
	convs = append(convs, s.convs...)
	return &Store{self: s.self, active: conv.ID, convs: convs}, conv
}

// Annotate copies presence onto direct conversations that name a peer.
func (s *Store) Annotate(p Presence) *Store {
	var convs []models.Conversation
	for i, c := range s.convs {
		if c.IsGroup || c.PeerID == "" {
			continue
		}
		online := p.IsOnline(c.PeerID)
		seen, ok := p.LastSeen(c.PeerID)
		if !ok {
			seen = c.LastSeen
		}
		if online == c.IsOnline && seen.Equal(c.LastSeen) {
			continue
		}
		if convs == nil {
			convs = slices.Clone(s.convs)
		}
		convs[i].IsOnline = online
		convs[i].LastSeen = seen
	}
	if convs == nil {
		return s
	}
	return &Store{self: s.self, active: s.active, convs: convs}
}
