package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Identity is the logged-in user.
type Identity struct {
	ID     string `json:"id" validate:"required,max=64"`
	Name   string `json:"name" validate:"required,max=64"`
	Avatar string `json:"avatar,omitempty"`
}

func (i Identity) Validate() error {
	return validate.Struct(i)
}

// Peer is the counterpart picked when starting a new chat.
type Peer struct {
	ID       string `json:"id"`
	Name     string `json:"name" validate:"required,max=64"`
	IsOnline bool   `json:"isOnline"`
}

type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageAudio    MessageType = "audio"
	MessageVideo    MessageType = "video"
	MessageDocument MessageType = "document"
)

type Message struct {
	ID         string      `json:"id" validate:"required"`
	ChatID     string      `json:"chatId" validate:"required"`
	Content    string      `json:"content"`
	Timestamp  time.Time   `json:"timestamp"`
	SenderID   string      `json:"senderId" validate:"required"`
	SenderName string      `json:"senderName"`
	Type       MessageType `json:"type" validate:"omitempty,oneof=text image audio video document"`
	Status     Status      `json:"status,omitempty"`
}

func (m Message) Validate() error {
	return validate.Struct(m)
}

type Conversation struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Avatar          string    `json:"avatar"`
	IsGroup         bool      `json:"isGroup"`
	PeerID          string    `json:"peerId,omitempty"`
	Participants    []string  `json:"participants,omitempty"`
	Messages        []Message `json:"messages"`
	LastMessage     *Message  `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	CreatedAt       time.Time `json:"createdAt"`
	UnreadCount     int       `json:"unreadCount"`
	IsOnline        bool      `json:"isOnline,omitempty"`
	LastSeen        time.Time `json:"lastSeen,omitempty"`
}

// FindMessage returns the index of the message with the given id, or -1.
func (c Conversation) FindMessage(id string) int {
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			return i
		}
	}
	return -1
}

// Initials builds the two-letter avatar used when none is provided.
func Initials(name string) string {
	r := []rune(strings.TrimSpace(name))
	if len(r) > 2 {
		r = r[:2]
	}
	return strings.ToUpper(string(r))
}

// --- Wire payloads ---

// Receipt identifies a single message for delivery and read events.
type Receipt struct {
	MessageID string `json:"messageId" validate:"required"`
	ChatID    string `json:"chatId" validate:"required"`
}

func (r Receipt) Validate() error {
	return validate.Struct(r)
}

// ReadMark is sent when the local user opens a chat with unread messages, and
// received when a peer has read the local user's messages.
type ReadMark struct {
	ChatID string `json:"chatId" validate:"required"`
	UserID string `json:"userId" validate:"required"`
}

func (r ReadMark) Validate() error {
	return validate.Struct(r)
}

type ChatRef struct {
	ChatID string `json:"chatId"`
}

type Typing struct {
	ChatID   string `json:"chatId" validate:"required"`
	UserID   string `json:"userId" validate:"required"`
	UserName string `json:"userName,omitempty"`
}

func (t Typing) Validate() error {
	return validate.Struct(t)
}

type UserStatus struct {
	UserID   string `json:"user_id" validate:"required"`
	IsOnline bool   `json:"is_online"`
}

func (u UserStatus) Validate() error {
	return validate.Struct(u)
}
