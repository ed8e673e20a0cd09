// Package bootstrap sources the conversation list installed when a session
// starts. Where the list comes from is up to the Loader; the file loader
// reads a TOML seed so a client can start with known conversations.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/cloudzz-dev/cldzchat/internal/client/models"
)

// Loader returns the conversations for a freshly started session.
type Loader interface {
	Load(ctx context.Context, id models.Identity) ([]models.Conversation, error)
}

// Static always returns the same conversations.
type Static []models.Conversation

func (s Static) Load(context.Context, models.Identity) ([]models.Conversation, error) {
	out := make([]models.Conversation, len(s))
	copy(out, s)
	return out, nil
}

// File reads conversations from a TOML seed file. An empty Path or a missing
// file yields no conversations.
type File struct {
	Path string
}

type seedFile struct {
	Conversations []seedConversation `toml:"conversation"`
}

type seedConversation struct {
	ID           string        `toml:"id"`
	Name         string        `toml:"name"`
	Avatar       string        `toml:"avatar"`
	IsGroup      bool          `toml:"is_group"`
	PeerID       string        `toml:"peer_id"`
	Participants []string      `toml:"participants"`
	UnreadCount  int           `toml:"unread_count"`
	CreatedAt    time.Time     `toml:"created_at"`
	Messages     []seedMessage `toml:"message"`
}

type seedMessage struct {
	ID         string    `toml:"id"`
	Content    string    `toml:"content"`
	Timestamp  time.Time `toml:"timestamp"`
	SenderID   string    `toml:"sender_id"`
	SenderName string    `toml:"sender_name"`
	Type       string    `toml:"type"`
	Status     string    `toml:"status"`
}

func (f File) Load(ctx context.Context, id models.Identity) ([]models.Conversation, error) {
	path := strings.TrimSpace(f.Path)
	if path == "" {
		return nil, nil
	}
	path, err := expandPath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open seed: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var raw seedFile
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}

	convs := make([]models.Conversation, 0, len(raw.Conversations))
	for _, sc := range raw.Conversations {
		conv := models.Conversation{
			ID:           strings.TrimSpace(sc.ID),
			Name:         strings.TrimSpace(sc.Name),
			Avatar:       sc.Avatar,
			IsGroup:      sc.IsGroup,
			PeerID:       sc.PeerID,
			Participants: sc.Participants,
			UnreadCount:  sc.UnreadCount,
			CreatedAt:    sc.CreatedAt,
		}
		for _, sm := range sc.Messages {
			msg := models.Message{
				ID:         sm.ID,
				ChatID:     conv.ID,
				Content:    sm.Content,
				Timestamp:  sm.Timestamp,
				SenderID:   sm.SenderID,
				SenderName: sm.SenderName,
				Type:       models.MessageType(sm.Type),
				Status:     models.Status(sm.Status),
			}
			if msg.SenderID == id.ID && msg.SenderName == "" {
				msg.SenderName = id.Name
			}
			conv.Messages = append(conv.Messages, msg)
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}
