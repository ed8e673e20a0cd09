// Package status advances message delivery states. It holds no state of its
// own: every function takes a conversation value and returns a new one.
package status

import "github.com/cloudzz-dev/cldzchat/internal/client/models"

// Advance returns next when it is strictly later than current.
func Advance(current, next models.Status) (models.Status, bool) {
	if !next.Valid() || !next.After(current) {
		return current, false
	}
	return next, true
}

// Apply moves the message with messageID in conv to next. The returned
// conversation shares nothing mutable with conv. Unknown messages and
// backward transitions leave conv untouched and report false.
func Apply(conv models.Conversation, messageID string, next models.Status) (models.Conversation, bool) {
	idx := conv.FindMessage(messageID)
	if idx < 0 {
		return conv, false
	}
	advanced, ok := Advance(conv.Messages[idx].Status, next)
	if !ok {
		return conv, false
	}

	msgs := make([]models.Message, len(conv.Messages))
	copy(msgs, conv.Messages)
	msgs[idx].Status = advanced
	return withMessages(conv, msgs), true
}

// ApplyFrom advances every message authored by senderID to next.
func ApplyFrom(conv models.Conversation, senderID string, next models.Status) (models.Conversation, bool) {
	var msgs []models.Message
	for i, m := range conv.Messages {
		if m.SenderID != senderID {
			continue
		}
		advanced, ok := Advance(m.Status, next)
		if !ok {
			continue
		}
		if msgs == nil {
			msgs = make([]models.Message, len(conv.Messages))
			copy(msgs, conv.Messages)
		}
		msgs[i].Status = advanced
	}
	if msgs == nil {
		return conv, false
	}
	return withMessages(conv, msgs), true
}

func withMessages(conv models.Conversation, msgs []models.Message) models.Conversation {
	conv.Messages = msgs
	if n := len(msgs); n > 0 && conv.LastMessage != nil && conv.LastMessage.ID == msgs[n-1].ID {
		last := msgs[n-1]
		conv.LastMessage = &last
	}
	return conv
}
