package chatsync

import (
	"github.com/cloudzz-dev/cldzchat/internal/client/models"
	"github.com/cloudzz-dev/cldzchat/internal/client/transport"
)

type validator interface {
	Validate() error
}

func decode(ev transport.Event, v any) error {
	if err := ev.Decode(v); err != nil {
		return err
	}
	if val, ok := v.(validator); ok {
		return val.Validate()
	}
	return nil
}

// subscribeLocked registers every session-scoped listener under epoch.
func (c *Controller) subscribeLocked(epoch uint64) {
	c.session.Add(
		c.bind(epoch, transport.EventUsersOnline, c.onUsersOnline),
		c.bind(epoch, transport.EventNewMessage, c.onNewMessage),
		c.bind(epoch, transport.EventMessageDelivered, c.onReceipt(models.StatusDelivered)),
		c.bind(epoch, transport.EventMessageRead, c.onReceipt(models.StatusRead)),
		c.bind(epoch, transport.EventMessagesRead, c.onMessagesRead),
		c.bind(epoch, transport.EventUserStatusChanged, c.onUserStatus),
		c.bind(epoch, transport.EventUserTyping, c.onUserTyping),
		c.bind(epoch, transport.EventUserStoppedTyping, c.onUserStoppedTyping),
	)
}

// bind wraps fn so it runs under the lock and only while the session that
// registered it is still the current one.
func (c *Controller) bind(epoch uint64, name string, fn func(transport.Event)) *transport.Subscription {
	return c.conn.On(name, func(ev transport.Event) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.epoch != epoch || c.identity == nil {
			c.log.Printf("sync: dropping %s from a finished session", ev.Type)
			return
		}
		fn(ev)
	})
}

func (c *Controller) onConnect(transport.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	c.announceLocked()
	c.notify()
}

func (c *Controller) onDisconnect(transport.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.notify()
}

func (c *Controller) onUsersOnline(ev transport.Event) {
	var ids []string
	if err := ev.Decode(&ids); err != nil {
		c.log.Printf("sync: %v", err)
		return
	}
	c.presence.ApplySnapshot(ids, c.now())
	c.setStore(c.store.Annotate(c.presence))
	c.notify()
}

func (c *Controller) onNewMessage(ev transport.Event) {
	var msg models.Message
	if err := decode(ev, &msg); err != nil {
		c.log.Printf("sync: invalid new-message: %v", err)
		return
	}
	if msg.Type == "" {
		msg.Type = models.MessageText
	}
	msg.Status = models.StatusSent

	next, ok := c.store.AppendMessage(msg.ChatID, msg)
	if !ok {
		c.log.Printf("sync: ignoring message %s for chat %s (unknown chat or duplicate)", msg.ID, msg.ChatID)
		return
	}
	c.setStore(next)
	c.clearTyping(msg.ChatID, msg.SenderID)
}

func (c *Controller) onReceipt(next models.Status) func(transport.Event) {
	return func(ev transport.Event) {
		var r models.Receipt
		if err := decode(ev, &r); err != nil {
			c.log.Printf("sync: invalid %s: %v", ev.Type, err)
			return
		}
		updated, ok := c.store.UpdateMessageStatus(r.ChatID, r.MessageID, next)
		if !ok {
			c.log.Printf("sync: %s for %s/%s changed nothing", ev.Type, r.ChatID, r.MessageID)
			return
		}
		c.setStore(updated)
	}
}

func (c *Controller) onMessagesRead(ev transport.Event) {
	var r models.ReadMark
	if err := decode(ev, &r); err != nil {
		c.log.Printf("sync: invalid messages-read: %v", err)
		return
	}
	if r.UserID == c.identity.ID {
		return
	}
	if next, ok := c.store.MarkOwnMessages(r.ChatID, models.StatusRead); ok {
		c.setStore(next)
	}
}

func (c *Controller) onUserStatus(ev transport.Event) {
	var s models.UserStatus
	if err := decode(ev, &s); err != nil {
		c.log.Printf("sync: invalid user-status-changed: %v", err)
		return
	}
	c.presence.NoteStatus(s.UserID, s.IsOnline, c.now())
	c.setStore(c.store.Annotate(c.presence))
}

func (c *Controller) onUserTyping(ev transport.Event) {
	var t models.Typing
	if err := decode(ev, &t); err != nil {
		c.log.Printf("sync: invalid user-typing: %v", err)
		return
	}
	if t.UserID == c.identity.ID {
		return
	}
	if _, ok := c.store.Get(t.ChatID); !ok {
		c.log.Printf("sync: user-typing for unknown chat %s", t.ChatID)
		return
	}
	if c.typing[t.ChatID] == nil {
		c.typing[t.ChatID] = make(map[string]string)
	}
	c.typing[t.ChatID][t.UserID] = t.UserName
	c.notify()
}

func (c *Controller) onUserStoppedTyping(ev transport.Event) {
	var t models.Typing
	if err := decode(ev, &t); err != nil {
		c.log.Printf("sync: invalid user-stopped-typing: %v", err)
		return
	}
	c.clearTyping(t.ChatID, t.UserID)
}

func (c *Controller) clearTyping(chatID, userID string) {
	users, ok := c.typing[chatID]
	if !ok {
		return
	}
	if _, ok := users[userID]; !ok {
		return
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(c.typing, chatID)
	}
	c.notify()
}
