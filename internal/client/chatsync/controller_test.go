package chatsync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cloudzz-dev/cldzchat/internal/client/bootstrap"
	"github.com/cloudzz-dev/cldzchat/internal/client/models"
	"github.com/cloudzz-dev/cldzchat/internal/client/transport"
)

var me = models.Identity{ID: "me", Name: "Me"}

func seed() bootstrap.Static {
	return bootstrap.Static{
		{ID: "c1", Name: "John Doe", PeerID: "john", UnreadCount: 2},
		{ID: "c2", Name: "Work Team", IsGroup: true},
	}
}

func newController(t *testing.T, loader bootstrap.Loader) (*Controller, *transport.Loopback) {
	t.Helper()
	lb := transport.NewLoopback()
	n := 0
	ctrl := New(lb, loader, Options{
		Now: func() time.Time { return time.Unix(1_700_000_000, 0) },
		NewID: func() string {
			n++
			return fmt.Sprintf("local-%d", n)
		},
	})
	ctrl.Init()
	lb.Connect()
	if err := ctrl.SessionStarted(context.Background(), me); err != nil {
		t.Fatalf("SessionStarted returned error: %v", err)
	}
	t.Cleanup(ctrl.Close)
	return ctrl, lb
}

func payload(t *testing.T, ev transport.Event, v any) {
	t.Helper()
	if err := json.Unmarshal(ev.Payload, v); err != nil {
		t.Fatalf("decode %s payload: %v", ev.Type, err)
	}
}

func types(events []transport.Event) string {
	names := make([]string, len(events))
	for i, ev := range events {
		names[i] = ev.Type
	}
	return strings.Join(names, ",")
}

func inbound(id, chat, sender string) models.Message {
	return models.Message{
		ID:         id,
		ChatID:     chat,
		Content:    "hello " + id,
		Timestamp:  time.Unix(1_700_000_100, 0),
		SenderID:   sender,
		SenderName: sender,
		Type:       models.MessageText,
	}
}

func TestSessionStarted_AnnouncesAndBootstraps(t *testing.T) {
	ctrl, lb := newController(t, seed())

	if got := types(lb.Emitted()); got != "user-online,join-chat,join-chat" {
		t.Fatalf("emitted = %s, want user-online then join-chat for each conversation", got)
	}
	var announced models.Identity
	payload(t, lb.Emitted()[0], &announced)
	if announced != me {
		t.Fatalf("user-online payload = %#v, want %#v", announced, me)
	}

	if n := len(ctrl.ListAll()); n != 2 {
		t.Fatalf("ListAll returned %d conversations, want 2", n)
	}
	if id, ok := ctrl.Identity(); !ok || id != me {
		t.Fatalf("Identity() = (%#v, %v)", id, ok)
	}
	if !ctrl.Connectivity() {
		t.Fatal("Connectivity() = false after connect")
	}
}

func TestSendMessage_RejectsBlankAndNoActive(t *testing.T) {
	ctrl, lb := newController(t, seed())
	lb.Reset()

	if _, ok := ctrl.SendMessage("hi", models.MessageText); ok {
		t.Fatal("SendMessage without active conversation returned true")
	}

	ctrl.SelectChat("c2")
	lb.Reset()
	before := ctrl.Snapshot()
	for _, content := range []string{"", "   ", "\n\t"} {
		if _, ok := ctrl.SendMessage(content, models.MessageText); ok {
			t.Fatalf("SendMessage(%q) returned true", content)
		}
	}
	if ctrl.Snapshot() != before {
		t.Fatal("rejected sends changed the store")
	}
	if n := len(lb.Emitted()); n != 0 {
		t.Fatalf("rejected sends emitted %d events", n)
	}
}

func TestSelectChat_ClearsUnreadAndEmitsReadMarkOnce(t *testing.T) {
	ctrl, lb := newController(t, seed())
	lb.Reset()

	if !ctrl.SelectChat("c1") {
		t.Fatal("SelectChat(c1) returned false")
	}
	c1, _ := ctrl.Get("c1")
	if c1.UnreadCount != 0 {
		t.Fatalf("UnreadCount = %d, want 0", c1.UnreadCount)
	}
	ctrl.SelectChat("c1")
	ctrl.SelectChat("c2")

	marks := lb.Named(transport.EventMarkMessagesRead)
	if len(marks) != 1 {
		t.Fatalf("mark-messages-read emitted %d times, want 1", len(marks))
	}
	var mark models.ReadMark
	payload(t, marks[0], &mark)
	if mark.ChatID != "c1" || mark.UserID != "me" {
		t.Fatalf("mark-messages-read payload = %#v", mark)
	}

	if ctrl.SelectChat("unknown") {
		t.Fatal("SelectChat(unknown) returned true")
	}
	if active, _ := ctrl.Active(); active.ID != "c2" {
		t.Fatalf("active = %q, want c2", active.ID)
	}
}

func TestSendMessage_OptimisticWriteThenDelivery(t *testing.T) {
	ctrl, lb := newController(t, seed())
	ctrl.SelectChat("c2")
	lb.Reset()

	msg, ok := ctrl.SendMessage("hi", "")
	if !ok {
		t.Fatal("SendMessage returned false")
	}

	c2, _ := ctrl.Get("c2")
	if len(c2.Messages) != 1 {
		t.Fatalf("len(messages) = %d, want 1", len(c2.Messages))
	}
	got := c2.Messages[0]
	if got.ID != msg.ID || got.Status != models.StatusSent || got.SenderID != "me" || got.Type != models.MessageText {
		t.Fatalf("appended message = %#v", got)
	}

	sent := lb.Named(transport.EventSendMessage)
	if len(sent) != 1 {
		t.Fatalf("send-message emitted %d times, want 1", len(sent))
	}
	var wire models.Message
	payload(t, sent[0], &wire)
	if wire.ID != msg.ID || wire.ChatID != "c2" || wire.Content != "hi" {
		t.Fatalf("send-message payload = %#v", wire)
	}

	lb.Deliver(transport.EventMessageDelivered, models.Receipt{MessageID: msg.ID, ChatID: "c2"})
	lb.Deliver(transport.EventNewMessage, wire)

	c2, _ = ctrl.Get("c2")
	if len(c2.Messages) != 1 {
		t.Fatalf("echo duplicated the message: %d messages", len(c2.Messages))
	}
	if c2.Messages[0].Status != models.StatusDelivered {
		t.Fatalf("status = %s, want delivered", c2.Messages[0].Status)
	}
	if c2.LastMessage == nil || c2.LastMessage.Status != models.StatusDelivered {
		t.Fatalf("lastMessage = %#v, want delivered", c2.LastMessage)
	}

	lb.Deliver(transport.EventMessageRead, models.Receipt{MessageID: msg.ID, ChatID: "c2"})
	lb.Deliver(transport.EventMessageDelivered, models.Receipt{MessageID: msg.ID, ChatID: "c2"})
	c2, _ = ctrl.Get("c2")
	if c2.Messages[0].Status != models.StatusRead {
		t.Fatalf("status = %s, want read after stale delivered", c2.Messages[0].Status)
	}
}

func TestSendMessage_KeepsOptimisticWriteWhileDisconnected(t *testing.T) {
	ctrl, lb := newController(t, seed())
	ctrl.SelectChat("c2")
	lb.Disconnect()

	if _, ok := ctrl.SendMessage("offline", models.MessageText); !ok {
		t.Fatal("SendMessage returned false while disconnected")
	}
	c2, _ := ctrl.Get("c2")
	if len(c2.Messages) != 1 {
		t.Fatalf("len(messages) = %d, want 1", len(c2.Messages))
	}
	if ctrl.Connectivity() {
		t.Fatal("Connectivity() = true after disconnect")
	}
}

func TestReceipts_UnknownTargetsAreNoops(t *testing.T) {
	ctrl, lb := newController(t, seed())
	before := ctrl.Snapshot()

	lb.Deliver(transport.EventMessageDelivered, models.Receipt{MessageID: "nope", ChatID: "c1"})
	lb.Deliver(transport.EventMessageRead, models.Receipt{MessageID: "m1", ChatID: "nope"})
	lb.Deliver(transport.EventMessageRead, map[string]string{"chatId": "c1"})
	lb.Deliver(transport.EventNewMessage, inbound("x", "nope", "john"))
	lb.Deliver(transport.EventNewMessage, map[string]string{"content": "no ids"})

	if ctrl.Snapshot() != before {
		t.Fatal("events for unknown targets changed the store")
	}
}

func TestNewMessage_UnreadOnlyWhenInactive(t *testing.T) {
	ctrl, lb := newController(t, seed())

	lb.Deliver(transport.EventNewMessage, inbound("a", "c1", "john"))
	c1, _ := ctrl.Get("c1")
	if c1.UnreadCount != 3 {
		t.Fatalf("UnreadCount = %d, want 3", c1.UnreadCount)
	}
	if c1.Messages[0].Status != models.StatusSent {
		t.Fatalf("inbound status = %s, want sent", c1.Messages[0].Status)
	}

	ctrl.SelectChat("c1")
	lb.Deliver(transport.EventNewMessage, inbound("b", "c1", "john"))
	c1, _ = ctrl.Get("c1")
	if c1.UnreadCount != 0 || len(c1.Messages) != 2 {
		t.Fatalf("unread=%d messages=%d, want 0 and 2", c1.UnreadCount, len(c1.Messages))
	}
}

func TestLogoutThenLogin_StartsEmpty(t *testing.T) {
	ctrl, lb := newController(t, nil)

	conv, ok := ctrl.CreateChat(models.Peer{ID: "john", Name: "John"})
	if !ok {
		t.Fatal("CreateChat returned false")
	}
	lb.Deliver(transport.EventNewMessage, inbound("a", conv.ID, "john"))

	ctrl.mu.RLock()
	stale := ctrl.bind(ctrl.epoch, "late-event", func(transport.Event) {
		t.Error("handler from a finished session ran")
	})
	ctrl.mu.RUnlock()
	defer stale.Release()

	lb.Reset()
	ctrl.SessionStopping(me)
	ctrl.SessionStopped()

	if got := types(lb.Emitted()); got != "user-offline" {
		t.Fatalf("emitted on logout = %s, want user-offline", got)
	}
	lb.Deliver(transport.EventNewMessage, inbound("b", conv.ID, "john"))
	lb.Deliver("late-event", map[string]string{})

	if err := ctrl.SessionStarted(context.Background(), me); err != nil {
		t.Fatalf("SessionStarted returned error: %v", err)
	}
	lb.Deliver(transport.EventNewMessage, inbound("c", conv.ID, "john"))

	if n := len(ctrl.ListAll()); n != 0 {
		t.Fatalf("ListAll returned %d conversations after re-login, want 0", n)
	}
	if _, ok := ctrl.Active(); ok {
		t.Fatal("active selection survived logout")
	}
	if n := lb.Count(transport.EventNewMessage); n != 1 {
		t.Fatalf("new-message listeners = %d, want 1", n)
	}
}

func TestReconnect_ReannouncesPresence(t *testing.T) {
	ctrl, lb := newController(t, seed())
	lb.Disconnect()
	lb.Reset()

	lb.Connect()
	if !ctrl.Connectivity() {
		t.Fatal("Connectivity() = false after reconnect")
	}
	if got := types(lb.Emitted()); got != "user-online,join-chat,join-chat" {
		t.Fatalf("emitted on reconnect = %s", got)
	}

	ctrl.SessionStopping(me)
	ctrl.SessionStopped()
	lb.Disconnect()
	lb.Reset()
	lb.Connect()
	if n := len(lb.Emitted()); n != 0 {
		t.Fatalf("reconnect without session emitted %d events", n)
	}
}

func TestUsersOnline_AnnotatesDirectChats(t *testing.T) {
	ctrl, lb := newController(t, seed())

	lb.Deliver(transport.EventUsersOnline, []string{"john", "sarah"})
	if !ctrl.IsOnline("john") || !ctrl.IsOnline("sarah") {
		t.Fatalf("OnlineUsers = %v", ctrl.OnlineUsers())
	}
	c1, _ := ctrl.Get("c1")
	if !c1.IsOnline {
		t.Fatal("c1 should be annotated online")
	}

	lb.Deliver(transport.EventUsersOnline, []string{"sarah"})
	c1, _ = ctrl.Get("c1")
	if c1.IsOnline || c1.LastSeen.IsZero() {
		t.Fatalf("c1 online=%v lastSeen=%v, want offline with last seen", c1.IsOnline, c1.LastSeen)
	}

	lb.Deliver(transport.EventUserStatusChanged, models.UserStatus{UserID: "sarah", IsOnline: false})
	if !ctrl.IsOnline("sarah") {
		t.Fatal("user-status-changed must not override the snapshot")
	}
}

func TestMessagesRead_MarksOwnMessages(t *testing.T) {
	ctrl, lb := newController(t, seed())
	ctrl.SelectChat("c1")
	mine, _ := ctrl.SendMessage("one", models.MessageText)
	lb.Deliver(transport.EventNewMessage, inbound("theirs", "c1", "john"))

	lb.Deliver(transport.EventMessagesRead, models.ReadMark{ChatID: "c1", UserID: "me"})
	c1, _ := ctrl.Get("c1")
	if c1.Messages[0].Status != models.StatusSent {
		t.Fatal("messages-read from the local user should be ignored")
	}

	lb.Deliver(transport.EventMessagesRead, models.ReadMark{ChatID: "c1", UserID: "john"})
	c1, _ = ctrl.Get("c1")
	if c1.Messages[0].ID != mine.ID || c1.Messages[0].Status != models.StatusRead {
		t.Fatalf("own message = %#v, want read", c1.Messages[0])
	}
	if c1.Messages[1].Status != models.StatusSent {
		t.Fatalf("peer message status = %s, want sent", c1.Messages[1].Status)
	}
}

func TestTyping(t *testing.T) {
	ctrl, lb := newController(t, seed())

	lb.Deliver(transport.EventUserTyping, models.Typing{ChatID: "c1", UserID: "john", UserName: "John"})
	lb.Deliver(transport.EventUserTyping, models.Typing{ChatID: "c1", UserID: "me", UserName: "Me"})
	lb.Deliver(transport.EventUserTyping, models.Typing{ChatID: "nope", UserID: "john"})
	if got := strings.Join(ctrl.Typing("c1"), ","); got != "John" {
		t.Fatalf("Typing(c1) = %q, want John", got)
	}

	lb.Deliver(transport.EventNewMessage, inbound("a", "c1", "john"))
	if got := ctrl.Typing("c1"); len(got) != 0 {
		t.Fatalf("Typing(c1) = %v after message, want empty", got)
	}

	lb.Deliver(transport.EventUserTyping, models.Typing{ChatID: "c2", UserID: "jane", UserName: "Jane"})
	lb.Deliver(transport.EventUserStoppedTyping, models.Typing{ChatID: "c2", UserID: "jane"})
	if got := ctrl.Typing("c2"); len(got) != 0 {
		t.Fatalf("Typing(c2) = %v, want empty", got)
	}

	lb.Reset()
	if ctrl.StartTyping() {
		t.Fatal("StartTyping without active chat returned true")
	}
	ctrl.SelectChat("c2")
	ctrl.StartTyping()
	ctrl.StartTyping()
	ctrl.SelectChat("c1")
	if got := types(lb.Emitted()); got != "typing-start,typing-stop,mark-messages-read" {
		t.Fatalf("emitted = %s", got)
	}
}

func TestCreateChat(t *testing.T) {
	ctrl, lb := newController(t, seed())
	lb.Deliver(transport.EventUsersOnline, []string{"sarah"})
	lb.Reset()

	if _, ok := ctrl.CreateChat(models.Peer{Name: "   "}); ok {
		t.Fatal("CreateChat with blank name returned true")
	}

	conv, ok := ctrl.CreateChat(models.Peer{ID: "sarah", Name: "Sarah Wilson"})
	if !ok {
		t.Fatal("CreateChat returned false")
	}
	if !conv.IsOnline {
		t.Fatal("new chat with an online peer should be online")
	}
	active, _ := ctrl.Active()
	if active.ID != conv.ID {
		t.Fatalf("active = %q, want %q", active.ID, conv.ID)
	}
	if list := ctrl.ListAll(); list[0].ID != conv.ID {
		t.Fatal("new chat should be listed first")
	}
	joins := lb.Named(transport.EventJoinChat)
	if len(joins) != 1 {
		t.Fatalf("join-chat emitted %d times, want 1", len(joins))
	}
	var ref models.ChatRef
	payload(t, joins[0], &ref)
	if ref.ChatID != conv.ID {
		t.Fatalf("join-chat chatId = %q, want %q", ref.ChatID, conv.ID)
	}
}

func TestClose_ReleasesAllListeners(t *testing.T) {
	ctrl, lb := newController(t, seed())
	ctrl.Close()

	for _, name := range []string{transport.EventConnect, transport.EventNewMessage, transport.EventUsersOnline} {
		if n := lb.Count(name); n != 0 {
			t.Fatalf("%s listeners after Close = %d, want 0", name, n)
		}
	}
	if len(ctrl.ListAll()) != 0 {
		t.Fatal("Close should clear the store")
	}
}

func TestChanges_Signals(t *testing.T) {
	ctrl, lb := newController(t, seed())
	for len(ctrl.Changes()) > 0 {
		<-ctrl.Changes()
	}

	lb.Deliver(transport.EventNewMessage, inbound("a", "c1", "john"))
	select {
	case <-ctrl.Changes():
	default:
		t.Fatal("no change signal after new-message")
	}
}
