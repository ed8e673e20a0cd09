package models

import (
	"strings"
	"testing"
)

func TestStatusOrdering(t *testing.T) {
	if !StatusDelivered.After(StatusSent) || !StatusRead.After(StatusDelivered) {
		t.Fatal("expected sent < delivered < read")
	}
	if StatusSent.After(StatusRead) || StatusRead.After(StatusRead) {
		t.Fatal("After must be strict and forward only")
	}
	if Status("seen").Valid() || !StatusRead.Valid() {
		t.Fatal("Valid accepted an unknown status or rejected a known one")
	}
	if !StatusSent.After(Status("")) {
		t.Fatal("any known status should be after the empty status")
	}
}

func TestIdentityValidate(t *testing.T) {
	if err := (Identity{ID: "u1", Name: "Ann"}).Validate(); err != nil {
		t.Fatalf("valid identity rejected: %v", err)
	}
	if err := (Identity{ID: "u1"}).Validate(); err == nil {
		t.Fatal("identity without name accepted")
	}
	long := strings.Repeat("x", 65)
	if err := (Identity{ID: long, Name: "Ann"}).Validate(); err == nil {
		t.Fatal("identity with oversized id accepted")
	}
}

func TestMessageValidate(t *testing.T) {
	msg := Message{ID: "m1", ChatID: "c1", SenderID: "u1", Type: MessageImage}
	if err := msg.Validate(); err != nil {
		t.Fatalf("valid message rejected: %v", err)
	}
	msg.Type = "sticker"
	if err := msg.Validate(); err == nil {
		t.Fatal("unknown message type accepted")
	}
	if err := (Message{ChatID: "c1", SenderID: "u1"}).Validate(); err == nil {
		t.Fatal("message without id accepted")
	}
}

func TestFindMessage(t *testing.T) {
	conv := Conversation{Messages: []Message{{ID: "a"}, {ID: "b"}}}
	if got := conv.FindMessage("b"); got != 1 {
		t.Fatalf("FindMessage(b) = %d, want 1", got)
	}
	if got := conv.FindMessage("z"); got != -1 {
		t.Fatalf("FindMessage(z) = %d, want -1", got)
	}
}

func TestInitials(t *testing.T) {
	cases := map[string]string{
		"john doe": "JO",
		"  x ":     "X",
		"":         "",
		"émile":    "ÉM",
	}
	for in, want := range cases {
		if got := Initials(in); got != want {
			t.Errorf("Initials(%q) = %q, want %q", in, got, want)
		}
	}
}
