package irc

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeWire struct {
	ready    bool
	messages []string
	actions  []string
}

func (f *fakeWire) Ready() bool { return f.ready }

func (f *fakeWire) SendMessage(target, text string) {
	f.messages = append(f.messages, target+"|"+text)
}

func (f *fakeWire) SendAction(target, text string) {
	f.actions = append(f.actions, target+"|"+text)
}

func TestSayChunksInOrder(t *testing.T) {
	w := &fakeWire{ready: true}
	s := NewSender("libera", w, 10, time.Millisecond)

	if err := s.Say(context.Background(), "#dev", "first line\nsecond one"); err != nil {
		t.Fatal(err)
	}
	want := []string{"#dev|first line", "#dev|second one"}
	if len(w.messages) != len(want) {
		t.Fatalf("sent %v, want %v", w.messages, want)
	}
	for i := range want {
		if w.messages[i] != want[i] {
			t.Errorf("message %d = %q, want %q", i, w.messages[i], want[i])
		}
	}
}

func TestSayNotConnected(t *testing.T) {
	w := &fakeWire{ready: false}
	s := NewSender("libera", w, 400, time.Millisecond)

	err := s.Say(context.Background(), "#dev", "hello")
	var nc *NotConnectedError
	if !errors.As(err, &nc) {
		t.Fatalf("got %v, want NotConnectedError", err)
	}
	if len(w.messages) != 0 {
		t.Fatalf("sent %v while disconnected", w.messages)
	}
}

func TestSayEmptyIsNoop(t *testing.T) {
	w := &fakeWire{ready: false}
	s := NewSender("libera", w, 400, time.Millisecond)
	if err := s.Say(context.Background(), "#dev", "  \n "); err != nil {
		t.Fatalf("whitespace-only text errored: %v", err)
	}
}

func TestSayCanceledContext(t *testing.T) {
	w := &fakeWire{ready: true}
	s := NewSender("libera", w, 5, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// The burst token may let one chunk through; the canceled context
	// must stop the rest.
	err := s.Say(ctx, "#dev", strings.Repeat("x", 50))
	if err == nil {
		t.Fatal("expected context error")
	}
	if len(w.messages) > 1 {
		t.Fatalf("sent %d chunks after cancel", len(w.messages))
	}
}

func TestActionNeverChunks(t *testing.T) {
	w := &fakeWire{ready: true}
	s := NewSender("libera", w, 10, time.Millisecond)

	if err := s.Action(context.Background(), "#dev", strings.Repeat("y", 30)); err != nil {
		t.Fatal(err)
	}
	if len(w.actions) != 1 {
		t.Fatalf("sent %d actions, want 1", len(w.actions))
	}
	if got := w.actions[0]; got != "#dev|"+strings.Repeat("y", 10) {
		t.Errorf("action = %q, want 10-byte truncation", got)
	}
	if len(w.messages) != 0 {
		t.Errorf("action leaked into messages: %v", w.messages)
	}
}
