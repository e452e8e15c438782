package irc

import (
	"testing"
	"time"

	"github.com/nextlevelbuilder/ircclaw/internal/config"
)

func newTestLimiter(max int, window time.Duration) (*Limiter, *time.Time) {
	l := NewLimiter(config.RateLimitConfig{
		MaxMessages:     max,
		WindowMs:        int(window / time.Millisecond),
		SweepIntervalMs: 60 * 60 * 1000,
	})
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }
	return l, &clock
}

func TestLimiterWindow(t *testing.T) {
	l, clock := newTestLimiter(3, time.Minute)
	defer l.Close()

	for i := 0; i < 3; i++ {
		if r := l.Check("alice"); r.Limited {
			t.Fatalf("call %d: unexpectedly limited", i+1)
		}
	}

	r := l.Check("alice")
	if !r.Limited || !r.ShouldNotify {
		t.Fatalf("4th call: got %+v, want limited with notify", r)
	}

	r = l.Check("alice")
	if !r.Limited || r.ShouldNotify {
		t.Fatalf("5th call: got %+v, want limited without notify", r)
	}

	*clock = clock.Add(time.Minute + time.Second)
	if r := l.Check("alice"); r.Limited {
		t.Fatalf("after window: got %+v, want allowed", r)
	}

	// Fresh window re-arms the notice.
	l.Check("alice")
	l.Check("alice")
	r = l.Check("alice")
	if !r.Limited || !r.ShouldNotify {
		t.Fatalf("limit in fresh window: got %+v, want limited with notify", r)
	}
}

func TestLimiterKeyNormalization(t *testing.T) {
	l, _ := newTestLimiter(2, time.Minute)
	defer l.Close()

	l.Check("Alice")
	l.Check("  alice ")
	if r := l.Check("ALICE"); !r.Limited {
		t.Fatal("case variants should share one counter")
	}
	if r := l.Check("bob"); r.Limited {
		t.Fatal("distinct sender should not be limited")
	}
}

func TestLimiterSweep(t *testing.T) {
	l, clock := newTestLimiter(3, time.Minute)
	defer l.Close()

	l.Check("alice")
	l.Check("bob")
	*clock = clock.Add(2 * time.Minute)
	l.sweep()

	l.mu.Lock()
	n := len(l.entries)
	l.mu.Unlock()
	if n != 0 {
		t.Fatalf("sweep left %d entries, want 0", n)
	}
}
