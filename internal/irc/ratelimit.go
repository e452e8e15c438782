package irc

import (
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/ircclaw/internal/config"
)

// rateEntry tracks one sender's window. count only grows while the
// window is live; notified is set at most once per window and cleared
// only when the entry is replaced.
type rateEntry struct {
	count    int
	resetAt  time.Time
	notified bool
}

// RateLimitResult is the decision for a single inbound message.
type RateLimitResult struct {
	Limited      bool
	ShouldNotify bool // true exactly once per window, the first time the limit is hit
}

// Limiter is a per-sender fixed-window rate limiter shared across
// accounts. Keys are case-normalized so nick case variants share one
// counter. Safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*rateEntry

	max    int
	window time.Duration

	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// NewLimiter creates a limiter and starts its background sweep, which
// removes stale entries at a fixed interval off the check path.
func NewLimiter(cfg config.RateLimitConfig) *Limiter {
	l := &Limiter{
		entries: make(map[string]*rateEntry),
		max:     cfg.MaxMessages,
		window:  time.Duration(cfg.WindowMs) * time.Millisecond,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	sweep := time.Duration(cfg.SweepIntervalMs) * time.Millisecond
	if sweep <= 0 {
		sweep = 5 * time.Minute
	}
	go l.sweepLoop(sweep)
	return l
}

// Check records one message from a sender and returns the decision.
// The first observation for a key, or any observation after the window
// elapsed, resets the entry and is never limited.
func (l *Limiter) Check(senderID string) RateLimitResult {
	key := strings.ToLower(strings.TrimSpace(senderID))

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok || !now.Before(e.resetAt) {
		l.entries[key] = &rateEntry{count: 1, resetAt: now.Add(l.window)}
		return RateLimitResult{}
	}

	if e.count < l.max {
		e.count++
		return RateLimitResult{}
	}

	first := !e.notified
	e.notified = true
	return RateLimitResult{Limited: true, ShouldNotify: first}
}

// Close stops the background sweep. Idempotent.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Limiter) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, e := range l.entries {
		if !now.Before(e.resetAt) {
			delete(l.entries, key)
		}
	}
}
