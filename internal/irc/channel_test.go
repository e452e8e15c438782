package irc

import (
	"errors"
	"testing"
	"time"

	"github.com/nextlevelbuilder/ircclaw/internal/config"
)

func TestOnFatalStopsConsumer(t *testing.T) {
	cfg := config.AccountConfig{Server: "irc.libera.chat", Nick: "clawbot"}
	a := NewAccount("libera", cfg, config.ReconnectConfig{}, NewLimiter(config.RateLimitConfig{}), &fakeRouter{}, testLogger())

	conn, err := NewConn("libera", cfg, config.ReconnectConfig{}, a.log, a.onFatal)
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	a.mu.Lock()
	a.conn = conn
	a.done = done
	a.running = true
	a.mu.Unlock()

	a.onFatal(errors.New("gave up after 10 attempts"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("done channel not closed after fatal error")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn != nil || a.done != nil {
		t.Error("connection not cleared after fatal error")
	}
	if a.running {
		t.Error("account still running after fatal error")
	}
	if a.lastErr == "" {
		t.Error("last error not recorded")
	}
	if conn.State() != StateTerminated {
		t.Errorf("conn state = %v, want terminated", conn.State())
	}
}

func TestOnFatalAfterStopIsHarmless(t *testing.T) {
	cfg := config.AccountConfig{Server: "irc.libera.chat", Nick: "clawbot"}
	a := NewAccount("libera", cfg, config.ReconnectConfig{}, NewLimiter(config.RateLimitConfig{}), &fakeRouter{}, testLogger())

	// Stop raced ahead and already tore everything down.
	a.onFatal(errors.New("never registered"))

	if a.Status().Running {
		t.Error("account reported running")
	}
}
