package irc

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nextlevelbuilder/ircclaw/internal/bus"
	"github.com/nextlevelbuilder/ircclaw/internal/channels"
	"github.com/nextlevelbuilder/ircclaw/internal/config"
)

// Account is one managed IRC account: a connection, its outbound
// sender, and the inbound monitor, glued to the bus. Implements
// channels.Channel. A stopped account builds a fresh connection on the
// next Start; Conn is single-use.
type Account struct {
	id        string
	cfg       config.AccountConfig
	reconnect config.ReconnectConfig
	limiter   *Limiter
	router    bus.MessageRouter
	log       *slog.Logger

	mu      sync.Mutex
	conn    *Conn
	sender  *Sender
	running bool
	done    chan struct{}

	lastStartAt    *time.Time
	lastStopAt     *time.Time
	lastInboundAt  *time.Time
	lastOutboundAt *time.Time
	lastErr        string
}

var _ channels.Channel = (*Account)(nil)

// NewAccount builds an account from its configuration. The limiter is
// shared across accounts so a sender hammering two networks still hits
// one budget.
func NewAccount(id string, cfg config.AccountConfig, rc config.ReconnectConfig, limiter *Limiter, router bus.MessageRouter, log *slog.Logger) *Account {
	return &Account{
		id:        id,
		cfg:       cfg,
		reconnect: rc,
		limiter:   limiter,
		router:    router,
		log:       log.With("account", id),
	}
}

// AccountID implements channels.Channel.
func (a *Account) AccountID() string { return a.id }

// Start connects and blocks until registration completes or fails
// terminally, then consumes inbound lines in the background.
func (a *Account) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	conn, err := NewConn(a.id, a.cfg, a.reconnect, a.log, a.onFatal)
	if err != nil {
		a.setErr(err)
		return err
	}
	if err := conn.Connect(ctx); err != nil {
		a.setErr(err)
		conn.Disconnect()
		return err
	}

	sender := NewSender(a.id, conn, a.cfg.EffectiveMessageMaxLen(),
		time.Duration(a.cfg.EffectiveSendDelayMs())*time.Millisecond)
	monitor := NewMonitor(a.id, a.cfg, a.limiter, a.router, conn.Nick, a.log, a.markInbound)
	done := make(chan struct{})

	a.mu.Lock()
	a.conn = conn
	a.sender = sender
	a.running = true
	now := time.Now()
	a.lastStartAt = &now
	a.lastErr = ""
	a.done = done
	a.mu.Unlock()

	go a.consume(conn, monitor, done)
	return nil
}

// consume is the single reader of the connection's line channel, which
// keeps inbound handling for one account strictly ordered.
func (a *Account) consume(conn *Conn, monitor *Monitor, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case line := <-conn.Lines():
			monitor.HandleLine(line)
		}
	}
}

// Stop implements channels.Channel. Safe to call repeatedly.
func (a *Account) Stop(ctx context.Context) error {
	a.mu.Lock()
	conn, done := a.conn, a.done
	wasRunning := a.running
	a.running = false
	a.conn = nil
	a.sender = nil
	a.done = nil
	if wasRunning {
		now := time.Now()
		a.lastStopAt = &now
	}
	a.mu.Unlock()

	if done != nil {
		close(done)
	}
	if conn != nil {
		conn.Disconnect()
	}
	return nil
}

// Send implements channels.Channel.
func (a *Account) Send(ctx context.Context, msg bus.OutboundMessage) error {
	a.mu.Lock()
	sender := a.sender
	a.mu.Unlock()
	if sender == nil {
		return &NotConnectedError{Account: a.id}
	}

	var err error
	if msg.Action {
		err = sender.Action(ctx, msg.ChatID, msg.Content)
	} else {
		err = sender.Say(ctx, msg.ChatID, msg.Content)
	}
	if err != nil {
		a.setErr(err)
		return err
	}

	a.mu.Lock()
	now := time.Now()
	a.lastOutboundAt = &now
	a.mu.Unlock()
	return nil
}

// Status implements channels.Channel.
func (a *Account) Status() channels.AccountStatus {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := channels.AccountStatus{
		Account:        a.id,
		State:          StateIdle.String(),
		Nick:           a.cfg.Nick,
		Running:        a.running,
		LastStartAt:    a.lastStartAt,
		LastStopAt:     a.lastStopAt,
		LastInboundAt:  a.lastInboundAt,
		LastOutboundAt: a.lastOutboundAt,
		LastError:      a.lastErr,
	}
	if a.conn != nil {
		st.State = a.conn.State().String()
		st.Nick = a.conn.Nick()
		st.Channels = a.conn.JoinedChannels()
	}
	return st
}

func (a *Account) markInbound() {
	a.mu.Lock()
	now := time.Now()
	a.lastInboundAt = &now
	a.mu.Unlock()
}

func (a *Account) setErr(err error) {
	a.mu.Lock()
	a.lastErr = err.Error()
	a.mu.Unlock()
}

// onFatal runs when the connection gives up reconnecting. It tears the
// account down the same way Stop does, so the consume goroutine exits
// instead of reading a dead connection's line channel forever.
func (a *Account) onFatal(err error) {
	a.log.Error("connection terminated", "error", err)
	a.mu.Lock()
	conn, done := a.conn, a.done
	a.conn = nil
	a.sender = nil
	a.done = nil
	a.lastErr = err.Error()
	a.running = false
	now := time.Now()
	a.lastStopAt = &now
	a.mu.Unlock()

	if done != nil {
		close(done)
	}
	if conn != nil {
		conn.Disconnect()
	}
}
