// Package irc implements the bridge's IRC side: connection lifecycle,
// inbound normalization and filtering, and outbound delivery. One Conn
// owns one server connection; message routing above it goes through
// the bus.
package irc

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lrstanley/girc"

	"github.com/nextlevelbuilder/ircclaw/internal/config"
)

// ConnState is a snapshot of the connection lifecycle.
type ConnState int

const (
	StateIdle ConnState = iota
	StateConnecting
	StateRegistered
	StateDisconnected
	StateTerminated
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateRegistered:
		return "registered"
	case StateDisconnected:
		return "disconnected"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Line is one inbound PRIVMSG as received off the wire, before any
// sanitization. Target is a channel name or the bot's nick.
type Line struct {
	Sender string
	Target string
	Text   string
	Time   time.Time
}

const lineBuffer = 64

// rejoinDelay spaces auto-rejoin after a kick so we do not bounce
// straight into a ban.
const rejoinDelay = 2 * time.Second

// Conn manages a single IRC server connection: registration, auto-join,
// reconnect with capped exponential backoff, and delivery of inbound
// lines on a buffered channel. Create with NewConn, start with Connect,
// tear down with Disconnect.
type Conn struct {
	accountID string
	cfg       config.AccountConfig
	reconnect config.ReconnectConfig
	log       *slog.Logger

	client *girc.Client
	lines  chan Line

	mu       sync.Mutex
	state    ConnState
	attempts int
	lastErr  error
	joined   map[string]struct{}

	registeredOnce atomic.Bool

	// regErr resolves the initial Connect call: nil once registration
	// completes, or the terminal error if retries run out first.
	regErr  chan error
	regOnce sync.Once

	quit      chan struct{}
	closeOnce sync.Once
	started   atomic.Bool
	destroyed atomic.Bool

	// onFatal fires once when the retry budget is exhausted after the
	// connection had registered at least once.
	onFatal func(error)
}

// NewConn builds a connection for one account. onFatal may be nil.
func NewConn(accountID string, cfg config.AccountConfig, rc config.ReconnectConfig, log *slog.Logger, onFatal func(error)) (*Conn, error) {
	if err := validateAccount(cfg); err != nil {
		return nil, err
	}

	c := &Conn{
		accountID: accountID,
		cfg:       cfg,
		reconnect: rc,
		log:       log.With("account", accountID, "server", cfg.Server),
		lines:     make(chan Line, lineBuffer),
		joined:    make(map[string]struct{}),
		regErr:    make(chan error, 1),
		quit:      make(chan struct{}),
		onFatal:   onFatal,
	}

	gc := girc.Config{
		Server:     cfg.Server,
		Port:       cfg.EffectivePort(),
		Nick:       cfg.Nick,
		User:       cfg.EffectiveUser(),
		Name:       cfg.EffectiveRealName(),
		SSL:        cfg.TLS,
		ServerPass: cfg.ServerPassword,
		PingDelay:  60 * time.Second,
		HandleNickCollide: func(wanted string) string {
			next := wanted + "_"
			c.log.Warn("nick in use, appending underscore", "wanted", wanted, "using", next)
			return next
		},
	}
	if cfg.SASL.Configured() {
		gc.SASL = &girc.SASLPlain{User: cfg.SASL.User, Pass: cfg.SASL.Password}
	}

	c.client = girc.New(gc)
	c.registerHandlers()
	return c, nil
}

func validateAccount(cfg config.AccountConfig) error {
	if cfg.Server == "" {
		return fmt.Errorf("account has no server")
	}
	if !IsValidNick(cfg.Nick) {
		return fmt.Errorf("invalid nick %q", cfg.Nick)
	}
	for _, ch := range cfg.Channels {
		if !IsValidChannel(ch) {
			return fmt.Errorf("invalid channel %q", ch)
		}
	}
	if cfg.NickServPassword != "" && !cfg.AllowPlainAuth {
		return fmt.Errorf("nickserv_password set without allow_plain_auth; refusing to send credentials in plain text")
	}
	return nil
}

// Connect starts the connection loop and blocks until the first
// registration succeeds, the retry budget is exhausted, or ctx is
// canceled. After it returns nil the loop keeps the connection alive
// in the background until Disconnect. A Conn is single-use: calling
// Connect after Disconnect, or a second time, fails with ErrTerminated.
func (c *Conn) Connect(ctx context.Context) error {
	if c.destroyed.Load() || !c.started.CompareAndSwap(false, true) {
		return ErrTerminated
	}
	c.setState(StateConnecting)
	go c.run()

	select {
	case err := <-c.regErr:
		return err
	case <-ctx.Done():
		c.Disconnect()
		return ctx.Err()
	}
}

// Disconnect tears the connection down permanently. Safe to call more
// than once and from any goroutine.
func (c *Conn) Disconnect() {
	c.closeOnce.Do(func() {
		c.destroyed.Store(true)
		close(c.quit)
		c.setState(StateTerminated)
		c.client.Quit("shutting down")
		c.client.Close()
		c.resolveRegistration(ErrTerminated)
	})
}

// Lines returns the inbound line channel. It is never closed; readers
// should also select on their own shutdown signal.
func (c *Conn) Lines() <-chan Line { return c.lines }

// State returns the current lifecycle state.
func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the most recent connection error, if any.
func (c *Conn) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Nick returns the nick currently in use, which may differ from the
// configured one after a collision.
func (c *Conn) Nick() string {
	if n := c.client.GetNick(); n != "" {
		return n
	}
	return c.cfg.Nick
}

// Ready reports whether the connection is registered and can deliver.
func (c *Conn) Ready() bool { return c.State() == StateRegistered }

// JoinedChannels returns the channels this connection is currently in,
// sorted. The set resets on every disconnect.
func (c *Conn) JoinedChannels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.joined))
	for ch := range c.joined {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// Join joins a channel. Fails fast when not registered.
func (c *Conn) Join(channel string) error {
	if !c.Ready() {
		return &NotConnectedError{Account: c.accountID}
	}
	c.client.Cmd.Join(channel)
	return nil
}

// Part leaves a channel. Fails fast when not registered.
func (c *Conn) Part(channel string) error {
	if !c.Ready() {
		return &NotConnectedError{Account: c.accountID}
	}
	c.client.Cmd.Part(channel)
	return nil
}

// SendMessage writes one PRIVMSG line. Pacing and chunking happen in
// Sender, not here.
func (c *Conn) SendMessage(target, text string) {
	c.client.Cmd.Message(target, text)
}

// SendAction writes one CTCP ACTION line.
func (c *Conn) SendAction(target, text string) {
	c.client.Cmd.Action(target, text)
}

func (c *Conn) setState(s ConnState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateTerminated {
		return
	}
	c.state = s
	if s == StateDisconnected || s == StateTerminated {
		c.joined = make(map[string]struct{})
	}
}

func (c *Conn) setLastErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
}

func (c *Conn) resolveRegistration(err error) {
	c.regOnce.Do(func() { c.regErr <- err })
}

// run drives the connect/reconnect loop. girc's Connect blocks until
// the connection drops, so each iteration is one connection attempt.
func (c *Conn) run() {
	for {
		select {
		case <-c.quit:
			return
		default:
		}

		c.setState(StateConnecting)
		err := c.client.Connect()
		if c.destroyed.Load() {
			return
		}
		c.setState(StateDisconnected)
		if err != nil {
			c.setLastErr(err)
			c.log.Warn("connection lost", "error", err)
		} else {
			c.log.Warn("connection closed by server")
		}

		// A connection that never registered is a handshake or config
		// problem, not a transient drop. Surface it instead of retrying
		// into the same rejection.
		if !c.registeredOnce.Load() {
			final := &RegistrationError{Reason: "never registered", Err: err}
			c.mu.Lock()
			c.state = StateTerminated
			c.lastErr = final
			c.mu.Unlock()
			c.resolveRegistration(final)
			return
		}

		c.mu.Lock()
		attempt := c.attempts
		c.attempts++
		c.mu.Unlock()

		if c.reconnect.MaxAttempts > 0 && attempt >= c.reconnect.MaxAttempts {
			final := &RegistrationError{Reason: "reconnect attempts exhausted", Err: err}
			c.log.Error("giving up on connection", "attempts", attempt)
			c.mu.Lock()
			c.state = StateTerminated
			c.lastErr = final
			c.mu.Unlock()
			c.resolveRegistration(final)
			if c.onFatal != nil {
				c.onFatal(final)
			}
			return
		}

		delay := backoffDelay(c.reconnect, attempt)
		c.log.Info("reconnecting", "attempt", attempt+1, "delay", delay)
		select {
		case <-c.quit:
			return
		case <-time.After(delay):
		}
	}
}

// backoffDelay returns the wait before retry number attempt (zero
// based): initial delay doubled per attempt, capped at the maximum.
func backoffDelay(rc config.ReconnectConfig, attempt int) time.Duration {
	initial := time.Duration(rc.InitialDelayMs) * time.Millisecond
	max := time.Duration(rc.MaxDelayMs) * time.Millisecond
	if initial <= 0 {
		initial = 2 * time.Second
	}
	if max <= 0 {
		max = 5 * time.Minute
	}
	if attempt > 30 {
		return max
	}
	d := initial << uint(attempt)
	if d <= 0 || d > max {
		return max
	}
	return d
}

func (c *Conn) registerHandlers() {
	c.client.Handlers.Add(girc.CONNECTED, func(cl *girc.Client, e girc.Event) {
		if c.destroyed.Load() {
			return
		}
		c.registeredOnce.Store(true)
		c.mu.Lock()
		c.state = StateRegistered
		c.attempts = 0
		c.lastErr = nil
		c.mu.Unlock()
		c.resolveRegistration(nil)
		c.log.Info("registered", "nick", cl.GetNick())

		if c.cfg.NickServPassword != "" && c.cfg.AllowPlainAuth && !c.cfg.SASL.Configured() {
			cl.Cmd.Message("NickServ", "IDENTIFY "+c.cfg.NickServPassword)
		}
		for _, ch := range c.cfg.Channels {
			cl.Cmd.Join(ch)
		}
	})

	c.client.Handlers.Add(girc.DISCONNECTED, func(cl *girc.Client, e girc.Event) {
		if c.destroyed.Load() {
			return
		}
		c.setState(StateDisconnected)
	})

	c.client.Handlers.Add(girc.PRIVMSG, func(cl *girc.Client, e girc.Event) {
		if c.destroyed.Load() || e.Source == nil || len(e.Params) == 0 {
			return
		}
		c.emit(Line{
			Sender: e.Source.Name,
			Target: e.Params[0],
			Text:   e.Last(),
			Time:   time.Now(),
		})
	})

	c.client.Handlers.Add(girc.JOIN, func(cl *girc.Client, e girc.Event) {
		if c.destroyed.Load() || e.Source == nil || len(e.Params) == 0 {
			return
		}
		if strings.EqualFold(e.Source.Name, cl.GetNick()) {
			c.mu.Lock()
			c.joined[strings.ToLower(e.Params[0])] = struct{}{}
			c.mu.Unlock()
			c.log.Info("joined channel", "channel", e.Params[0])
		}
	})

	c.client.Handlers.Add(girc.PART, func(cl *girc.Client, e girc.Event) {
		if c.destroyed.Load() || e.Source == nil || len(e.Params) == 0 {
			return
		}
		if strings.EqualFold(e.Source.Name, cl.GetNick()) {
			c.mu.Lock()
			delete(c.joined, strings.ToLower(e.Params[0]))
			c.mu.Unlock()
		}
	})

	c.client.Handlers.Add(girc.KICK, func(cl *girc.Client, e girc.Event) {
		if c.destroyed.Load() || len(e.Params) < 2 {
			return
		}
		channel, kicked := e.Params[0], e.Params[1]
		if !strings.EqualFold(kicked, cl.GetNick()) {
			return
		}
		c.mu.Lock()
		delete(c.joined, strings.ToLower(channel))
		c.mu.Unlock()
		c.log.Warn("kicked from channel", "channel", channel, "reason", e.Last())
		if !c.cfg.RejoinOnKick {
			return
		}
		time.AfterFunc(rejoinDelay, func() {
			if c.destroyed.Load() {
				return
			}
			c.log.Info("rejoining after kick", "channel", channel)
			cl.Cmd.Join(channel)
		})
	})

	c.client.Handlers.Add(girc.NICK, func(cl *girc.Client, e girc.Event) {
		if c.destroyed.Load() || e.Source == nil {
			return
		}
		if strings.EqualFold(e.Source.Name, c.cfg.Nick) || e.Source.Name == cl.GetNick() {
			c.log.Info("own nick changed", "from", e.Source.Name, "to", e.Last())
		}
	})

	c.client.Handlers.Add(girc.ERROR, func(cl *girc.Client, e girc.Event) {
		c.log.Warn("server error", "message", e.Last())
	})
}

// emit delivers a line without ever blocking the girc read loop. When
// the consumer lags, the oldest buffered line is dropped.
func (c *Conn) emit(line Line) {
	select {
	case c.lines <- line:
		return
	default:
	}
	select {
	case <-c.lines:
		c.log.Warn("inbound buffer full, dropping oldest line")
	default:
	}
	select {
	case c.lines <- line:
	default:
	}
}
