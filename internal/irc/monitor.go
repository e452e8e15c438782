package irc

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/nextlevelbuilder/ircclaw/internal/bus"
	"github.com/nextlevelbuilder/ircclaw/internal/config"
	"github.com/nextlevelbuilder/ircclaw/internal/sessions"
)

const rateLimitNotice = "You're sending messages too quickly. Please slow down."

// Monitor turns raw inbound lines into normalized bus messages. Each
// line runs the full gate sequence: self-echo check, sanitization,
// content validation, authorization, rate limiting, then mention
// extraction. Denials are silent toward the sender; only the first
// rate-limit hit per window gets a notice back.
type Monitor struct {
	accountID string
	cfg       config.AccountConfig
	limiter   *Limiter
	router    bus.MessageRouter
	log       *slog.Logger

	// nick supplies the connection's current nick, which can drift from
	// the configured one after a collision.
	nick func() string

	// onAccept fires for every message that makes it onto the bus.
	onAccept func()
}

// NewMonitor wires a monitor for one account. onAccept may be nil.
func NewMonitor(accountID string, cfg config.AccountConfig, limiter *Limiter, router bus.MessageRouter, nick func() string, log *slog.Logger, onAccept func()) *Monitor {
	return &Monitor{
		accountID: accountID,
		cfg:       cfg,
		limiter:   limiter,
		router:    router,
		log:       log.With("account", accountID),
		nick:      nick,
		onAccept:  onAccept,
	}
}

// HandleLine processes one inbound line end to end. It never blocks on
// the agent; accepted messages are handed to the bus and the caller
// moves on to the next line.
func (m *Monitor) HandleLine(line Line) {
	self := m.nick()
	if strings.EqualFold(line.Sender, self) {
		return
	}

	san := Sanitize(line.Text)
	if san.OutOfBand && !san.Emote {
		m.log.Debug("ignoring out-of-band message", "command", san.Command, "sender", line.Sender)
		return
	}
	if !IsValidContent(san.Text) {
		return
	}

	isChannel := IsChannelTarget(line.Target)
	chatID := line.Sender
	authTarget := self
	if isChannel {
		chatID = line.Target
		authTarget = line.Target
	}

	if d := Authorize(line.Sender, authTarget, m.cfg); !d.Authorized {
		m.log.Debug("unauthorized message dropped",
			"sender", line.Sender, "target", line.Target, "reason", d.Reason)
		return
	}

	if r := m.limiter.Check(line.Sender); r.Limited {
		m.log.Info("rate limited", "sender", line.Sender)
		if r.ShouldNotify {
			notice := rateLimitNotice
			if isChannel {
				notice = fmt.Sprintf("%s: %s", line.Sender, rateLimitNotice)
			}
			m.router.PublishOutbound(bus.OutboundMessage{
				Account: m.accountID,
				ChatID:  chatID,
				Content: notice,
			})
		}
		return
	}

	content := san.Text
	if san.Emote {
		// Third-person render so the agent sees what the room saw.
		content = fmt.Sprintf("* %s %s", line.Sender, san.Text)
	}

	addressed := true
	if isChannel {
		mention := ExtractMention(content, self)
		addressed = mention.Mentioned
		if mention.Mentioned {
			content = mention.CleanText
		}
	}
	if !IsValidContent(content) {
		return
	}

	m.router.PublishInbound(bus.InboundMessage{
		Account:    m.accountID,
		SenderID:   line.Sender,
		ChatID:     chatID,
		Content:    content,
		PeerKind:   string(sessions.PeerKindFromTarget(isChannel)),
		Addressed:  addressed,
		SessionKey: sessions.BuildSessionKey(m.accountID, chatID),
		Metadata: map[string]string{
			"sender": line.Sender,
			"target": line.Target,
		},
	})
	if m.onAccept != nil {
		m.onAccept()
	}
}
