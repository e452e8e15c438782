package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nextlevelbuilder/ircclaw/internal/agent"
	"github.com/nextlevelbuilder/ircclaw/internal/bus"
	"github.com/nextlevelbuilder/ircclaw/internal/channels"
	"github.com/nextlevelbuilder/ircclaw/internal/config"
	"github.com/nextlevelbuilder/ircclaw/internal/irc"
)

const stopTimeout = 10 * time.Second

func runBridge() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if !verbose {
		if lvl, ok := parseLogLevel(cfg.LogLevel); ok {
			logLevel = lvl
		}
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(log)

	enabled := enabledAccounts(cfg)
	if len(enabled) == 0 {
		slog.Error("no enabled accounts in config", "path", cfgPath)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	msgBus := bus.New()
	limiter := irc.NewLimiter(cfg.RateLimit)
	defer limiter.Close()

	invoker := agent.NewGatewayClient(cfg.Gateway, log)
	defer invoker.Close()

	manager := channels.NewManager(msgBus, log)
	for id, acc := range enabled {
		account := irc.NewAccount(id, acc, cfg.Reconnect, limiter, msgBus, log)
		if err := manager.Register(account); err != nil {
			slog.Error("account registration failed", "account", id, "error", err)
			os.Exit(1)
		}
	}

	slog.Info("starting accounts", "count", len(enabled), "gateway", cfg.Gateway.URL)
	if err := manager.StartAll(ctx); err != nil {
		slog.Error("startup failed", "error", err)
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		manager.StopAll(stopCtx)
		cancel()
		os.Exit(1)
	}

	go manager.DispatchOutbound(ctx)
	go consumeInbound(ctx, msgBus, invoker)

	slog.Info("bridge running")
	<-ctx.Done()

	slog.Info("shutting down")
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	manager.StopAll(stopCtx)
}

func enabledAccounts(cfg *config.Config) map[string]config.AccountConfig {
	out := make(map[string]config.AccountConfig)
	for id, acc := range cfg.Accounts {
		if acc.Enabled {
			out[id] = acc
		}
	}
	return out
}

func parseLogLevel(s string) (slog.Level, bool) {
	switch s {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return 0, false
	}
}

// consumeInbound reads normalized messages off the bus and routes each
// through the agent, publishing replies back out. Invocations run in
// their own goroutine so one slow agent call never stalls the loop.
func consumeInbound(ctx context.Context, msgBus *bus.MessageBus, invoker agent.Invoker) {
	slog.Info("inbound message consumer started")
	for {
		msg, ok := msgBus.ConsumeInbound(ctx)
		if !ok {
			return
		}
		go handleInbound(ctx, msgBus, invoker, msg)
	}
}

func handleInbound(ctx context.Context, msgBus *bus.MessageBus, invoker agent.Invoker, msg bus.InboundMessage) {
	slog.Info("inbound: dispatching to agent",
		"account", msg.Account,
		"chat_id", msg.ChatID,
		"peer_kind", msg.PeerKind,
		"addressed", msg.Addressed,
		"session", msg.SessionKey,
	)

	// In channels, replies are addressed to whoever asked; DM replies
	// go out bare.
	prefix := ""
	if msg.PeerKind == "group" {
		prefix = msg.SenderID + ": "
	}

	err := invoker.Invoke(ctx, agent.Request{
		SessionKey: msg.SessionKey,
		Message:    msg.Content,
		Sender:     msg.SenderID,
		Reply: func(ctx context.Context, text string) error {
			msgBus.PublishOutbound(bus.OutboundMessage{
				Account: msg.Account,
				ChatID:  msg.ChatID,
				Content: prefix + text,
			})
			return nil
		},
	})
	if err != nil {
		slog.Error("agent invocation failed",
			"account", msg.Account, "chat_id", msg.ChatID, "error", err)
		msgBus.PublishOutbound(bus.OutboundMessage{
			Account: msg.Account,
			ChatID:  msg.ChatID,
			Content: prefix + formatAgentError(err),
		})
	}
}

// formatAgentError produces the user-facing failure line. The cause
// stays in the logs; only the correlation ref goes to chat.
func formatAgentError(err error) string {
	var inv *agent.InvocationError
	if errors.As(err, &inv) {
		return fmt.Sprintf("Sorry, something went wrong handling that. (ref: %s)", shortRef(inv.Ref))
	}
	return "Sorry, something went wrong handling that."
}

func shortRef(ref string) string {
	if len(ref) > 8 {
		return ref[:8]
	}
	return ref
}
