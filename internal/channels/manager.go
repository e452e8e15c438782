package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/ircclaw/internal/bus"
)

// Manager owns the set of configured accounts: bulk start/stop, status
// aggregation, and routing of outbound bus messages to the right
// account. Registration happens before StartAll; the account set is
// fixed afterwards.
type Manager struct {
	mu       sync.RWMutex
	accounts map[string]Channel
	router   bus.MessageRouter
	log      *slog.Logger
}

// NewManager creates an empty registry.
func NewManager(router bus.MessageRouter, log *slog.Logger) *Manager {
	return &Manager{
		accounts: make(map[string]Channel),
		router:   router,
		log:      log,
	}
}

// Register adds an account. Duplicate IDs are a configuration bug.
func (m *Manager) Register(ch Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := ch.AccountID()
	if _, exists := m.accounts[id]; exists {
		return fmt.Errorf("duplicate account %q", id)
	}
	m.accounts[id] = ch
	return nil
}

// StartAll starts every registered account concurrently and waits for
// all of them to finish their initial connect. One account failing does
// not abort the others; the first error is returned after all attempts
// complete.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var g errgroup.Group
	for id, ch := range m.accounts {
		g.Go(func() error {
			if err := ch.Start(ctx); err != nil {
				m.log.Error("account failed to start", "account", id, "error", err)
				return fmt.Errorf("start %s: %w", id, err)
			}
			m.log.Info("account started", "account", id)
			return nil
		})
	}
	return g.Wait()
}

// StopAll stops every account. Errors are logged, not propagated; stop
// must always run to completion.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var wg sync.WaitGroup
	for id, ch := range m.accounts {
		wg.Add(1)
		go func(id string, ch Channel) {
			defer wg.Done()
			if err := ch.Stop(ctx); err != nil {
				m.log.Warn("account stop failed", "account", id, "error", err)
			}
		}(id, ch)
	}
	wg.Wait()
}

const outboundQueueSize = 64

// DispatchOutbound drains the outbound side of the bus until ctx is
// canceled. Each account gets its own queue and delivery goroutine:
// messages for one account stay ordered, while a slow or paced send on
// one account never holds up another's.
func (m *Manager) DispatchOutbound(ctx context.Context) {
	queues := make(map[string]chan bus.OutboundMessage)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		msg, ok := m.router.SubscribeOutbound(ctx)
		if !ok {
			return
		}
		q, ok := queues[msg.Account]
		if !ok {
			q = make(chan bus.OutboundMessage, outboundQueueSize)
			queues[msg.Account] = q
			wg.Add(1)
			go m.deliverLoop(ctx, msg.Account, q, &wg)
		}
		select {
		case q <- msg:
		default:
			m.log.Warn("outbound queue full, dropping message",
				"account", msg.Account, "chat_id", msg.ChatID)
		}
	}
}

func (m *Manager) deliverLoop(ctx context.Context, account string, q <-chan bus.OutboundMessage, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-q:
			if err := m.Send(ctx, msg); err != nil {
				m.log.Warn("outbound delivery failed",
					"account", account, "chat_id", msg.ChatID, "error", err)
			}
		}
	}
}

// Send routes one outbound message to its account.
func (m *Manager) Send(ctx context.Context, msg bus.OutboundMessage) error {
	m.mu.RLock()
	ch, ok := m.accounts[msg.Account]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown account %q", msg.Account)
	}
	return ch.Send(ctx, msg)
}

// Statuses returns per-account snapshots sorted by account ID.
func (m *Manager) Statuses() []AccountStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]AccountStatus, 0, len(m.accounts))
	for _, ch := range m.accounts {
		out = append(out, ch.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out
}
