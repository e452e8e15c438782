package irc

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// wire is the minimal connection surface Sender needs. Conn satisfies
// it; tests substitute a fake.
type wire interface {
	Ready() bool
	SendMessage(target, text string)
	SendAction(target, text string)
}

// Sender delivers outbound text over one connection: replies are
// chunked to the protocol line limit and paced so the server's flood
// protection never triggers. One Sender per account; Say and Action
// may be called from any goroutine, chunks of a single Say are always
// delivered in order.
type Sender struct {
	accountID string
	conn      wire
	maxLen    int
	pace      *rate.Limiter
}

// NewSender builds a sender pacing one line per delay.
func NewSender(accountID string, conn wire, maxLen int, delay time.Duration) *Sender {
	if delay <= 0 {
		delay = time.Second
	}
	return &Sender{
		accountID: accountID,
		conn:      conn,
		maxLen:    maxLen,
		pace:      rate.NewLimiter(rate.Every(delay), 1),
	}
}

// Say sends text to target, split into protocol-sized chunks with the
// flood delay between them. Whitespace-only text is a no-op. Returns
// NotConnectedError when the connection is not registered.
func (s *Sender) Say(ctx context.Context, target, text string) error {
	chunks := Chunk(text, s.maxLen)
	if len(chunks) == 0 {
		return nil
	}
	for _, chunk := range chunks {
		if !s.conn.Ready() {
			return &NotConnectedError{Account: s.accountID}
		}
		if err := s.pace.Wait(ctx); err != nil {
			return err
		}
		s.conn.SendMessage(target, chunk)
	}
	return nil
}

// Action sends a single /me line. Actions are never chunked; overlong
// text is truncated at the protocol limit.
func (s *Sender) Action(ctx context.Context, target, text string) error {
	if text == "" {
		return nil
	}
	if !s.conn.Ready() {
		return &NotConnectedError{Account: s.accountID}
	}
	if len(text) > s.maxLen {
		text = text[:s.maxLen]
	}
	if err := s.pace.Wait(ctx); err != nil {
		return err
	}
	s.conn.SendAction(target, text)
	return nil
}
