// Package bus provides the message plumbing between IRC accounts and the
// agent dispatch loop. Accounts publish normalized inbound messages;
// the dispatcher publishes outbound replies routed back to accounts.
package bus

import (
	"context"
	"log/slog"
)

const (
	inboundBufferSize  = 128
	outboundBufferSize = 128
)

// MessageBus is a buffered in-memory implementation of MessageRouter.
// There is exactly one bus per process, owned by the run command and
// passed by reference, never accessed as ambient global state.
type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage
}

// New creates a message bus with bounded buffers.
func New() *MessageBus {
	return &MessageBus{
		inbound:  make(chan InboundMessage, inboundBufferSize),
		outbound: make(chan OutboundMessage, outboundBufferSize),
	}
}

// PublishInbound enqueues an inbound message. If the buffer is full the
// message is dropped with a warning rather than blocking the account's
// event loop.
func (b *MessageBus) PublishInbound(msg InboundMessage) {
	select {
	case b.inbound <- msg:
	default:
		slog.Warn("inbound bus full, dropping message",
			"account", msg.Account, "chat_id", msg.ChatID)
	}
}

// ConsumeInbound blocks until an inbound message is available or the
// context is cancelled. The second return is false on cancellation.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case <-ctx.Done():
		return InboundMessage{}, false
	case msg := <-b.inbound:
		return msg, true
	}
}

// PublishOutbound enqueues an outbound message for delivery.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	select {
	case b.outbound <- msg:
	default:
		slog.Warn("outbound bus full, dropping message",
			"account", msg.Account, "chat_id", msg.ChatID)
	}
}

// SubscribeOutbound blocks until an outbound message is available or the
// context is cancelled.
func (b *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case <-ctx.Done():
		return OutboundMessage{}, false
	case msg := <-b.outbound:
		return msg, true
	}
}
