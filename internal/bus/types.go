package bus

import "context"

// InboundMessage is a normalized message received from an IRC account,
// after sanitization, authorization and rate limiting have already run.
type InboundMessage struct {
	Account    string            `json:"account"`
	SenderID   string            `json:"sender_id"`
	ChatID     string            `json:"chat_id"`
	Content    string            `json:"content"`
	PeerKind   string            `json:"peer_kind"` // "direct" or "group"
	Addressed  bool              `json:"addressed"` // bot was mentioned in the text
	SessionKey string            `json:"session_key"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage is a message to be delivered to an IRC target.
type OutboundMessage struct {
	Account string `json:"account"`
	ChatID  string `json:"chat_id"`
	Content string `json:"content"`
	Action  bool   `json:"action,omitempty"` // send as emote (CTCP ACTION), never chunked
}

// MessageRouter abstracts inbound/outbound routing between accounts and
// the agent dispatch loop.
type MessageRouter interface {
	PublishInbound(msg InboundMessage)
	ConsumeInbound(ctx context.Context) (InboundMessage, bool)
	PublishOutbound(msg OutboundMessage)
	SubscribeOutbound(ctx context.Context) (OutboundMessage, bool)
}
