// Package channels defines the account abstraction the bridge manages
// and the registry that starts, stops, and routes to accounts.
package channels

import (
	"context"
	"time"

	"github.com/nextlevelbuilder/ircclaw/internal/bus"
)

// Channel is one managed IRC account. Implementations own the
// connection lifecycle and must be safe to stop more than once.
type Channel interface {
	// AccountID returns the configured account identifier.
	AccountID() string

	// Start connects and blocks until registration succeeds or fails
	// terminally. After a nil return the account runs in the background.
	Start(ctx context.Context) error

	// Stop tears the account down. Idempotent.
	Stop(ctx context.Context) error

	// Send delivers an outbound message to a target on this account.
	Send(ctx context.Context, msg bus.OutboundMessage) error

	// Status reports a point-in-time snapshot for diagnostics.
	Status() AccountStatus
}

// AccountStatus is a diagnostic snapshot of one account.
type AccountStatus struct {
	Account        string     `json:"account"`
	State          string     `json:"state"`
	Nick           string     `json:"nick"`
	Channels       []string   `json:"channels,omitempty"`
	Running        bool       `json:"running"`
	LastStartAt    *time.Time `json:"last_start_at,omitempty"`
	LastStopAt     *time.Time `json:"last_stop_at,omitempty"`
	LastInboundAt  *time.Time `json:"last_inbound_at,omitempty"`
	LastOutboundAt *time.Time `json:"last_outbound_at,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
}
