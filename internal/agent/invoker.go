// Package agent connects the bridge to its conversational agent
// gateway. The bridge never runs the agent itself; it forwards
// normalized messages and relays replies.
package agent

import (
	"context"
	"fmt"
)

// Request is one message forwarded to the agent. Reply is called for
// the agent's answer; a streaming gateway may call it more than once.
type Request struct {
	SessionKey string
	Message    string
	Sender     string
	Reply      func(ctx context.Context, text string) error
}

// Invoker dispatches requests to the agent.
type Invoker interface {
	Invoke(ctx context.Context, req Request) error
	Close() error
}

// InvocationError wraps a gateway failure. Ref is the correlation
// reference quoted in logs and user-facing failure notices; the
// underlying cause stays out of chat.
type InvocationError struct {
	Ref string
	Err error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("agent invocation failed (ref %s): %v", e.Ref, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }
