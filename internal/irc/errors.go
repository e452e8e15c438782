package irc

import (
	"errors"
	"fmt"
)

// RegistrationError reports that the server rejected the identity
// handshake. Carries the server-reported reason when one was given.
type RegistrationError struct {
	Reason string
	Err    error
}

func (e *RegistrationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("registration rejected: %s", e.Reason)
	}
	return fmt.Sprintf("registration failed: %v", e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// NotConnectedError reports a send attempted while the connection is not
// both connected and registered. Local, never retried; the caller must
// wait for reconnection.
type NotConnectedError struct {
	Account string
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("account %s: not connected", e.Account)
}

// ErrTerminated is returned by Connect after the connection manager has
// entered its terminal state via explicit disconnect or reconnect
// exhaustion.
var ErrTerminated = errors.New("connection terminated")
