package session

import (
	"errors"
	"fmt"
)

var (
	// ErrReinitInFlight is returned when a connection attempt is already
	// running; the call did nothing.
	ErrReinitInFlight = errors.New("reinitialization already in progress")

	// ErrNotLive is returned when a live program handle is required.
	ErrNotLive = errors.New("no live program session")

	ErrNotConfigured  = errors.New("no program configured")
	ErrNoWallet       = errors.New("no wallet connected")
	ErrNoProgramID    = errors.New("program address unknown")
	ErrNothingToRetry = errors.New("last attempt did not fail")
)

// SessionError is an initialization failure. The reconciler is left in the
// Error state with its last configuration kept for a retry.
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }
