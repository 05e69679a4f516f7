package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotInitialized    = errors.New("session not initialized")
	ErrNoActiveKey       = errors.New("no active key loaded")
	ErrInvalidDescriptor = errors.New("invalid key descriptor")
	ErrClosed            = errors.New("bridge closed")
)

// StateError reports an operation that is illegal in the current session state.
// It is raised locally; the provider is never called.
type StateError struct {
	Op    string
	State State
	Err   error // ErrNotInitialized or ErrNoActiveKey
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s (session %s)", e.Op, e.Err, e.State)
}

func (e *StateError) Unwrap() error {
	return e.Err
}
