// Package store holds the client-side state of a view: the latest server
// response for each resource together with its loading and error status.
//
// A store is created when a view mounts and closed when it unmounts. Stores
// are passed to the code that needs them; there is no package-level state.
package store

import (
	"errors"
	"log/slog"
	"sync"
)

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")

	// ErrSignedOut is returned by operations that need a signed-in user.
	ErrSignedOut = errors.New("not signed in")

	// ErrEmptyMessage is returned when sending a blank direct message.
	ErrEmptyMessage = errors.New("empty message")
)

// Status is the page-visible state of a store.
type Status struct {
	Loading bool
	// Message is the user-facing description of the last failure, empty
	// after a success.
	Message string
	// Err is the last failure.
	Err error
}

// base carries the mutex, status and lifecycle shared by all stores.
type base struct {
	logger *slog.Logger

	mu     sync.Mutex
	status Status
	closed bool
}

// begin marks the store as loading. It fails when the store is closed.
func (b *base) begin() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.status.Loading = true
	return nil
}

// finish records the outcome of an operation started with begin and
// returns err. A non-nil err is logged and surfaced with msg. Results that
// arrive after Close are dropped with ErrClosed. b.mu must be held.
func (b *base) finish(err error, msg string) error {
	b.status.Loading = false
	if b.closed {
		return ErrClosed
	}
	if err != nil {
		b.logger.Error(msg, "error", err.Error())
		b.status.Err = err
		b.status.Message = msg
		return err
	}
	b.status.Err = nil
	b.status.Message = ""
	return nil
}

// Status returns the current loading and error state.
func (b *base) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *base) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.status = Status{}
}
