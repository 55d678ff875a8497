package engine

import (
	"errors"
	"fmt"
)

// ErrStopped is returned for units submitted after Stop, and for units still
// queued when the loop exits because its context was cancelled.
var ErrStopped = errors.New("event loop stopped")

// PanicError reports a unit that panicked on the loop goroutine.
// The loop recovers the panic and keeps running.
type PanicError struct {
	// Unit is the name the unit was submitted under.
	Unit string

	// Seq is the logical sequence number of the unit.
	Seq int64

	// Value is the recovered panic value.
	Value any
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("unit %q (seq=%d) panicked: %v", e.Unit, e.Seq, e.Value)
}

// IsPanicError returns true if err wraps a *PanicError.
func IsPanicError(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe)
}
