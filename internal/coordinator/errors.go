package coordinator

import (
	"errors"
	"fmt"
)

// Consistency error stages.
const (
	// StageCompensate means the local undo after a remote failure failed.
	StageCompensate = "compensate"
	// StageLocalCommit means the local write after a remote success failed.
	StageLocalCommit = "local_commit"
)

// ConsistencyError reports a mutation that left the local store and the
// remote engine disagreeing.
type ConsistencyError struct {
	Op    string
	Key   string
	Stage string
	// Cause is the failure that triggered compensation, or the local write
	// failure for StageLocalCommit.
	Cause error
	// CompensationErr is the failed undo. Nil for StageLocalCommit.
	CompensationErr error
}

// Error implements the error interface.
func (e *ConsistencyError) Error() string {
	if e.CompensationErr != nil {
		return fmt.Sprintf("%s %s diverged at %s: %v (compensation: %v)", e.Op, e.Key, e.Stage, e.Cause, e.CompensationErr)
	}
	return fmt.Sprintf("%s %s diverged at %s: %v", e.Op, e.Key, e.Stage, e.Cause)
}

// Unwrap exposes both the cause and the compensation failure.
func (e *ConsistencyError) Unwrap() []error {
	var errs []error
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	if e.CompensationErr != nil {
		errs = append(errs, e.CompensationErr)
	}
	return errs
}

// IsConsistencyError returns true if err wraps a *ConsistencyError.
func IsConsistencyError(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}
