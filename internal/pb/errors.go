package pb

import (
	"errors"
	"fmt"
)

// Connection stages reported by ConnectionError.
const (
	StageDial       = "dial"
	StageAuth       = "auth"
	StageInvoke     = "invoke"
	StageDisconnect = "disconnect"
)

// ErrSessionClosed is returned by a Session used after Disconnect.
var ErrSessionClosed = errors.New("session closed")

// ErrReplyTooLarge is returned when one reply exceeds the dialer's
// MaxReply.
var ErrReplyTooLarge = errors.New("reply exceeds size limit")

// ConnectionError reports that the remote engine could not be reached,
// authenticated against, or talked to.
type ConnectionError struct {
	Endpoint string
	Stage    string
	Err      error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed at %s: %v", e.Endpoint, e.Stage, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *ConnectionError) Unwrap() error { return e.Err }

// RemoteOperationError reports that the engine rejected a command.
type RemoteOperationError struct {
	Op      string
	Message string
}

// Error implements the error interface.
func (e *RemoteOperationError) Error() string {
	return fmt.Sprintf("remote operation %q failed: %s", e.Op, e.Message)
}

// IsConnectionError returns true if err wraps a *ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// IsRemoteOperationError returns true if err wraps a *RemoteOperationError.
func IsRemoteOperationError(err error) bool {
	var re *RemoteOperationError
	return errors.As(err, &re)
}

// IsRemoteError reports whether err came from the remote side of a call,
// as opposed to local validation.
func IsRemoteError(err error) bool {
	return IsConnectionError(err) || IsRemoteOperationError(err)
}
