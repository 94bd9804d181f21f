package chat

import (
	"errors"
	"fmt"
)

// ErrEmptyMessage is returned by Controller.Send for blank input. No network
// call is made in that case.
var ErrEmptyMessage = errors.New("chat: empty message")

// NetworkError wraps a failure to send or receive a request at all
// (connection refused, reset, DNS, cancelled dial). Retryable.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("chat: %s: %v", e.Op, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is a non-2xx response carrying the server-supplied message.
type ServerError struct {
	Op      string
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("chat: %s: HTTP %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("chat: %s: HTTP %d", e.Op, e.Status)
}

// ProtocolError indicates a malformed payload or an ordering violation
// (entries at or below the requested watermark). Violating entries are
// dropped defensively; a ProtocolError is surfaced only when the whole
// payload is unusable.
type ProtocolError struct {
	Op     string
	Reason string
}

func (e *ProtocolError) Error() string { return fmt.Sprintf("chat: %s: protocol: %s", e.Op, e.Reason) }

// IsRetryable reports whether the sync loop should keep going after err.
// Snapshot failures are terminal regardless; this applies to steady-state
// sync errors, where everything except a 4xx rejection is worth retrying.
func IsRetryable(err error) bool {
	var se *ServerError
	if errors.As(err, &se) {
		return se.Status < 400 || se.Status >= 500
	}
	return true
}
