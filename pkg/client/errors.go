package client

import (
	"errors"
	"fmt"

	"github.com/dsa110/cartaview/pkg/icd"
)

// Sentinel errors for common client error conditions.
var (
	// ErrNotReady is returned when an operation requires the Ready state.
	ErrNotReady = errors.New("client: not ready")

	// ErrAlreadyConnected is returned when Connect is called on a client
	// that is not Disconnected.
	ErrAlreadyConnected = errors.New("client: already connected")

	// ErrConnectionClosed is returned when the socket drops while an
	// operation is pending.
	ErrConnectionClosed = errors.New("client: connection closed")

	// ErrHandshakeFailed is returned when the server rejects the
	// REGISTER_VIEWER handshake.
	ErrHandshakeFailed = errors.New("client: registration handshake failed")

	// ErrHandshakeTimeout is returned when no REGISTER_VIEWER_ACK arrives
	// within the handshake timeout.
	ErrHandshakeTimeout = errors.New("client: registration handshake timed out")
)

// OpError wraps an error with the operation that produced it.
type OpError struct {
	Op  string
	Err error
}

// Error returns the error message with operation context.
func (e *OpError) Error() string {
	return fmt.Sprintf("client: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *OpError) Unwrap() error {
	return e.Err
}

// ServerError is an ERROR_DATA message surfaced as a Go error.
type ServerError struct {
	Severity icd.ErrorSeverity
	Message  string
}

// Error returns the error message.
func (e *ServerError) Error() string {
	return fmt.Sprintf("client: server %s: %s", e.Severity, e.Message)
}
