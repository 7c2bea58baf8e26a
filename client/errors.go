// Package client implements the Android TV Remote protocol: the pairing
// handshake, the remote-control session, voice streaming, and the
// connection lifecycle above them.
package client

import "errors"

// Sentinel errors for the failure taxonomy. Callers classify with errors.Is;
// functions wrap these with context via fmt.Errorf("...: %w", ...).
var (
	// ErrCannotConnect is a transport-level open failure (DNS, refused,
	// reset). Retried by the reconnect loop.
	ErrCannotConnect = errors.New("cannot connect")

	// ErrConnectionClosed means the peer closed, the idle timer evicted the
	// connection, or an operation was attempted after disconnect. Retried by
	// the reconnect loop.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrInvalidAuth means the TLS handshake was rejected, the pairing hash
	// did not match, or the pairing code was malformed. Never retried
	// automatically: re-pairing needs the user.
	ErrInvalidAuth = errors.New("invalid auth")

	// ErrInvalidArgument is an unmapped key code or direction name, or
	// empty text.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTimeout means a voice session start exceeded its deadline or one is
	// already in progress.
	ErrTimeout = errors.New("timeout")
)
