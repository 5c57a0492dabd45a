package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TransportError is a network-level failure: the exchange produced no HTTP
// response at all.
type TransportError struct {
	Op  string
	Err error
	// Connected is true when a connection was obtained before the failure.
	Connected bool
}

func (e *TransportError) Error() string { return e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// IsTimeout reports whether the failure was a deadline, in any phase.
func (e *TransportError) IsTimeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// IsReadTimeout reports whether the connection was established and the
// deadline hit while waiting for the response.
func (e *TransportError) IsReadTimeout() bool {
	return e.Connected && e.IsTimeout()
}

// StatusError is a well-formed exchange that returned a non-success status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string { return fmt.Sprintf("%d %s", e.StatusCode, e.Body) }

// AuthError is a rejected login. Body is the backend's reply verbatim.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("login failed: %d %s", e.StatusCode, e.Body)
}
