package client

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TransportError wraps a network-level failure. These are safe to retry;
// the request may never have reached the server.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError marks a request that ran out of time. Kept distinct from
// TransportError because a timed-out commit may still have been applied
// server-side; callers should re-submit with the same idempotency key
// instead of assuming nothing happened.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ValidationError is a 4xx rejection from the server. Retrying the same
// request is pointless; the input has to change.
type ValidationError struct {
	Status  int
	Message string
	Action  string
	Code    string
}

func (e *ValidationError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}

// ServerError is a 5xx response. The request was valid but the server
// could not handle it.
type ServerError struct {
	Status  int
	Message string
	Code    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Status, e.Message)
}

// Retryable reports whether an error is worth retrying with the same input.
func Retryable(err error) bool {
	var transport *TransportError
	var timeout *TimeoutError
	var server *ServerError
	return errors.As(err, &transport) || errors.As(err, &timeout) || errors.As(err, &server)
}

// wrapTransport classifies a request error as a timeout or transport failure.
func wrapTransport(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Op: op, Err: err}
	}
	return &TransportError{Op: op, Err: err}
}
