package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrNetworkUnreachable means the request never got an HTTP response.
	ErrNetworkUnreachable = errors.New("backend unreachable")
	// ErrTimeout means the bounded wait for a response ran out.
	ErrTimeout = errors.New("backend timeout")
	// ErrServer matches every *ServerError.
	ErrServer = errors.New("backend error")
	// ErrDecode means the response body could not be understood.
	ErrDecode = errors.New("malformed backend response")
)

// ServerError is a non-2xx answer, or a 2xx answer carrying an error message.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrServer) match any ServerError.
func (e *ServerError) Is(target error) bool {
	return target == ErrServer
}

// IsTransport reports whether err is one of the recoverable failures a caller
// should retry or show to the user: unreachable, timeout, server or decode errors.
func IsTransport(err error) bool {
	return errors.Is(err, ErrNetworkUnreachable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrServer) ||
		errors.Is(err, ErrDecode)
}

// classify maps an error from http.Client.Do or a body read onto the taxonomy.
func classify(op string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %v", op, ErrTimeout, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%s: %w: %v", op, ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		// Caller went away; keep the cancellation visible to errors.Is.
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %v", op, ErrNetworkUnreachable, err)
	}
}
