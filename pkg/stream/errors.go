package stream

import (
	"errors"
	"fmt"
)

// Error codes produced by the client itself. Error frames and HTTP error
// envelopes carry their own codes through unchanged.
const (
	CodeDisconnected = "DISCONNECTED"
	CodeStreamEnded  = "STREAM_ENDED"
	CodeStreamError  = "STREAM_ERROR"
	CodeTransport    = "UPSTREAM_UNAVAILABLE"
)

var (
	// ErrDisconnected is wrapped by the final error reported once the retry
	// ceiling is reached.
	ErrDisconnected = errors.New("stream disconnected")

	// ErrClosed is returned by Subscribe after Close.
	ErrClosed = errors.New("stream client closed")
)

// Error is a display-ready failure passed to Handler.HandleError.
type Error struct {
	// Code is a stable, machine readable identifier.
	Code string

	// Message is safe to show to a user as is.
	Message string

	// Attempt is the value of the attempt counter after this failure.
	Attempt int

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}
