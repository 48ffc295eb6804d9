package irc

import "errors"

var (
	// ErrNotActive is returned when a command is issued outside the joining or active states.
	ErrNotActive = errors.New("connection is not active")
	// ErrAlreadyStarted is returned when Connect is called more than once.
	ErrAlreadyStarted = errors.New("connection already started")
	// ErrClosed is returned when the connection was closed locally before it became active.
	ErrClosed = errors.New("connection closed")
)

// TransportError is a fatal I/O failure on the underlying stream.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e == nil {
		return ""
	}

	return "irc " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}
