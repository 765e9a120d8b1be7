package net

import (
	"errors"
)

var (
	// ErrTransportShutdown is returned when operations on a transport are
	// invoked after it's been terminated.
	ErrTransportShutdown = errors.New("transport shutdown")

	// ErrLineTooLong is returned by Receive when an input line exceeds the
	// configured maximum size.
	ErrLineTooLong = errors.New("line too long")
)

// Transport provides an interface for the streams a node exchanges messages
// over.
type Transport interface {

	// Receive blocks until the next non-empty line is available and returns
	// it without its line terminator. It returns io.EOF once the input is
	// exhausted.
	Receive() ([]byte, error)

	// Send writes msg, which must already end with a newline, as a single
	// line and flushes it.
	Send(msg []byte) error

	// Close permanently closes a transport. Receive and Send fail with
	// ErrTransportShutdown afterwards.
	Close() error
}
