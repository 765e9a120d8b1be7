package protocol

import (
	"errors"
	"fmt"
)

// CodecErrType classifies codec failures.
type CodecErrType uint32

const (
	// Malformed input: not JSON, not the expected shape, or missing fields
	// required by the tagged variant.
	Malformed CodecErrType = iota
	// Unencodable means a constructed message could not be serialized.
	Unencodable
)

func (t CodecErrType) String() string {
	switch t {
	case Malformed:
		return "malformed"
	case Unencodable:
		return "unencodable"
	default:
		return "unknown"
	}
}

// DecodeError is returned when a line cannot be turned into an Envelope.
type DecodeError struct {
	Kind   CodecErrType
	Reason string
	Err    error
}

func newMalformed(err error, format string, args ...interface{}) *DecodeError {
	return &DecodeError{
		Kind:   Malformed,
		Reason: fmt.Sprintf(format, args...),
		Err:    err,
	}
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode: %s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode: %s: %s", e.Kind, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// EncodeError is returned when an Envelope cannot be serialized. It indicates
// a bug in whatever built the message.
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode: %s: %v", Unencodable, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// IsMalformed reports whether err is, or wraps, a Malformed DecodeError.
func IsMalformed(err error) bool {
	var de *DecodeError
	return errors.As(err, &de) && de.Kind == Malformed
}
