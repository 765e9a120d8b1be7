package journal

import (
	"bytes"
	"time"

	"github.com/ugorji/go/codec"
)

// Direction tells whether a line was read or written by the node.
type Direction string

const (
	// Inbound lines were read from the harness.
	Inbound Direction = "in"
	// Outbound lines were written to the harness.
	Outbound Direction = "out"
)

// Entry is one journalled line.
type Entry struct {
	Index     uint64
	Direction Direction
	Timestamp int64
	Message   string
}

// NewEntry copies line, without its trailing newline, into a new Entry
// stamped with the current time. Index is set by the Journal.
func NewEntry(dir Direction, line []byte) *Entry {
	return &Entry{
		Direction: dir,
		Timestamp: time.Now().UnixNano(),
		Message:   string(bytes.TrimRight(line, "\r\n")),
	}
}

// Marshal - json encoding of Entry
func (e *Entry) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(e); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal ...
func (e *Entry) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(e)
}
