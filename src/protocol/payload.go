package protocol

import (
	"encoding/json"
)

// Discriminants of the built-in payloads.
const (
	TypeEcho   = "echo"
	TypeEchoOk = "echo_ok"
	TypeInit   = "init"
	TypeInitOk = "init_ok"
	TypeError  = "error"
)

// Payload is the variant-specific content of a Body. Type returns the
// discriminant written to the "type" key. Implementations must marshal to a
// JSON object that does not use the type, msg_id or in_reply_to keys.
type Payload interface {
	Type() string
}

// Echo asks the receiver to send Echo back.
type Echo struct {
	Echo string `json:"echo"`
}

// Type implements Payload.
func (Echo) Type() string { return TypeEcho }

// EchoOk answers an Echo with the same text.
type EchoOk struct {
	Echo string `json:"echo"`
}

// Type implements Payload.
func (EchoOk) Type() string { return TypeEchoOk }

// Init is the handshake that tells a node its own id and the ids of every
// member of the cluster, in order.
type Init struct {
	NodeID  NodeID   `json:"node_id"`
	NodeIDs []NodeID `json:"node_ids"`
}

// Type implements Payload.
func (Init) Type() string { return TypeInit }

// InitOk acknowledges an Init.
type InitOk struct{}

// Type implements Payload.
func (InitOk) Type() string { return TypeInitOk }

// Error codes understood by the harness.
const (
	CodeTimeout                = 0
	CodeNotSupported           = 10
	CodeTemporarilyUnavailable = 11
	CodeMalformedRequest       = 12
	CodeCrash                  = 13
	CodeAbort                  = 14
	CodeKeyDoesNotExist        = 20
	CodeKeyAlreadyExists       = 21
	CodePreconditionFailed     = 22
	CodeTxnConflict            = 30
)

// Error reports that a request could not be served.
type Error struct {
	Code int    `json:"code"`
	Text string `json:"text,omitempty"`
}

// Type implements Payload.
func (Error) Type() string { return TypeError }

// Unknown holds a body whose type is not registered. Fields contains every
// key of the body except type, msg_id and in_reply_to, untouched, so that
// encoding an Unknown reproduces the original body. A body without any such
// key decodes with nil Fields; nil and empty Fields encode alike.
type Unknown struct {
	Kind   string
	Fields map[string]json.RawMessage
}

// Type implements Payload.
func (u Unknown) Type() string { return u.Kind }

// MarshalJSON writes the preserved fields.
func (u Unknown) MarshalJSON() ([]byte, error) {
	if u.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(u.Fields)
}
