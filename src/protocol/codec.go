package protocol

import (
	"encoding/json"
)

type wireEnvelope struct {
	Src  *NodeID         `json:"src"`
	Dest *NodeID         `json:"dest"`
	Body json.RawMessage `json:"body"`
}

// Decode parses one line into an Envelope using the DefaultRegistry.
func Decode(line []byte) (*Envelope, error) {
	return DefaultRegistry.Decode(line)
}

// Decode parses one line into an Envelope. The line may or may not carry its
// trailing newline. Any failure is a *DecodeError of kind Malformed.
func (r *Registry) Decode(line []byte) (*Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(line, &w); err != nil {
		return nil, newMalformed(err, "envelope is not an object")
	}
	if w.Src == nil {
		return nil, newMalformed(nil, "envelope has no src")
	}
	if w.Dest == nil {
		return nil, newMalformed(nil, "envelope has no dest")
	}
	if len(w.Body) == 0 {
		return nil, newMalformed(nil, "envelope has no body")
	}

	body, err := r.decodeBody(w.Body)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		Src:  *w.Src,
		Dest: *w.Dest,
		Body: *body,
	}, nil
}

// Encode serializes env as one line of JSON terminated by a single '\n'.
func Encode(env *Envelope) ([]byte, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, &EncodeError{Err: err}
	}
	return append(b, '\n'), nil
}
