package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NodeID identifies a node or a client within the cluster.
type NodeID string

// MessageID is assigned by the sender of a message and is unique among the
// messages that sender originates.
type MessageID uint64

// MsgID returns a pointer to id, for building Bodies.
func MsgID(id MessageID) *MessageID {
	return &id
}

// Envelope is the outer record of every message.
type Envelope struct {
	Src  NodeID `json:"src"`
	Dest NodeID `json:"dest"`
	Body Body   `json:"body"`
}

// Body carries the correlation ids and the tagged payload of a message. ID is
// nil for messages that do not expect an answer, ReplyTo is nil for messages
// that are not answers.
type Body struct {
	ID      *MessageID
	ReplyTo *MessageID
	Payload Payload
}

// Type returns the discriminant of the payload, or "" if there is none.
func (b *Body) Type() string {
	if b.Payload == nil {
		return ""
	}
	return b.Payload.Type()
}

// MarshalJSON flattens the payload fields together with type, msg_id and
// in_reply_to into one object.
func (b Body) MarshalJSON() ([]byte, error) {
	if b.Payload == nil {
		return nil, fmt.Errorf("body has no payload")
	}

	raw, err := json.Marshal(b.Payload)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]json.RawMessage)
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("payload %q is not an object: %v", b.Payload.Type(), err)
	}

	for _, k := range reservedKeys {
		if _, ok := fields[k]; ok {
			return nil, fmt.Errorf("payload %q uses reserved key %q", b.Payload.Type(), k)
		}
	}

	if fields[keyType], err = json.Marshal(b.Payload.Type()); err != nil {
		return nil, err
	}
	if b.ID != nil {
		if fields[keyMsgID], err = json.Marshal(*b.ID); err != nil {
			return nil, err
		}
	}
	if b.ReplyTo != nil {
		if fields[keyInReplyTo], err = json.Marshal(*b.ReplyTo); err != nil {
			return nil, err
		}
	}

	return json.Marshal(fields)
}

// UnmarshalJSON decodes a flat body with the DefaultRegistry.
func (b *Body) UnmarshalJSON(data []byte) error {
	body, err := DefaultRegistry.decodeBody(data)
	if err != nil {
		return err
	}
	*b = *body
	return nil
}

const (
	keyType      = "type"
	keyMsgID     = "msg_id"
	keyInReplyTo = "in_reply_to"
)

var reservedKeys = []string{keyType, keyMsgID, keyInReplyTo}
