package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Fields holds the keys of a flat body, matched exactly. The body still
// contains type, msg_id and in_reply_to; variants ignore them.
type Fields map[string]json.RawMessage

// Get decodes the value of key into v. An absent or null key leaves v
// untouched. Keys are never matched case-insensitively, unlike struct
// decoding with encoding/json.
func (f Fields) Get(key string, v interface{}) error {
	raw, ok := f[key]
	if !ok || isNull(raw) {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// DecodeFunc builds a payload from the fields of a flat body.
type DecodeFunc func(fields Fields) (Payload, error)

type variant struct {
	decode   DecodeFunc
	required []string
}

// Registry maps discriminants to payload decoders. Adding a message type only
// means registering it here and handling it in the node; the codec does not
// change.
type Registry struct {
	sync.RWMutex
	variants map[string]variant
}

// DefaultRegistry knows the built-in payloads. It is used by Decode and by
// Body.UnmarshalJSON.
var DefaultRegistry = NewDefaultRegistry()

// NewRegistry returns an empty Registry. Every body decoded with it yields an
// Unknown payload until variants are registered.
func NewRegistry() *Registry {
	return &Registry{
		variants: make(map[string]variant),
	}
}

// NewDefaultRegistry returns a Registry with the built-in payloads.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(TypeEcho, func(f Fields) (Payload, error) {
		var p Echo
		err := f.Get("echo", &p.Echo)
		return p, err
	}, "echo")

	r.Register(TypeEchoOk, func(f Fields) (Payload, error) {
		var p EchoOk
		err := f.Get("echo", &p.Echo)
		return p, err
	}, "echo")

	r.Register(TypeInit, func(f Fields) (Payload, error) {
		var p Init
		if err := f.Get("node_id", &p.NodeID); err != nil {
			return nil, err
		}
		err := f.Get("node_ids", &p.NodeIDs)
		return p, err
	}, "node_id", "node_ids")

	r.Register(TypeInitOk, func(f Fields) (Payload, error) {
		return InitOk{}, nil
	})

	r.Register(TypeError, func(f Fields) (Payload, error) {
		var p Error
		if err := f.Get("code", &p.Code); err != nil {
			return nil, err
		}
		err := f.Get("text", &p.Text)
		return p, err
	}, "code")

	return r
}

// Register adds, or replaces, the decoder for tag. Keys listed in required
// must be present and non-null in a body of that type, otherwise decoding
// fails as Malformed.
func (r *Registry) Register(tag string, fn DecodeFunc, required ...string) {
	r.Lock()
	defer r.Unlock()
	r.variants[tag] = variant{
		decode:   fn,
		required: required,
	}
}

// Registered reports whether tag has a decoder.
func (r *Registry) Registered(tag string) bool {
	r.RLock()
	defer r.RUnlock()
	_, ok := r.variants[tag]
	return ok
}

// Types returns the registered discriminants, sorted.
func (r *Registry) Types() []string {
	r.RLock()
	defer r.RUnlock()
	res := make([]string, 0, len(r.variants))
	for tag := range r.variants {
		res = append(res, tag)
	}
	sort.Strings(res)
	return res
}

func (r *Registry) lookup(tag string) (variant, bool) {
	r.RLock()
	defer r.RUnlock()
	v, ok := r.variants[tag]
	return v, ok
}

func (r *Registry) decodeBody(data []byte) (*Body, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, newMalformed(err, "body is not an object")
	}
	if fields == nil {
		return nil, newMalformed(nil, "body is null")
	}

	rawType, ok := fields[keyType]
	if !ok || isNull(rawType) {
		return nil, newMalformed(nil, "body has no type")
	}
	var tag string
	if err := json.Unmarshal(rawType, &tag); err != nil {
		return nil, newMalformed(err, "type is not a string")
	}

	id, err := decodeMessageID(fields, keyMsgID)
	if err != nil {
		return nil, err
	}
	replyTo, err := decodeMessageID(fields, keyInReplyTo)
	if err != nil {
		return nil, err
	}

	body := &Body{
		ID:      id,
		ReplyTo: replyTo,
	}

	v, ok := r.lookup(tag)
	if !ok {
		var rest map[string]json.RawMessage
		for k, raw := range fields {
			if k == keyType || k == keyMsgID || k == keyInReplyTo {
				continue
			}
			if rest == nil {
				rest = make(map[string]json.RawMessage, len(fields))
			}
			rest[k] = raw
		}
		body.Payload = Unknown{Kind: tag, Fields: rest}
		return body, nil
	}

	for _, k := range v.required {
		if raw, ok := fields[k]; !ok || isNull(raw) {
			return nil, newMalformed(nil, "%s body is missing %q", tag, k)
		}
	}

	payload, err := v.decode(Fields(fields))
	if err != nil {
		return nil, newMalformed(err, "%s body", tag)
	}
	body.Payload = payload

	return body, nil
}

func decodeMessageID(fields map[string]json.RawMessage, key string) (*MessageID, error) {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return nil, nil
	}
	var id MessageID
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, newMalformed(err, "%s is not an unsigned integer", key)
	}
	return &id, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
