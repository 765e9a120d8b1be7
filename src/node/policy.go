package node

import (
	"fmt"

	"github.com/mosaicnetworks/maelnode/src/config"
)

// DecodePolicy decides what Run does with a line that cannot be decoded.
type DecodePolicy uint8

const (
	// StrictDecode makes Run return the decode error.
	StrictDecode DecodePolicy = iota
	// SkipMalformed drops the line and carries on.
	SkipMalformed
)

// ParseDecodePolicy maps a config value onto a DecodePolicy. The empty string
// selects the default.
func ParseDecodePolicy(s string) (DecodePolicy, error) {
	switch s {
	case config.DecodeStrict, "":
		return StrictDecode, nil
	case config.DecodeSkip:
		return SkipMalformed, nil
	default:
		return StrictDecode, fmt.Errorf("unknown decode policy %q", s)
	}
}

// InitPolicy decides how a node answers an init message once it already has
// an identity.
type InitPolicy uint8

const (
	// Reinit adopts the new identity and membership.
	Reinit InitPolicy = iota
	// IgnoreReinit keeps the current identity and acknowledges.
	IgnoreReinit
	// RejectReinit keeps the current identity and answers with an error.
	RejectReinit
)

// ParseInitPolicy maps a config value onto an InitPolicy. The empty string
// selects the default.
func ParseInitPolicy(s string) (InitPolicy, error) {
	switch s {
	case config.InitReinit, "":
		return Reinit, nil
	case config.InitIgnore:
		return IgnoreReinit, nil
	case config.InitReject:
		return RejectReinit, nil
	default:
		return Reinit, fmt.Errorf("unknown init policy %q", s)
	}
}
