package node

import (
	"sync/atomic"
)

// State captures the lifecycle of a node: Uninitialized, Initialized or
// Shutdown.
type State uint32

const (
	// Uninitialized is the initial state, before any init message.
	Uninitialized State = iota
	// Initialized means the node knows its identity.
	Initialized
	// Shutdown means Run has returned.
	Shutdown
)

// String ...
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Initialized:
		return "Initialized"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

type state struct {
	state State
}

func (b *state) getState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

func (b *state) setState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}
