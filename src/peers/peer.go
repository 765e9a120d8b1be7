package peers

import (
	"github.com/mosaicnetworks/maelnode/src/protocol"
)

// Peer is a member of the cluster.
type Peer struct {
	ID    protocol.NodeID `json:"id"`
	Index int             `json:"index"`
}

// NewPeer ...
func NewPeer(id protocol.NodeID, index int) *Peer {
	return &Peer{
		ID:    id,
		Index: index,
	}
}

// ExcludePeer is used to exclude a single peer from a list of peers. It
// returns the position of the excluded peer, or -1.
func ExcludePeer(peers []*Peer, id protocol.NodeID) (int, []*Peer) {
	index := -1
	otherPeers := make([]*Peer, 0, len(peers))
	for i, p := range peers {
		if p.ID != id {
			otherPeers = append(otherPeers, p)
		} else {
			index = i
		}
	}
	return index, otherPeers
}
