package peers

import (
	"github.com/mosaicnetworks/maelnode/src/protocol"
)

// PeerSet is the ordered set of cluster members. It is immutable once built.
type PeerSet struct {
	Peers []*Peer                   `json:"peers"`
	ByID  map[protocol.NodeID]*Peer `json:"-"`
}

// NewPeerSet builds a PeerSet from node ids in announcement order. Duplicate
// ids keep their first position.
func NewPeerSet(ids []protocol.NodeID) *PeerSet {
	peerSet := &PeerSet{
		Peers: make([]*Peer, 0, len(ids)),
		ByID:  make(map[protocol.NodeID]*Peer, len(ids)),
	}

	for _, id := range ids {
		if _, ok := peerSet.ByID[id]; ok {
			continue
		}
		peer := NewPeer(id, len(peerSet.Peers))
		peerSet.Peers = append(peerSet.Peers, peer)
		peerSet.ByID[id] = peer
	}

	return peerSet
}

// Len returns the number of Peers in the PeerSet. A nil PeerSet is empty.
func (peerSet *PeerSet) Len() int {
	if peerSet == nil {
		return 0
	}
	return len(peerSet.Peers)
}

// IDs returns the ids of all peers in order.
func (peerSet *PeerSet) IDs() []protocol.NodeID {
	res := []protocol.NodeID{}
	if peerSet == nil {
		return res
	}
	for _, peer := range peerSet.Peers {
		res = append(res, peer.ID)
	}
	return res
}

// Contains reports whether id is a member.
func (peerSet *PeerSet) Contains(id protocol.NodeID) bool {
	if peerSet == nil {
		return false
	}
	_, ok := peerSet.ByID[id]
	return ok
}

// Others returns the ids of every member except self, in order. This is the
// usual fan-out list for gossip style handlers.
func (peerSet *PeerSet) Others(self protocol.NodeID) []protocol.NodeID {
	res := []protocol.NodeID{}
	if peerSet == nil {
		return res
	}
	_, others := ExcludePeer(peerSet.Peers, self)
	for _, peer := range others {
		res = append(res, peer.ID)
	}
	return res
}
