package node

import (
	"github.com/mosaicnetworks/maelnode/src/peers"
	"github.com/mosaicnetworks/maelnode/src/protocol"
)

// HandlerFunc answers one inbound message. Returning nil sends nothing.
// Handlers run while the node's state is locked and must not call back into
// the Node.
type HandlerFunc func(req *Request) *protocol.Envelope

// Request is an inbound message being dispatched, along with the id reserved
// for its reply and a snapshot of the node's identity.
type Request struct {
	*protocol.Envelope

	// ID is the id the node assigned when it processed this message.
	ID protocol.MessageID

	// Self is the node's id, empty before the handshake.
	Self protocol.NodeID

	// Peers is the current membership view, nil before the handshake.
	Peers *peers.PeerSet
}

// Reply builds an answer sent from the address the request was sent to.
func (r *Request) Reply(payload protocol.Payload) *protocol.Envelope {
	return r.ReplyFrom(r.Dest, payload)
}

// ReplyFrom builds an answer with an explicit source. The destination is the
// request's source, the reply carries the request's ID as in_reply_to and r.ID
// as its own msg_id.
func (r *Request) ReplyFrom(src protocol.NodeID, payload protocol.Payload) *protocol.Envelope {
	var replyTo *protocol.MessageID
	if r.Body.ID != nil {
		replyTo = protocol.MsgID(*r.Body.ID)
	}

	return &protocol.Envelope{
		Src:  src,
		Dest: r.Src,
		Body: protocol.Body{
			ID:      protocol.MsgID(r.ID),
			ReplyTo: replyTo,
			Payload: payload,
		},
	}
}
