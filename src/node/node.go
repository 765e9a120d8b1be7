package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/mosaicnetworks/maelnode/src/config"
	"github.com/mosaicnetworks/maelnode/src/journal"
	"github.com/mosaicnetworks/maelnode/src/net"
	"github.com/mosaicnetworks/maelnode/src/peers"
	"github.com/mosaicnetworks/maelnode/src/protocol"
	"github.com/mosaicnetworks/maelnode/src/telemetry"
	"github.com/sirupsen/logrus"
)

// Node defines a maelnode
type Node struct {
	state

	conf   *config.Config
	logger *logrus.Entry

	trans   net.Transport
	journal journal.Journal

	registry     *protocol.Registry
	decodePolicy DecodePolicy
	initPolicy   InitPolicy

	// mu guards everything below. Handle holds it for the whole dispatch so
	// that readers such as the HTTP service see consistent values.
	mu       sync.Mutex
	handlers map[string]HandlerFunc
	nodeID   protocol.NodeID
	hasID    bool
	peers    *peers.PeerSet
	nextID   protocol.MessageID

	start        time.Time
	handled      int
	unhandled    int
	decodeErrors int
	inits        int
}

// NewNode is a factory method that returns a Node instance. j may be nil, in
// which case nothing is journalled.
func NewNode(conf *config.Config, trans net.Transport, j journal.Journal) (*Node, error) {
	decodePolicy, err := ParseDecodePolicy(conf.DecodePolicy)
	if err != nil {
		return nil, err
	}

	initPolicy, err := ParseInitPolicy(conf.InitPolicy)
	if err != nil {
		return nil, err
	}

	node := &Node{
		conf:         conf,
		logger:       conf.Logger(),
		trans:        trans,
		journal:      j,
		registry:     protocol.NewDefaultRegistry(),
		decodePolicy: decodePolicy,
		initPolicy:   initPolicy,
		handlers:     make(map[string]HandlerFunc),
		start:        time.Now(),
	}

	node.handlers[protocol.TypeEcho] = node.processEcho
	node.handlers[protocol.TypeInit] = node.processInit

	return node, nil
}

// Register sets the handler for messages of type tag, replacing any previous
// one, built-ins included. Payloads of types unknown to Registry reach the
// handler as protocol.Unknown.
func (n *Node) Register(tag string, h HandlerFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[tag] = h
}

// Registry returns the payload registry Run decodes with.
func (n *Node) Registry() *protocol.Registry {
	return n.registry
}

// Handle advances the message counter and dispatches in to the handler for
// its type. It returns the reply, or nil when there is none.
func (n *Node) Handle(in *protocol.Envelope) *protocol.Envelope {
	if in == nil {
		return nil
	}

	start := time.Now()

	n.mu.Lock()
	defer n.mu.Unlock()

	typ := in.Body.Type()

	// No id is left above the counter, so nothing can be sent.
	if n.nextID == math.MaxUint64 || (in.Body.ID != nil && *in.Body.ID == math.MaxUint64) {
		n.unhandled++
		n.logger.WithFields(logrus.Fields{
			"src":     in.Src,
			"type":    typ,
			"next_id": n.nextID,
		}).Error("Message ids exhausted, dropping message")
		telemetry.ObserveHandled(n.typeLabel(typ), false, time.Since(start))
		return nil
	}

	if in.Body.ID != nil && *in.Body.ID > n.nextID {
		n.nextID = *in.Body.ID
	}
	n.nextID++

	logger := n.logger.WithFields(logrus.Fields{
		"src":  in.Src,
		"type": typ,
		"id":   n.nextID,
	})

	if !n.hasID && typ != protocol.TypeInit {
		logger.Warn("Message received before init")
	}

	var out *protocol.Envelope

	h, ok := n.handlers[typ]
	if ok {
		n.handled++
		out = h(&Request{
			Envelope: in,
			ID:       n.nextID,
			Self:     n.nodeID,
			Peers:    n.peers,
		})
	} else {
		n.unhandled++
		logger.Debug("Unhandled message type")
	}

	telemetry.ObserveHandled(n.typeLabel(typ), ok, time.Since(start))

	return out
}

func (n *Node) processEcho(req *Request) *protocol.Envelope {
	cmd, ok := req.Body.Payload.(protocol.Echo)
	if !ok {
		n.logger.WithField("payload", fmt.Sprintf("%T", req.Body.Payload)).Error("Unexpected echo payload")
		return nil
	}

	return req.Reply(protocol.EchoOk{Echo: cmd.Echo})
}

func (n *Node) processInit(req *Request) *protocol.Envelope {
	cmd, ok := req.Body.Payload.(protocol.Init)
	if !ok {
		n.logger.WithField("payload", fmt.Sprintf("%T", req.Body.Payload)).Error("Unexpected init payload")
		return nil
	}

	n.inits++

	if n.hasID {
		logger := n.logger.WithFields(logrus.Fields{
			"current": n.nodeID,
			"new":     cmd.NodeID,
			"policy":  n.conf.InitPolicy,
		})

		switch n.initPolicy {
		case IgnoreReinit:
			logger.Warn("Repeated init, keeping identity")
			return req.ReplyFrom(n.nodeID, protocol.InitOk{})
		case RejectReinit:
			logger.Warn("Repeated init, rejecting")
			return req.ReplyFrom(n.nodeID, protocol.Error{
				Code: protocol.CodePreconditionFailed,
				Text: fmt.Sprintf("already initialized as %s", n.nodeID),
			})
		default:
			logger.Warn("Repeated init, replacing identity")
		}
	}

	n.nodeID = cmd.NodeID
	n.hasID = true
	n.peers = peers.NewPeerSet(cmd.NodeIDs)

	if !n.peers.Contains(cmd.NodeID) {
		n.logger.WithField("node_id", cmd.NodeID).Warn("node_id missing from node_ids")
	}

	if n.getState() == Uninitialized {
		n.setState(Initialized)
	}

	n.logger.WithFields(logrus.Fields{
		"node_id": n.nodeID,
		"peers":   n.peers.Len(),
	}).Info("Initialized")

	return req.ReplyFrom(n.nodeID, protocol.InitOk{})
}

// Run reads, handles and answers messages one at a time until the input is
// exhausted, in which case it returns nil. Read, write and encoding errors are
// returned, as are decode errors under the strict decode policy. Cancelling
// ctx stops the loop before the next message.
func (n *Node) Run(ctx context.Context) error {
	defer n.setState(Shutdown)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := n.trans.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) {
				n.logger.Debug("End of input")
				return nil
			}
			if errors.Is(err, net.ErrTransportShutdown) && n.getState() == Shutdown {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		if err := n.processLine(line); err != nil {
			return err
		}
	}
}

func (n *Node) processLine(line []byte) error {
	n.record(journal.Inbound, line)

	in, err := n.registry.Decode(line)
	if err != nil {
		n.mu.Lock()
		n.decodeErrors++
		n.mu.Unlock()
		telemetry.DecodeErrorsTotal.Inc()

		if n.decodePolicy == SkipMalformed {
			n.logger.WithError(err).WithField("line", string(line)).Warn("Skipping undecodable line")
			return nil
		}
		return fmt.Errorf("decoding input: %w", err)
	}

	out := n.Handle(in)
	if out == nil {
		return nil
	}

	msg, err := protocol.Encode(out)
	if err != nil {
		return fmt.Errorf("encoding reply: %w", err)
	}

	if err := n.trans.Send(msg); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	telemetry.ObserveSent(n.typeLabel(out.Body.Type()))
	n.record(journal.Outbound, msg)

	return nil
}

// record appends line to the journal. The journal is an observer, failures
// are logged and do not stop the node.
func (n *Node) record(dir journal.Direction, line []byte) {
	if n.journal == nil {
		return
	}
	if _, err := n.journal.Append(dir, line); err != nil {
		n.logger.WithError(err).WithField("direction", dir).Error("Journal append")
	}
}

func (n *Node) typeLabel(typ string) string {
	return telemetry.TypeLabel(typ, n.registry.Registered)
}

// Shutdown closes the transport, which unblocks a pending Run. It can be
// called more than once.
func (n *Node) Shutdown() {
	n.logger.Debug("Shutdown")
	n.setState(Shutdown)
	if err := n.trans.Close(); err != nil {
		n.logger.WithError(err).Error("Closing transport")
	}
}

// GetState returns the lifecycle state of the node.
func (n *Node) GetState() State {
	return n.getState()
}

// GetStats returns stats
func (n *Node) GetStats() map[string]string {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := "nil"
	if n.hasID {
		id = string(n.nodeID)
	}

	var journalLen uint64
	if n.journal != nil {
		journalLen = n.journal.Len()
	}

	s := map[string]string{
		"id":              id,
		"state":           n.getState().String(),
		"next_id":         strconv.FormatUint(uint64(n.nextID), 10),
		"num_peers":       strconv.Itoa(n.peers.Len()),
		"handled":         strconv.Itoa(n.handled),
		"unhandled":       strconv.Itoa(n.unhandled),
		"decode_errors":   strconv.Itoa(n.decodeErrors),
		"inits":           strconv.Itoa(n.inits),
		"journal_entries": strconv.FormatUint(journalLen, 10),
		"uptime":          time.Since(n.start).Round(time.Second).String(),
	}
	return s
}

// ID returns the node's id and whether the handshake has happened.
func (n *Node) ID() (protocol.NodeID, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.nodeID, n.hasID
}

// Peers returns the membership received in the last applied init message.
func (n *Node) Peers() *peers.PeerSet {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.peers
}

// NextID returns the id of the most recently processed message.
func (n *Node) NextID() protocol.MessageID {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.nextID
}

// Journal returns the node's journal, possibly nil.
func (n *Node) Journal() journal.Journal {
	return n.journal
}
