package node

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/mosaicnetworks/maelnode/src/common"
	"github.com/mosaicnetworks/maelnode/src/config"
	"github.com/mosaicnetworks/maelnode/src/journal"
	"github.com/mosaicnetworks/maelnode/src/net"
	"github.com/mosaicnetworks/maelnode/src/protocol"
)

func newTestNode(t *testing.T, decodePolicy, initPolicy string) (*Node, *net.InmemTransport) {
	conf := config.NewTestConfig(t, common.TestLogLevel)
	conf.DecodePolicy = decodePolicy
	conf.InitPolicy = initPolicy

	trans := net.NewInmemTransport()

	node, err := NewNode(conf, trans, journal.NewInmemJournal(conf.CacheSize))
	if err != nil {
		t.Fatal(err)
	}

	return node, trans
}

func echo(id *protocol.MessageID, text string) *protocol.Envelope {
	return &protocol.Envelope{
		Src:  "c1",
		Dest: "n1",
		Body: protocol.Body{
			ID:      id,
			Payload: protocol.Echo{Echo: text},
		},
	}
}

func initMsg(id protocol.MessageID, nodeID string, nodeIDs ...protocol.NodeID) *protocol.Envelope {
	return &protocol.Envelope{
		Src:  "c0",
		Dest: protocol.NodeID(nodeID),
		Body: protocol.Body{
			ID: protocol.MsgID(id),
			Payload: protocol.Init{
				NodeID:  protocol.NodeID(nodeID),
				NodeIDs: nodeIDs,
			},
		},
	}
}

func TestEchoReply(t *testing.T) {
	node, _ := newTestNode(t, config.DecodeStrict, config.InitReinit)

	for _, id := range []protocol.MessageID{0, 1, 7, 1 << 40} {
		in := echo(protocol.MsgID(id), "hello world")

		out := node.Handle(in)
		if out == nil {
			t.Fatalf("echo %d: no reply", id)
		}

		p, ok := out.Body.Payload.(protocol.EchoOk)
		if !ok {
			t.Fatalf("echo %d: reply payload should be EchoOk, not %T", id, out.Body.Payload)
		}
		if p.Echo != "hello world" {
			t.Fatalf("echo %d: reply text should be 'hello world', not '%s'", id, p.Echo)
		}
		if out.Src != in.Dest || out.Dest != in.Src {
			t.Fatalf("echo %d: reply should go from %s to %s, not from %s to %s", id, in.Dest, in.Src, out.Src, out.Dest)
		}
		if out.Body.ReplyTo == nil || *out.Body.ReplyTo != id {
			t.Fatalf("echo %d: in_reply_to should be %d, not %v", id, id, out.Body.ReplyTo)
		}
	}
}

func TestEchoWithoutMsgID(t *testing.T) {
	node, _ := newTestNode(t, config.DecodeStrict, config.InitReinit)

	out := node.Handle(echo(nil, "x"))
	if out == nil {
		t.Fatal("no reply")
	}
	if out.Body.ReplyTo != nil {
		t.Fatalf("in_reply_to should be absent, not %d", *out.Body.ReplyTo)
	}
	if out.Body.ID == nil || *out.Body.ID != 1 {
		t.Fatalf("msg_id should be 1, not %v", out.Body.ID)
	}
}

func TestIDsStrictlyIncrease(t *testing.T) {
	node, _ := newTestNode(t, config.DecodeStrict, config.InitReinit)

	inputs := []*protocol.MessageID{
		protocol.MsgID(5),
		nil,
		protocol.MsgID(3),
		nil,
		protocol.MsgID(10),
		protocol.MsgID(0),
		protocol.MsgID(12),
	}
	expected := []protocol.MessageID{6, 7, 8, 9, 11, 12, 13}

	var last protocol.MessageID
	for i, id := range inputs {
		out := node.Handle(echo(id, "x"))
		if out == nil || out.Body.ID == nil {
			t.Fatalf("input %d: reply should carry a msg_id", i)
		}
		got := *out.Body.ID
		if got != expected[i] {
			t.Fatalf("input %d: msg_id should be %d, not %d", i, expected[i], got)
		}
		if i > 0 && got <= last {
			t.Fatalf("input %d: msg_id %d should be greater than %d", i, got, last)
		}
		if id != nil && got <= *id {
			t.Fatalf("input %d: msg_id %d should be greater than incoming %d", i, got, *id)
		}
		last = got
	}

	if node.NextID() != last {
		t.Fatalf("NextID should be %d, not %d", last, node.NextID())
	}
}

func TestIDsNeverWrap(t *testing.T) {
	node, _ := newTestNode(t, config.DecodeStrict, config.InitReinit)

	if out := node.Handle(echo(protocol.MsgID(math.MaxUint64), "x")); out != nil {
		t.Fatalf("no id is left above %d, reply should be nil, got msg_id %d", uint64(math.MaxUint64), *out.Body.ID)
	}
	if node.NextID() != 0 {
		t.Fatalf("a dropped message should not move the counter, NextID is %d", node.NextID())
	}

	out := node.Handle(echo(nil, "x"))
	if out == nil || *out.Body.ID != 1 {
		t.Fatalf("msg_id should be 1, got %#v", out)
	}

	out = node.Handle(echo(protocol.MsgID(math.MaxUint64-1), "x"))
	if out == nil || *out.Body.ID != math.MaxUint64 {
		t.Fatalf("msg_id should be %d, got %#v", uint64(math.MaxUint64), out)
	}

	for _, id := range []*protocol.MessageID{nil, protocol.MsgID(3)} {
		if out := node.Handle(echo(id, "x")); out != nil {
			t.Fatalf("counter is exhausted, reply should be nil, got msg_id %d", *out.Body.ID)
		}
	}
	if node.NextID() != math.MaxUint64 {
		t.Fatalf("NextID should stay at %d, not %d", uint64(math.MaxUint64), node.NextID())
	}
	if u := node.GetStats()["unhandled"]; u != "3" {
		t.Fatalf("dropped messages should count as unhandled, got %s", u)
	}
}

func TestUnknownTypeCountsID(t *testing.T) {
	node, _ := newTestNode(t, config.DecodeStrict, config.InitReinit)

	mystery := &protocol.Envelope{
		Src:  "c1",
		Dest: "n1",
		Body: protocol.Body{
			ID:      protocol.MsgID(4),
			Payload: protocol.Unknown{Kind: "mystery"},
		},
	}

	if out := node.Handle(mystery); out != nil {
		t.Fatalf("mystery message should have no reply, got %#v", out)
	}

	out := node.Handle(echo(nil, "x"))
	if *out.Body.ID != 6 {
		t.Fatalf("msg_id should be 6, not %d", *out.Body.ID)
	}

	stats := node.GetStats()
	if stats["unhandled"] != "1" || stats["handled"] != "1" {
		t.Fatalf("stats should count 1 handled and 1 unhandled, got %v", stats)
	}
}

func TestInitSetsIdentity(t *testing.T) {
	node, _ := newTestNode(t, config.DecodeStrict, config.InitReinit)

	if _, ok := node.ID(); ok {
		t.Fatal("node should have no id before init")
	}
	if node.GetState() != Uninitialized {
		t.Fatalf("state should be Uninitialized, not %v", node.GetState())
	}

	out := node.Handle(initMsg(1, "n3", "n1", "n2", "n3"))
	if out == nil {
		t.Fatal("init: no reply")
	}
	if _, ok := out.Body.Payload.(protocol.InitOk); !ok {
		t.Fatalf("init reply should be InitOk, not %T", out.Body.Payload)
	}
	if out.Src != "n3" || out.Dest != "c0" {
		t.Fatalf("init_ok should go from n3 to c0, not from %s to %s", out.Src, out.Dest)
	}

	id, ok := node.ID()
	if !ok || id != "n3" {
		t.Fatalf("id should be n3, not %s (%v)", id, ok)
	}
	if node.GetState() != Initialized {
		t.Fatalf("state should be Initialized, not %v", node.GetState())
	}
	if node.Peers().Len() != 3 {
		t.Fatalf("node should know 3 peers, not %d", node.Peers().Len())
	}

	// A handler registered for another type sees the identity.
	node.Register("whoami", func(req *Request) *protocol.Envelope {
		return req.ReplyFrom(req.Self, protocol.EchoOk{Echo: string(req.Self)})
	})

	out = node.Handle(&protocol.Envelope{
		Src:  "c1",
		Dest: "n3",
		Body: protocol.Body{
			ID:      protocol.MsgID(2),
			Payload: protocol.Unknown{Kind: "whoami"},
		},
	})
	if out == nil || out.Src != "n3" {
		t.Fatalf("reply source should be n3, got %#v", out)
	}
}

func TestRepeatedInit(t *testing.T) {
	cases := []struct {
		policy     string
		expectedID protocol.NodeID
		reply      string
	}{
		{config.InitReinit, "n2", protocol.TypeInitOk},
		{config.InitIgnore, "n1", protocol.TypeInitOk},
		{config.InitReject, "n1", protocol.TypeError},
	}

	for _, c := range cases {
		node, _ := newTestNode(t, config.DecodeStrict, c.policy)

		node.Handle(initMsg(1, "n1", "n1", "n2"))
		out := node.Handle(initMsg(2, "n2", "n1", "n2"))

		if out == nil {
			t.Fatalf("%s: second init should be answered", c.policy)
		}
		if out.Body.Type() != c.reply {
			t.Fatalf("%s: reply should be %s, not %s", c.policy, c.reply, out.Body.Type())
		}
		if out.Src != c.expectedID {
			t.Fatalf("%s: reply should come from %s, not %s", c.policy, c.expectedID, out.Src)
		}
		if id, _ := node.ID(); id != c.expectedID {
			t.Fatalf("%s: id should be %s, not %s", c.policy, c.expectedID, id)
		}

		if c.policy == config.InitReject {
			e := out.Body.Payload.(protocol.Error)
			if e.Code != protocol.CodePreconditionFailed {
				t.Fatalf("error code should be %d, not %d", protocol.CodePreconditionFailed, e.Code)
			}
		}
	}
}

func TestNewNodeBadPolicy(t *testing.T) {
	conf := config.NewTestConfig(t, common.TestLogLevel)
	conf.InitPolicy = "sometimes"

	if _, err := NewNode(conf, net.NewInmemTransport(), nil); err == nil {
		t.Fatal("NewNode should fail with an unknown init policy")
	}

	conf.InitPolicy = config.InitReinit
	conf.DecodePolicy = "lenient"

	if _, err := NewNode(conf, net.NewInmemTransport(), nil); err == nil {
		t.Fatal("NewNode should fail with an unknown decode policy")
	}
}

func runAsync(node *Node) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- node.Run(context.Background())
	}()
	return errCh
}

func waitRun(t *testing.T, errCh <-chan error) error {
	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for Run to return")
	}
	return nil
}

func readReply(t *testing.T, trans *net.InmemTransport) map[string]interface{} {
	select {
	case line := <-trans.Outbox():
		if len(line) == 0 || line[len(line)-1] != '\n' {
			t.Fatalf("output line should end with a newline: %q", line)
		}
		var msg map[string]interface{}
		if err := json.Unmarshal(line, &msg); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for reply")
	}
	return nil
}

func TestRunEndToEnd(t *testing.T) {
	node, trans := newTestNode(t, config.DecodeStrict, config.InitReinit)

	errCh := runAsync(node)

	trans.Deliver([]byte(`{"src":"c1","dest":"n1","body":{"type":"init","msg_id":1,"node_id":"n1","node_ids":["n1"]}}`))
	trans.Deliver([]byte(`{"src":"c1","dest":"n1","body":{"type":"echo","msg_id":2,"echo":"hi"}}`))
	trans.CloseInput()

	initOk := readReply(t, trans)
	body := initOk["body"].(map[string]interface{})
	if initOk["src"] != "n1" || initOk["dest"] != "c1" {
		t.Fatalf("init_ok should go from n1 to c1: %v", initOk)
	}
	if body["type"] != "init_ok" || body["in_reply_to"] != 1.0 || body["msg_id"] != 2.0 {
		t.Fatalf("unexpected init_ok body: %v", body)
	}

	echoOk := readReply(t, trans)
	body = echoOk["body"].(map[string]interface{})
	if body["type"] != "echo_ok" || body["echo"] != "hi" || body["in_reply_to"] != 2.0 || body["msg_id"] != 3.0 {
		t.Fatalf("unexpected echo_ok body: %v", body)
	}

	if err := waitRun(t, errCh); err != nil {
		t.Fatalf("Run should end cleanly at end of input: %v", err)
	}

	if node.GetState() != Shutdown {
		t.Fatalf("state should be Shutdown, not %v", node.GetState())
	}

	if l := node.Journal().Len(); l != 4 {
		t.Fatalf("journal should hold 4 entries, not %d", l)
	}
	entries, err := node.Journal().Entries(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	expected := []journal.Direction{journal.Inbound, journal.Outbound, journal.Inbound, journal.Outbound}
	for i, e := range entries {
		if e.Direction != expected[i] {
			t.Fatalf("journal entry %d should be %s, not %s", i, expected[i], e.Direction)
		}
	}
}

func TestRunStrictDecode(t *testing.T) {
	node, trans := newTestNode(t, config.DecodeStrict, config.InitReinit)

	errCh := runAsync(node)

	trans.Deliver([]byte(`{"src":"c1","dest":"n1","body":{"type":"echo"}}`))

	err := waitRun(t, errCh)
	if err == nil {
		t.Fatal("Run should fail on an undecodable line")
	}
	if !protocol.IsMalformed(err) {
		t.Fatalf("error should be Malformed: %v", err)
	}
}

func TestRunSkipMalformed(t *testing.T) {
	node, trans := newTestNode(t, config.DecodeSkip, config.InitReinit)

	errCh := runAsync(node)

	trans.Deliver([]byte(`not json`))
	trans.Deliver([]byte(`{"src":"c1","dest":"n1","body":{"type":"echo","msg_id":1,"echo":"after"}}`))
	trans.CloseInput()

	reply := readReply(t, trans)
	body := reply["body"].(map[string]interface{})
	if body["echo"] != "after" {
		t.Fatalf("echo should be 'after': %v", body)
	}

	if err := waitRun(t, errCh); err != nil {
		t.Fatalf("Run should skip malformed lines: %v", err)
	}

	if d := node.GetStats()["decode_errors"]; d != "1" {
		t.Fatalf("decode_errors should be 1, not %s", d)
	}
}

func TestRunUnknownTypeContinues(t *testing.T) {
	node, trans := newTestNode(t, config.DecodeStrict, config.InitReinit)

	errCh := runAsync(node)

	trans.Deliver([]byte(`{"src":"c1","dest":"n1","body":{"type":"mystery","msg_id":1}}`))
	trans.Deliver([]byte(`{"src":"c1","dest":"n1","body":{"type":"echo","msg_id":2,"echo":"still here"}}`))
	trans.CloseInput()

	reply := readReply(t, trans)
	body := reply["body"].(map[string]interface{})
	if body["type"] != "echo_ok" || body["in_reply_to"] != 2.0 {
		t.Fatalf("first output should answer the echo: %v", body)
	}

	if err := waitRun(t, errCh); err != nil {
		t.Fatal(err)
	}
}

func TestShutdownStopsRun(t *testing.T) {
	node, _ := newTestNode(t, config.DecodeStrict, config.InitReinit)

	errCh := runAsync(node)

	time.Sleep(10 * time.Millisecond)
	node.Shutdown()

	if err := waitRun(t, errCh); err != nil {
		t.Fatalf("Run should return nil after Shutdown: %v", err)
	}
}
