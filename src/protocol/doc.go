// Package protocol implements the message format spoken between a maelnode
// and the test harness that drives it.
//
// Every message is an Envelope carrying a source, a destination and a Body.
// On the wire the Body is a single flat JSON object: the two correlation
// fields, msg_id and in_reply_to, sit next to a "type" discriminant and the
// fields of the payload that the discriminant selects.
//
//	{"src":"c1","dest":"n1","body":{"type":"echo","msg_id":2,"echo":"hi"}}
//
// Payload variants are kept in a Registry. The DefaultRegistry knows echo,
// echo_ok, init, init_ok and error. Bodies whose type is not registered are
// decoded into an Unknown payload which keeps the raw fields, so that new
// message types can flow through the codec without touching it.
//
// Messages are framed by newlines: Encode terminates its output with exactly
// one '\n', and the encoded JSON never contains a literal newline.
package protocol
