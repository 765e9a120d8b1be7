// Package net implements the transports a maelnode reads messages from and
// writes replies to.
//
// A Transport moves whole lines. It knows nothing about the message format:
// framing is its only concern, decoding belongs to the protocol package. There
// are two implementations:
//
// - Stdio: newline delimited lines over any reader/writer pair, standard input
// and standard output in production.
//
// - Inmem: channel backed, used only for testing.
package net
