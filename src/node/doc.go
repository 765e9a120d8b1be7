// Package node implements the reactive component of a maelnode.
//
// A Node owns the per-process protocol state: its identity, its view of the
// cluster, and the counter from which it numbers the messages it sends. Run
// pulls one line at a time from a Transport, decodes it, dispatches it and
// writes the reply, if any, before reading the next line. Nothing is processed
// concurrently, which gives outputs the same order as inputs.
//
// # Message ids
//
// Every processed message advances the counter. When the incoming message
// carries an id, the new value is max(incoming id, counter) + 1, otherwise
// counter + 1. A reply is stamped with the new value, so the ids a node emits
// are strictly increasing and never lower than any id it has seen.
//
// # Handshake
//
// The harness starts every node with an init message carrying the node's id
// and the ids of all members. The node adopts that identity and answers
// init_ok. What happens on a second init is governed by the init policy: the
// default, reinit, adopts the new identity like the first time; ignore keeps
// the first identity and still acknowledges; reject keeps it and answers with
// an error. Any of the three is logged as a warning.
//
// # Dispatch
//
// Handlers are looked up by body type. echo and init are built in; Register
// adds more. Message types without a handler produce no reply and are not an
// error, so that advisory or future message types do not bring a node down.
package node
