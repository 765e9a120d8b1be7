// Package journal records the lines a node reads and writes.
//
// A journal is a post-mortem aid: when the harness reports an anomaly, the
// exact sequence of inbound and outbound messages can be inspected, through
// the HTTP service or directly from the database. Two implementations exist:
// InmemJournal keeps a bounded window of recent entries, BadgerJournal keeps
// everything on disk and survives restarts.
package journal
