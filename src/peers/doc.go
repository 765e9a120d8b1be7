// Package peers keeps a node's view of cluster membership.
//
// The harness announces the members of the cluster once, in the node_ids
// field of the init handshake. The order of that list is meaningful to many
// algorithms (it is the same on every node), so a PeerSet preserves it and
// records each peer's position as its Index.
package peers
