// Package config defines the configuration for a maelnode.
//
// Regardless of how a node is started, directly from Go code or as a
// standalone process launched by the harness, it uses the Config object
// defined in this package to store and forward configuration options. The
// command line tool reads an optional maelnode.toml (or .json, .yaml) from
// Config.DataDir on top of flags and MAELNODE_* environment variables.
//
// Standard output belongs to the protocol. The logger built by Config.Logger
// writes to standard error, and optionally mirrors every entry to a file.
package config
