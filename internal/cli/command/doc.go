// Package command provides CLI command definitions for kvstash.
//
// This package defines all CLI commands using urfave/cli/v2:
//
//   - root.go: Application, global flags, store resolution
//   - entry.go: put, get, exists
//   - list.go: ls, stat
//   - backup.go: backup with retention pruning
//   - import.go: directory import, optionally watched
//   - copy.go: store-to-store migration
//   - bench.go: synthetic write/read benchmark
//   - config.go: config show and init
//   - keygen.go: encryption key generation
//
// Commands resolve their store from the global flags, the KVSTASH_*
// environment, and the config file, in that order of precedence, then
// open the selected engine for the duration of one invocation.
package command
