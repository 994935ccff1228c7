// Package main provides the entry point for kvstash.
//
// The CLI tool provides command-line access to kvstash stores for:
//
//   - Entry access (put, get, exists, ls, stat)
//   - Bulk transfer (backup, import, copy)
//   - Benchmarking (bench)
//   - Configuration management (config show, config init)
//   - Key generation for encrypted stores (keygen)
//
// Usage:
//
//	kvstash [command] [flags]
//	kvstash --store dir:/var/lib/kvstash put --gen '{"name":"alpha"}'
//	kvstash --store zip:backup.zip ls --long --output json
//
// Stores are addressed by URI: "zip:PATH" opens a compressed archive
// store, "dir:PATH" a sharded directory store, and "badger:PATH" a
// Badger-backed store. A bare path selects the archive engine when it
// ends in .zip and the directory engine otherwise.
package main
