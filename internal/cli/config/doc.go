// Package config provides CLI configuration for kvstash.
//
// This package defines CLI-specific configuration:
//
//   - spec.go: CLIConfig struct (~/.kvstash/cli.yaml)
//   - loader.go: load and save via confloader
//
// Configuration covers the default store (engine, path, key file,
// flush behavior), output format, and logging. Precedence when
// loading: defaults < config file < KVSTASH_* environment < flags.
// Save marshals an explicit field map, so every persisted key is
// visible in one place.
package config
