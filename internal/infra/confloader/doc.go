// Package confloader provides configuration loading for kvstash.
//
// This package implements a flexible configuration loader that supports
// multiple sources using koanf as the underlying library.
//
// Sources, from lowest to highest priority:
//
//  1. Configuration file (YAML, ~/.kvstash/cli.yaml by default)
//  2. Environment variables (KVSTASH_ prefix)
//  3. Command-line flags (loaded separately via LoadMap)
//
// Environment variable names map to dotted keys by stripping the
// prefix, lowercasing, and replacing underscores with dots:
// KVSTASH_STORE_ENGINE becomes store.engine.
package confloader
