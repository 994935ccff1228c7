// Package config defines the kvstash CLI configuration.
package config

import (
	"fmt"
	"time"
)

// CLIConfig is the configuration for the kvstash CLI.
type CLIConfig struct {
	// Store selects and tunes the default storage engine.
	Store StoreConfig `koanf:"store" json:"store"`

	// Output is the default output format: table or json.
	Output string `koanf:"output" json:"output"`

	// Log tunes CLI logging.
	Log LogConfig `koanf:"log" json:"log"`
}

// StoreConfig selects the storage engine and its location.
type StoreConfig struct {
	// Engine is zip, dir, or badger.
	Engine string `koanf:"engine" json:"engine"`

	// Path is the container file (zip) or root directory (dir, badger).
	Path string `koanf:"path" json:"path"`

	// KeyFile enables encryption at rest when set.
	KeyFile string `koanf:"key_file" json:"key_file"`

	// Flush applies to the dir engine.
	Flush FlushConfig `koanf:"flush" json:"flush"`
}

// FlushConfig tunes directory-store flushing.
type FlushConfig struct {
	// Mode is always, manual, or timed.
	Mode string `koanf:"mode" json:"mode"`

	// Interval applies in timed mode, e.g. "5s".
	Interval string `koanf:"interval" json:"interval"`
}

// LogConfig tunes CLI logging.
type LogConfig struct {
	Level  string `koanf:"level" json:"level"`
	Format string `koanf:"format" json:"format"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Store: StoreConfig{
			Engine: "dir",
			Path:   DefaultStorePath(),
			Flush: FlushConfig{
				Mode:     "always",
				Interval: "5s",
			},
		},
		Output: "table",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks enum and duration fields.
func (c *CLIConfig) Validate() error {
	switch c.Store.Engine {
	case "zip", "dir", "badger":
	default:
		return fmt.Errorf("config: unknown engine %q", c.Store.Engine)
	}

	switch c.Output {
	case "table", "json":
	default:
		return fmt.Errorf("config: unknown output format %q", c.Output)
	}

	switch c.Store.Flush.Mode {
	case "always", "manual", "timed":
	default:
		return fmt.Errorf("config: unknown flush mode %q", c.Store.Flush.Mode)
	}

	if c.Store.Flush.Interval != "" {
		if _, err := time.ParseDuration(c.Store.Flush.Interval); err != nil {
			return fmt.Errorf("config: flush interval: %w", err)
		}
	}

	return nil
}

// FlushInterval returns the parsed flush interval, or zero when unset
// or invalid. Validate catches invalid values first.
func (c *CLIConfig) FlushInterval() time.Duration {
	d, err := time.ParseDuration(c.Store.Flush.Interval)
	if err != nil {
		return 0
	}
	return d
}
