// Package config defines the kvstash CLI configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/yaml"

	"github.com/yndnr/kvstash-go/internal/infra/confloader"
)

// envKeys maps KVSTASH_* variables onto config keys. Variables the
// flag layer owns (KVSTASH_STORE, KVSTASH_KEY_FILE, ...) are absent so
// the two layers never fight over one name, and key_file survives the
// underscore-to-dot mapping the generic transformer would apply.
var envKeys = map[string]string{
	"KVSTASH_STORE_ENGINE":         "store.engine",
	"KVSTASH_STORE_PATH":           "store.path",
	"KVSTASH_STORE_KEY_FILE":       "store.key_file",
	"KVSTASH_STORE_FLUSH_MODE":     "store.flush.mode",
	"KVSTASH_STORE_FLUSH_INTERVAL": "store.flush.interval",
	"KVSTASH_OUTPUT":               "output",
	"KVSTASH_LOG_LEVEL":            "log.level",
	"KVSTASH_LOG_FORMAT":           "log.format",
}

// DefaultConfigPath returns the default CLI config file path.
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".kvstash", "cli.yaml")
}

// DefaultStorePath returns the default store root directory.
func DefaultStorePath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".kvstash", "store")
}

// Load reads the config file and KVSTASH_* environment variables and
// merges them over the defaults. A missing file is not an error.
func Load(path string) (*CLIConfig, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	cfg := Default()

	opts := []confloader.Option{
		confloader.WithEnvTransformer(func(name string) string {
			return envKeys[name]
		}),
	}
	if _, err := os.Stat(path); err == nil {
		opts = append(opts, confloader.WithConfigFile(path))
	}

	l := confloader.NewLoader(opts...)
	if err := l.Load(cfg); err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML with 0600 permissions. The
// write goes through a temp file and rename so a crash never leaves a
// half-written config behind.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("config: create %s: %w", dir, err)
	}

	data, err := yaml.Parser().Marshal(cfg.asMap())
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cli-*.yaml")
	if err != nil {
		return fmt.Errorf("config: temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("config: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("config: close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("config: rename: %w", err)
	}
	return nil
}

// asMap lists every field explicitly so Save never depends on struct
// reflection.
func (c *CLIConfig) asMap() map[string]any {
	return map[string]any{
		"store": map[string]any{
			"engine":   c.Store.Engine,
			"path":     c.Store.Path,
			"key_file": c.Store.KeyFile,
			"flush": map[string]any{
				"mode":     c.Store.Flush.Mode,
				"interval": c.Store.Flush.Interval,
			},
		},
		"output": c.Output,
		"log": map[string]any{
			"level":  c.Log.Level,
			"format": c.Log.Format,
		},
	}
}
