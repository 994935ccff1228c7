// Package command provides CLI command definitions for kvstash.
package command

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvstash-go/internal/cli/config"
	"github.com/yndnr/kvstash-go/internal/infra/buildinfo"
	"github.com/yndnr/kvstash-go/internal/telemetry/logger"
	"github.com/yndnr/kvstash-go/pkg/crypto/adaptive"
	"github.com/yndnr/kvstash-go/pkg/storage"
	"github.com/yndnr/kvstash-go/pkg/storage/badgerstore"
	"github.com/yndnr/kvstash-go/pkg/storage/filestore"
	"github.com/yndnr/kvstash-go/pkg/storage/zipstore"
)

// App creates the CLI application.
func App() *cli.App {
	app := &cli.App{
		Name:    "kvstash",
		Usage:   "Embedded key-value store management tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			PutCommand(),
			GetCommand(),
			ExistsCommand(),
			LsCommand(),
			StatCommand(),
			BackupCommand(),
			ImportCommand(),
			CopyCommand(),
			BenchCommand(),
			ConfigCommand(),
			KeygenCommand(),
		},
	}

	return app
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "store",
			Aliases: []string{"s"},
			Usage:   "Store URI (e.g. zip:db.zip, dir:/var/lib/kvstash, badger:/var/lib/kvstash)",
			EnvVars: []string{"KVSTASH_STORE"},
		},
		&cli.StringFlag{
			Name:    "config",
			Usage:   "Config file path (default ~/.kvstash/cli.yaml)",
			EnvVars: []string{"KVSTASH_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "key-file",
			Aliases: []string{"k"},
			Usage:   "Encryption key file (hex or base64)",
			EnvVars: []string{"KVSTASH_KEY_FILE"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json",
			EnvVars: []string{"KVSTASH_OUTPUT"},
		},
		&cli.StringFlag{
			Name:    "flush-mode",
			Usage:   "Directory store flush mode: always, manual, timed",
			EnvVars: []string{"KVSTASH_FLUSH_MODE"},
		},
		&cli.DurationFlag{
			Name:    "flush-interval",
			Usage:   "Flush interval for timed mode (e.g. 5s)",
			EnvVars: []string{"KVSTASH_FLUSH_INTERVAL"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level: debug, info, warn, error",
			EnvVars: []string{"KVSTASH_LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format: text, json",
			EnvVars: []string{"KVSTASH_LOG_FORMAT"},
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable debug logging",
		},
	}
}

// effectiveConfig resolves the configuration for one invocation:
// defaults, then the config file, then environment, then flags.
func effectiveConfig(c *cli.Context) (*config.CLIConfig, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("store") {
		engine, path, err := parseStoreURI(c.String("store"))
		if err != nil {
			return nil, err
		}
		cfg.Store.Engine = engine
		cfg.Store.Path = path
	}
	if c.IsSet("key-file") {
		cfg.Store.KeyFile = c.String("key-file")
	}
	if c.IsSet("output") {
		cfg.Output = c.String("output")
	}
	if c.IsSet("flush-mode") {
		cfg.Store.Flush.Mode = c.String("flush-mode")
	}
	if c.IsSet("flush-interval") {
		cfg.Store.Flush.Interval = c.Duration("flush-interval").String()
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = c.String("log-format")
	}
	if c.Bool("verbose") {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseStoreURI splits a store URI into engine and path. URIs take the
// form zip:PATH, dir:PATH, or badger:PATH. A bare path selects zip when
// it ends in .zip and dir otherwise.
func parseStoreURI(uri string) (engine, path string, err error) {
	switch {
	case strings.HasPrefix(uri, "zip:"):
		engine, path = storage.EngineZip, strings.TrimPrefix(uri, "zip:")
	case strings.HasPrefix(uri, "dir:"):
		engine, path = storage.EngineDir, strings.TrimPrefix(uri, "dir:")
	case strings.HasPrefix(uri, "badger:"):
		engine, path = storage.EngineBadger, strings.TrimPrefix(uri, "badger:")
	case uri == "":
		return "", "", fmt.Errorf("empty store URI")
	case strings.HasSuffix(uri, ".zip"):
		engine, path = storage.EngineZip, uri
	default:
		engine, path = storage.EngineDir, uri
	}
	if path == "" {
		return "", "", fmt.Errorf("store URI %q has no path", uri)
	}
	return engine, path, nil
}

// openStore opens the store selected by flags and configuration.
// Callers own the returned store and must Close it.
func openStore(c *cli.Context) (storage.Store, *config.CLIConfig, error) {
	cfg, err := effectiveConfig(c)
	if err != nil {
		return nil, nil, err
	}
	st, err := openEngine(cfg.Store, newLogger(cfg))
	if err != nil {
		return nil, nil, err
	}
	return st, cfg, nil
}

// openStoreAt opens a store at an explicit engine and path, keeping the
// flush settings from cfg. Used for copy and backup destinations.
func openStoreAt(cfg *config.CLIConfig, engine, path, keyFile string) (storage.Store, error) {
	sc := cfg.Store
	sc.Engine = engine
	sc.Path = path
	sc.KeyFile = keyFile
	return openEngine(sc, newLogger(cfg))
}

// openEngine opens a store from a resolved store configuration.
func openEngine(sc config.StoreConfig, log *slog.Logger) (storage.Store, error) {
	var cipher adaptive.Cipher
	if sc.KeyFile != "" {
		key, err := adaptive.LoadKeyFile(sc.KeyFile)
		if err != nil {
			return nil, err
		}
		cipher, err = adaptive.New(key)
		if err != nil {
			return nil, err
		}
	}

	switch sc.Engine {
	case storage.EngineZip:
		cfg := zipstore.DefaultConfig(sc.Path)
		cfg.Logger = log
		cfg.Cipher = cipher
		return zipstore.Open(cfg)
	case storage.EngineDir:
		cfg := filestore.DefaultConfig(sc.Path)
		cfg.Logger = log
		cfg.Cipher = cipher
		if sc.Flush.Mode != "" {
			mode, err := filestore.ParseFlushMode(sc.Flush.Mode)
			if err != nil {
				return nil, err
			}
			cfg.FlushMode = mode
		}
		if sc.Flush.Interval != "" {
			if d, err := time.ParseDuration(sc.Flush.Interval); err == nil && d > 0 {
				cfg.FlushInterval = d
			}
		}
		return filestore.Open(cfg)
	case storage.EngineBadger:
		cfg := badgerstore.DefaultConfig(sc.Path)
		cfg.Logger = log
		cfg.Cipher = cipher
		return badgerstore.Open(cfg)
	default:
		return nil, fmt.Errorf("unknown engine %q", sc.Engine)
	}
}

func newLogger(cfg *config.CLIConfig) *slog.Logger {
	return logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
}

// parseID parses a key argument. Both the canonical dashed form and the
// bare 32-hex leaf form are accepted.
func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid key %q: %w", s, err)
	}
	return id, nil
}
