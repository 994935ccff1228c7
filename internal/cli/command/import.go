// Package command provides CLI command definitions for kvstash.
package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvstash-go/internal/cli/output"
	"github.com/yndnr/kvstash-go/internal/infra/fswatch"
	"github.com/yndnr/kvstash-go/internal/infra/shutdown"
	"github.com/yndnr/kvstash-go/pkg/storage"
)

// ImportCommand returns the import command.
func ImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import JSON documents from a directory",
		ArgsUsage: "SRC_DIR",
		Description: "Imports every *.json file whose name (without the extension)\n" +
			"parses as a key. Files that are not importable are logged and\n" +
			"skipped. With --watch the command keeps running and imports files\n" +
			"as they appear, until interrupted.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Keep watching the directory for new files",
			},
		},
		Action: runImport,
	}
}

func runImport(c *cli.Context) error {
	srcDir := c.Args().First()
	if srcDir == "" {
		return fmt.Errorf("source directory required")
	}

	st, cfg, err := openStore(c)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	imported, err := importDir(context.Background(), st, srcDir, log)
	if err != nil {
		st.Close()
		return err
	}
	fmt.Printf("Imported %d entries from %s\n", imported, srcDir)

	if !c.Bool("watch") {
		return st.Close()
	}

	watcher, err := fswatch.New(fswatch.WithLogger(log))
	if err != nil {
		st.Close()
		return err
	}
	if err := watcher.Add(srcDir); err != nil {
		watcher.Stop()
		st.Close()
		return err
	}

	watcher.OnChange(func(path string) {
		if !strings.HasSuffix(path, ".json") {
			return
		}
		if err := importFile(context.Background(), st, path, log); err != nil {
			log.Warn("skipping file", "file", path, "error", err)
			return
		}
		fmt.Printf("Imported %s\n", filepath.Base(path))
	})
	watcher.StartAsync()

	fmt.Printf("Watching %s for new entries. Interrupt to stop.\n", srcDir)

	// Hooks run in reverse order: the watcher stops before the store
	// closes, so no import races a closed store.
	h := shutdown.NewHandler(10 * time.Second)
	h.OnShutdown(func(context.Context) error { return st.Close() })
	h.OnShutdown(func(context.Context) error {
		return watcher.Stop()
	})
	return h.Wait()
}

// importDir sweeps dir once, importing every *.json file in name order.
// Returns the number of entries imported; bad files are skipped.
func importDir(ctx context.Context, st storage.Store, dir string, log *slog.Logger) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.Strings(matches)

	var bar *output.ProgressBar
	if len(matches) > 1 {
		bar = output.NewProgressBar(os.Stderr, "importing")
		bar.SetTotal(int64(len(matches)))
	}

	imported := 0
	for _, path := range matches {
		if err := ctx.Err(); err != nil {
			return imported, err
		}
		if err := importFile(ctx, st, path, log); err != nil {
			log.Warn("skipping file", "file", path, "error", err)
		} else {
			imported++
		}
		if bar != nil {
			bar.Increment(1)
		}
	}
	if bar != nil {
		bar.Finish()
	}

	if err := st.Flush(); err != nil {
		return imported, fmt.Errorf("flush after import: %w", err)
	}
	return imported, nil
}

// importFile stores one JSON document under the key in its file name.
func importFile(ctx context.Context, st storage.Store, path string, log *slog.Logger) error {
	base := filepath.Base(path)
	id, err := uuid.Parse(strings.TrimSuffix(base, ".json"))
	if err != nil {
		return fmt.Errorf("file name is not a key: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if !json.Valid(data) {
		return fmt.Errorf("not valid JSON")
	}

	if err := st.PutReader(ctx, id, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	log.Debug("imported entry", "key", id, "bytes", len(data))
	return nil
}
