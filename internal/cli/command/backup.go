// Package command provides CLI command definitions for kvstash.
package command

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvstash-go/pkg/storage"
)

// BackupCommand returns the backup command.
func BackupCommand() *cli.Command {
	return &cli.Command{
		Name:      "backup",
		Usage:     "Snapshot the store into a compressed archive",
		ArgsUsage: "DEST_DIR",
		Description: "Copies every entry into a fresh zip archive under DEST_DIR.\n" +
			"Archive names embed a UTC timestamp and sort oldest first.",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "retain",
				Usage: "Keep only the newest N archives (0 keeps all)",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent copy workers (default: half the CPUs)",
			},
			&cli.StringFlag{
				Name:  "dest-key-file",
				Usage: "Encrypt the archive with this key (default: the store key)",
			},
		},
		Action: runBackup,
	}
}

func runBackup(c *cli.Context) error {
	destDir := c.Args().First()
	if destDir == "" {
		return fmt.Errorf("destination directory required")
	}

	src, cfg, err := openStore(c)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(destDir, 0750); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	name, err := backupName(time.Now())
	if err != nil {
		return err
	}
	destPath := filepath.Join(destDir, name)

	keyFile := cfg.Store.KeyFile
	if c.IsSet("dest-key-file") {
		keyFile = c.String("dest-key-file")
	}

	dst, err := openStoreAt(cfg, storage.EngineZip, destPath, keyFile)
	if err != nil {
		return err
	}

	var opts []storage.CopyOption
	if n := c.Int("workers"); n > 0 {
		opts = append(opts, storage.WithWorkers(n))
	}

	copied, err := storage.Copy(context.Background(), dst, src, opts...)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	fmt.Printf("Backed up %d entries to %s\n", copied, destPath)

	if n := c.Int("retain"); n > 0 {
		removed, err := pruneBackups(destDir, n)
		if err != nil {
			return fmt.Errorf("prune old archives: %w", err)
		}
		if removed > 0 {
			fmt.Printf("Pruned %d old archives.\n", removed)
		}
	}
	return nil
}

// backupName returns a unique archive name for a snapshot taken at ts.
// The UTC timestamp keeps names sortable by age; the ULID keeps them
// unique within one second.
func backupName(ts time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(ts), entropy)
	if err != nil {
		return "", fmt.Errorf("generate archive id: %w", err)
	}
	return fmt.Sprintf("kvstash-%s-%s.zip", ts.UTC().Format("20060102T150405Z"), id), nil
}

// pruneBackups removes all but the newest n archives in dir. Names
// embed a sortable timestamp, so lexical order is age order.
func pruneBackups(dir string, n int) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "kvstash-*.zip"))
	if err != nil {
		return 0, err
	}
	if len(matches) <= n {
		return 0, nil
	}
	sort.Strings(matches)

	removed := 0
	for _, path := range matches[:len(matches)-n] {
		if err := os.Remove(path); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
