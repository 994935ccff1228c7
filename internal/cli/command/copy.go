// Package command provides CLI command definitions for kvstash.
package command

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvstash-go/pkg/storage"
)

// CopyCommand returns the copy command.
func CopyCommand() *cli.Command {
	return &cli.Command{
		Name:      "copy",
		Usage:     "Copy every entry to another store",
		ArgsUsage: "DEST_URI",
		Description: "The destination is a store URI such as zip:backup.zip,\n" +
			"dir:/var/lib/kvstash, or badger:/var/lib/kvstash. Entries are\n" +
			"decrypted with the source key and re-encrypted with the\n" +
			"destination key, so the two stores need not share key material.",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent copy workers (default: half the CPUs)",
			},
			&cli.StringFlag{
				Name:  "dest-key-file",
				Usage: "Destination key file (default: the source key)",
			},
		},
		Action: runCopy,
	}
}

func runCopy(c *cli.Context) error {
	destURI := c.Args().First()
	if destURI == "" {
		return fmt.Errorf("destination store URI required")
	}
	engine, path, err := parseStoreURI(destURI)
	if err != nil {
		return err
	}

	src, cfg, err := openStore(c)
	if err != nil {
		return err
	}
	defer src.Close()

	if engine == cfg.Store.Engine && path == cfg.Store.Path {
		return fmt.Errorf("destination is the source store")
	}

	keyFile := cfg.Store.KeyFile
	if c.IsSet("dest-key-file") {
		keyFile = c.String("dest-key-file")
	}

	dst, err := openStoreAt(cfg, engine, path, keyFile)
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
		return fmt.Errorf("copy failed: %w", err)
	}

	fmt.Printf("Copied %d entries to %s\n", copied, destURI)
	return nil
}
