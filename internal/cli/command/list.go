// Package command provides CLI command definitions for kvstash.
package command

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvstash-go/internal/cli/output"
	"github.com/yndnr/kvstash-go/pkg/storage"
)

// LsCommand returns the ls command.
func LsCommand() *cli.Command {
	return &cli.Command{
		Name:  "ls",
		Usage: "List stored keys",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "long",
				Aliases: []string{"l"},
				Usage:   "Show per-entry size and modification time",
			},
		},
		Action: runLs,
	}
}

// entryRow is one row of ls --long output.
type entryRow struct {
	Key      string    `json:"key" table:"KEY"`
	Size     int64     `json:"size" table:"SIZE"`
	Modified time.Time `json:"modified" table:"MODIFIED"`
}

func runLs(c *cli.Context) error {
	st, cfg, err := openStore(c)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	format, err := output.ParseFormat(cfg.Output)
	if err != nil {
		return err
	}

	if c.Bool("long") {
		lister, ok := st.(storage.Lister)
		if !ok {
			return fmt.Errorf("engine %q does not support long listings", cfg.Store.Engine)
		}
		entries, err := lister.Entries(ctx)
		if err != nil {
			return err
		}
		rows := make([]entryRow, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, entryRow{
				Key:      e.ID.String(),
				Size:     e.Size,
				Modified: e.Modified,
			})
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })

		formatter := output.NewFormatter(format, true)
		return formatter.Format(os.Stdout, rows)
	}

	keys, err := st.Keys(ctx)
	if err != nil {
		return err
	}
	ids := make([]string, len(keys))
	for i, id := range keys {
		ids[i] = id.String()
	}
	sort.Strings(ids)

	if format == output.FormatJSON {
		formatter := &output.JSONFormatter{}
		return formatter.Format(os.Stdout, ids)
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

// StatCommand returns the stat command.
func StatCommand() *cli.Command {
	return &cli.Command{
		Name:   "stat",
		Usage:  "Show store statistics",
		Action: runStat,
	}
}

// statView shapes statistics for table output. Counters cover the
// current process only, so they hide behind --wide.
type statView struct {
	Engine    string `json:"engine" table:"ENGINE"`
	Path      string `json:"path" table:"PATH"`
	Entries   uint64 `json:"entries" table:"ENTRIES"`
	DiskSize  string `json:"disk_size" table:"DISK_SIZE"`
	Writes    uint64 `json:"writes" table:"WRITES,wide"`
	Reads     uint64 `json:"reads" table:"READS,wide"`
	Flushes   uint64 `json:"flushes" table:"FLUSHES,wide"`
	FlushTime string `json:"flush_time" table:"FLUSH_TIME,wide"`
}

func runStat(c *cli.Context) error {
	st, cfg, err := openStore(c)
	if err != nil {
		return err
	}
	defer st.Close()

	stats := st.Stats()

	format, err := output.ParseFormat(cfg.Output)
	if err != nil {
		return err
	}
	if format == output.FormatJSON {
		formatter := &output.JSONFormatter{}
		return formatter.Format(os.Stdout, stats)
	}

	view := statView{
		Engine:    stats.Engine,
		Path:      stats.Path,
		Entries:   stats.Entries,
		DiskSize:  humanize.IBytes(stats.DiskSize),
		Writes:    stats.Writes,
		Reads:     stats.Reads,
		Flushes:   stats.Flushes,
		FlushTime: stats.FlushTime.Round(time.Millisecond).String(),
	}
	formatter := output.NewFormatter(output.FormatTable, c.Bool("wide"))
	return formatter.Format(os.Stdout, view)
}
