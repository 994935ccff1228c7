// Package command provides CLI command definitions for kvstash.
package command

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/kvstash-go/internal/cli/output"
	"github.com/yndnr/kvstash-go/internal/infra/shutdown"
	"github.com/yndnr/kvstash-go/pkg/storage"
)

// BenchCommand returns the bench command.
func BenchCommand() *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "Measure write and read throughput",
		Description: "Writes n random payloads, flushes, then reads them all back.\n" +
			"Without --store the benchmark runs on a throwaway directory\n" +
			"store; entries written to a real store remain there.",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "n",
				Value: 1000,
				Usage: "Number of entries",
			},
			&cli.IntFlag{
				Name:  "size",
				Value: 1024,
				Usage: "Payload size in bytes",
			},
			&cli.Float64Flag{
				Name:  "rate",
				Usage: "Operations per second (0 is unlimited)",
			},
		},
		Action: runBench,
	}
}

func runBench(c *cli.Context) error {
	n := c.Int("n")
	size := c.Int("size")
	if n <= 0 || size <= 0 {
		return fmt.Errorf("n and size must be positive")
	}

	var st storage.Store
	if c.IsSet("store") {
		opened, _, err := openStore(c)
		if err != nil {
			return err
		}
		st = opened
	} else {
		cfg, err := effectiveConfig(c)
		if err != nil {
			return err
		}
		scratch, err := os.MkdirTemp("", "kvstash-bench-*")
		if err != nil {
			return fmt.Errorf("create scratch store: %w", err)
		}
		defer os.RemoveAll(scratch)
		st, err = openStoreAt(cfg, storage.EngineDir, scratch, "")
		if err != nil {
			return err
		}
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// An interrupt cancels the run; the deferred Close still flushes.
	h := shutdown.NewHandler(5 * time.Second)
	h.OnShutdown(func(context.Context) error {
		cancel()
		return nil
	})
	go h.Wait()
	defer h.Trigger()

	var limiter *rate.Limiter
	if r := c.Float64("rate"); r > 0 {
		limiter = rate.NewLimiter(rate.Limit(r), 1)
	}

	// Random payloads keep compression from flattering the numbers.
	payload := make([]byte, size)
	if _, err := rand.Read(payload); err != nil {
		return fmt.Errorf("generate payload: %w", err)
	}

	keys := make([]uuid.UUID, n)
	for i := range keys {
		keys[i] = uuid.New()
	}

	bar := output.NewProgressBar(os.Stderr, "writing")
	bar.SetTotal(int64(n))
	start := time.Now()
	for _, id := range keys {
		if err := wait(ctx, limiter); err != nil {
			return err
		}
		if err := st.PutReader(ctx, id, bytes.NewReader(payload)); err != nil {
			return fmt.Errorf("write: %w", err)
		}
		bar.Increment(1)
	}
	if err := st.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	writeElapsed := time.Since(start)
	bar.Finish()

	bar = output.NewProgressBar(os.Stderr, "reading")
	bar.SetTotal(int64(n))
	start = time.Now()
	var readBytes int64
	for _, id := range keys {
		if err := wait(ctx, limiter); err != nil {
			return err
		}
		r, found, err := st.Open(ctx, id)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if !found {
			return fmt.Errorf("entry %s vanished during benchmark", id)
		}
		nr, err := io.Copy(io.Discard, r)
		r.Close()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		readBytes += nr
	}
	readElapsed := time.Since(start)
	bar.Finish()

	written := int64(n) * int64(size)
	fmt.Printf("Writes: %d entries in %s (%s, %.0f ops/s)\n",
		n, writeElapsed.Round(time.Millisecond), throughput(written, writeElapsed), opsPerSec(n, writeElapsed))
	fmt.Printf("Reads:  %d entries in %s (%s, %.0f ops/s)\n",
		n, readElapsed.Round(time.Millisecond), throughput(readBytes, readElapsed), opsPerSec(n, readElapsed))
	return nil
}

func wait(ctx context.Context, limiter *rate.Limiter) error {
	if limiter != nil {
		return limiter.Wait(ctx)
	}
	return ctx.Err()
}

// throughput formats a humanized bytes-per-second figure.
func throughput(bytes int64, elapsed time.Duration) string {
	if elapsed <= 0 {
		elapsed = time.Nanosecond
	}
	return humanize.IBytes(uint64(float64(bytes)/elapsed.Seconds())) + "/s"
}

func opsPerSec(n int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		elapsed = time.Nanosecond
	}
	return float64(n) / elapsed.Seconds()
}
