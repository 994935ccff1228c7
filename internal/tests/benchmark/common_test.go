package benchmark

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"testing"

	"github.com/google/uuid"

	"github.com/yndnr/kvstash-go/pkg/storage"
)

// EntryCounts defines the store sizes for benchmarking.
var EntryCounts = []int{1000, 10000, 50000, 100000}

// SmallEntryCounts for quick benchmarks.
var SmallEntryCounts = []int{100, 1000, 5000}

// PayloadSizes covers the value sizes exercised by payload benchmarks.
var PayloadSizes = []int{64, 256, 1024, 4096, 16384}

// quietLogger returns a logger that drops everything, keeping engine
// output out of benchmark runs.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// randomPayload returns size random bytes. Random data keeps
// compression from flattering throughput numbers.
func randomPayload(b *testing.B, size int) []byte {
	payload := make([]byte, size)
	if _, err := rand.Read(payload); err != nil {
		b.Fatalf("Failed to generate payload: %v", err)
	}
	return payload
}

// prefill writes count entries of size bytes each and returns their
// keys.
func prefill(b *testing.B, ctx context.Context, store storage.Store, count, size int) []uuid.UUID {
	payload := randomPayload(b, size)
	keys := make([]uuid.UUID, count)
	for i := range keys {
		keys[i] = uuid.New()
		if err := store.PutReader(ctx, keys[i], bytes.NewReader(payload)); err != nil {
			b.Fatalf("PutReader failed: %v", err)
		}
	}
	if err := store.Flush(); err != nil {
		b.Fatalf("Flush failed: %v", err)
	}
	return keys
}

// readEntry streams one entry to io.Discard.
func readEntry(b *testing.B, ctx context.Context, store storage.Store, id uuid.UUID) {
	r, ok, err := store.Open(ctx, id)
	if err != nil {
		b.Fatalf("Open failed: %v", err)
	}
	if !ok {
		b.Fatalf("entry %s missing", id)
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		b.Fatalf("read failed: %v", err)
	}
	if err := r.Close(); err != nil {
		b.Fatalf("close failed: %v", err)
	}
}

// reportMemory reports memory usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}

func sizeLabel(size int) string {
	switch {
	case size >= 1024*1024:
		return fmt.Sprintf("%dMB", size/(1024*1024))
	case size >= 1024:
		return fmt.Sprintf("%dKB", size/1024)
	default:
		return fmt.Sprintf("%dB", size)
	}
}
