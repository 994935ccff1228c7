// Package storage defines the embedded key-value store contract for
// kvstash.
package storage

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// Engine names reported by Stats and used in store URIs.
const (
	EngineZip    = "zip"
	EngineDir    = "dir"
	EngineBadger = "badger"
)

// Store is the common contract implemented by all storage engines.
//
// Implementation requirements:
//   - Thread-safe: concurrent operations from multiple goroutines must
//     be safe within one process.
//   - Durable after Flush: flushed entries survive process restarts.
//   - Absent keys are not errors: Get, Open and Exists report
//     found=false with a nil error.
//   - Fail fast when unusable: operations on a closed store return
//     ErrClosed.
type Store interface {
	// Put serializes value as JSON and stores it under id, replacing
	// any previous payload in full.
	Put(ctx context.Context, id uuid.UUID, value any) error

	// PutReader stores the bytes read from r verbatim under id,
	// replacing any previous payload in full. No serialization is
	// applied.
	PutReader(ctx context.Context, id uuid.UUID, r io.Reader) error

	// Get decodes the payload stored under id into out. It returns
	// found=false and a nil error when id has no entry; out is left
	// untouched in that case. A payload that cannot be decoded
	// returns ErrMalformedEntry.
	Get(ctx context.Context, id uuid.UUID, out any) (bool, error)

	// Open returns the raw stored bytes as a stream. It returns
	// found=false and a nil error when id has no entry. The caller
	// closes the returned reader.
	Open(ctx context.Context, id uuid.UUID) (io.ReadCloser, bool, error)

	// Exists reports whether an entry is stored under id.
	Exists(ctx context.Context, id uuid.UUID) (bool, error)

	// Keys returns all stored keys in unspecified order.
	Keys(ctx context.Context) ([]uuid.UUID, error)

	// Flush forces buffered state to durable storage. Engines
	// document their flush cost.
	Flush() error

	// Stats returns a snapshot of engine statistics.
	Stats() Stats

	// Close flushes and releases all resources. Close is idempotent;
	// every other operation fails with ErrClosed afterwards.
	Close() error
}

// EntryInfo describes one stored entry.
type EntryInfo struct {
	ID uuid.UUID `json:"id"`

	// Size is the stored payload size in bytes. For encrypted stores
	// this is the ciphertext size.
	Size int64 `json:"size"`

	// Modified is the last write time where the engine tracks it;
	// zero otherwise.
	Modified time.Time `json:"modified"`
}

// Lister is implemented by engines that can enumerate entries with
// per-entry metadata without reading payloads.
type Lister interface {
	Entries(ctx context.Context) ([]EntryInfo, error)
}

// Load reads the entry under id into a value of type T.
//
// It returns the zero value of T with found=false when no entry
// exists; absence is never an error.
func Load[T any](ctx context.Context, s Store, id uuid.UUID) (T, bool, error) {
	var v T
	found, err := s.Get(ctx, id, &v)
	if err != nil || !found {
		var zero T
		return zero, found, err
	}
	return v, true, nil
}
