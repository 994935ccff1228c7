// Package zipstore implements the archive storage engine for kvstash.
package zipstore

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/klauspost/compress/flate"

	"github.com/yndnr/kvstash-go/pkg/crypto/adaptive"
	"github.com/yndnr/kvstash-go/pkg/storage"
)

// Default file permissions.
const (
	DefaultFilePerm = 0600
	DefaultDirPerm  = 0750
)

// DefaultCompressionLevel is the flate level applied to new payloads.
const DefaultCompressionLevel = flate.BestSpeed

// Config configures an archive store.
type Config struct {
	// Path is the container file. Created if absent; parent
	// directories are created as needed.
	Path string

	// Logger receives structured logs. Defaults to slog.Default().
	Logger *slog.Logger

	// Cipher, when set, encrypts payloads at rest with the entry
	// address bound as additional data.
	Cipher adaptive.Cipher

	// CompressionLevel is the flate level for newly written entries.
	// Zero selects DefaultCompressionLevel.
	CompressionLevel int
}

// DefaultConfig returns the default configuration for a container at
// path.
func DefaultConfig(path string) Config {
	return Config{
		Path:             path,
		CompressionLevel: DefaultCompressionLevel,
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.CompressionLevel == 0 {
		cfg.CompressionLevel = DefaultCompressionLevel
	}
}

// Store is the archive storage engine.
type Store struct {
	cfg    Config
	logger *slog.Logger
	cipher adaptive.Cipher

	counters storage.Counters

	mu        sync.Mutex
	rd        *zip.ReadCloser
	committed map[uuid.UUID]*zip.File
	pending   map[uuid.UUID][]byte
	dirty     bool
	closed    bool
}

// Open opens the container at cfg.Path, creating an empty one if the
// file does not exist. A path that cannot be created or parsed fails
// here, before any Store is returned.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("zipstore: path is required")
	}
	applyDefaults(&cfg)

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, DefaultDirPerm); err != nil {
			return nil, fmt.Errorf("zipstore: create dir: %w", err)
		}
	}

	if _, err := os.Stat(cfg.Path); os.IsNotExist(err) {
		if err := writeEmptyContainer(cfg.Path); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("zipstore: stat container: %w", err)
	}

	s := &Store{
		cfg:     cfg,
		logger:  cfg.Logger,
		cipher:  cfg.Cipher,
		pending: make(map[uuid.UUID][]byte),
	}

	if err := s.openReader(); err != nil {
		return nil, err
	}

	s.logger.Debug("container opened",
		"path", cfg.Path,
		"entries", len(s.committed))

	return s, nil
}

// writeEmptyContainer creates a valid zero-entry ZIP file. Creating it
// eagerly verifies the path is writable at construction time.
func writeEmptyContainer(p string) error {
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, DefaultFilePerm)
	if err != nil {
		return fmt.Errorf("zipstore: create container: %w", err)
	}
	zw := zip.NewWriter(f)
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("zipstore: initialize container: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("zipstore: close container: %w", err)
	}
	return nil
}

// openReader opens the committed container and rebuilds the entry
// index. Caller holds mu (or is constructing the store).
func (s *Store) openReader() error {
	rd, err := zip.OpenReader(s.cfg.Path)
	if err != nil {
		return fmt.Errorf("zipstore: open container: %w", err)
	}
	rd.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})

	committed := make(map[uuid.UUID]*zip.File, len(rd.File))
	for _, f := range rd.File {
		if f.FileInfo().IsDir() {
			continue
		}
		id, err := storage.ParseLeaf(path.Base(f.Name))
		if err != nil {
			// Not one of ours; rewrites preserve it, reads never
			// serve it.
			continue
		}
		committed[id] = f
	}

	s.rd = rd
	s.committed = committed
	return nil
}

// Put serializes value and stages it under id. The payload becomes
// durable on the next Flush or Close.
func (s *Store) Put(ctx context.Context, id uuid.UUID, value any) error {
	data, err := storage.EncodeValue(value)
	if err != nil {
		return err
	}
	return s.stage(id, data)
}

// PutReader stages the bytes read from r verbatim under id.
func (s *Store) PutReader(ctx context.Context, id uuid.UUID, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("zipstore: read payload: %w", err)
	}
	return s.stage(id, data)
}

func (s *Store) stage(id uuid.UUID, payload []byte) error {
	sealed := payload
	if s.cipher != nil {
		var err error
		sealed, err = s.cipher.Encrypt(payload, []byte(storage.EntryPath(id)))
		if err != nil {
			return fmt.Errorf("zipstore: encrypt: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("zipstore: put: %w", storage.ErrClosed)
	}

	s.pending[id] = sealed
	s.dirty = true
	s.counters.RecordWrite(len(payload))

	s.logger.Debug("entry staged",
		"key", storage.LeafName(id),
		"bytes", len(payload))
	return nil
}

// Get decodes the payload stored under id into out.
func (s *Store) Get(ctx context.Context, id uuid.UUID, out any) (bool, error) {
	data, found, err := s.payload(id, "get")
	if err != nil || !found {
		return false, err
	}
	if err := storage.DecodeValue(data, out); err != nil {
		return true, fmt.Errorf("zipstore: %s: %w", storage.LeafName(id), err)
	}
	return true, nil
}

// Open returns the raw stored bytes for id. The reader is fully
// buffered in memory and remains valid across Flush and Close.
func (s *Store) Open(ctx context.Context, id uuid.UUID) (io.ReadCloser, bool, error) {
	data, found, err := s.payload(id, "open")
	if err != nil || !found {
		return nil, false, err
	}
	return io.NopCloser(bytes.NewReader(data)), true, nil
}

// payload fetches and decrypts the current bytes for id, consulting
// staged writes before the committed container.
func (s *Store) payload(id uuid.UUID, op string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false, fmt.Errorf("zipstore: %s: %w", op, storage.ErrClosed)
	}

	sealed, ok := s.pending[id]
	if !ok {
		f, okc := s.committed[id]
		if !okc {
			return nil, false, nil
		}
		rc, err := f.Open()
		if err != nil {
			return nil, false, fmt.Errorf("zipstore: open entry %s: %w", f.Name, err)
		}
		sealed, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, false, fmt.Errorf("zipstore: read entry %s: %w", f.Name, err)
		}
	}

	data := sealed
	if s.cipher != nil {
		var err error
		data, err = s.cipher.Decrypt(sealed, []byte(storage.EntryPath(id)))
		if err != nil {
			return nil, false, fmt.Errorf("zipstore: %s: %w: %v",
				storage.LeafName(id), storage.ErrMalformedEntry, err)
		}
	}

	s.counters.RecordRead(len(data))
	return data, true, nil
}

// Exists reports whether id has a staged or committed entry.
func (s *Store) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, fmt.Errorf("zipstore: exists: %w", storage.ErrClosed)
	}

	if _, ok := s.pending[id]; ok {
		return true, nil
	}
	_, ok := s.committed[id]
	return ok, nil
}

// Keys returns all staged and committed keys.
func (s *Store) Keys(ctx context.Context) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("zipstore: keys: %w", storage.ErrClosed)
	}

	keys := make([]uuid.UUID, 0, len(s.committed)+len(s.pending))
	for id := range s.committed {
		keys = append(keys, id)
	}
	for id := range s.pending {
		if _, ok := s.committed[id]; !ok {
			keys = append(keys, id)
		}
	}
	return keys, nil
}

// Entries enumerates stored entries with sizes from the container
// directory. Staged writes report their staged size and a zero
// modification time until the next flush commits them.
func (s *Store) Entries(ctx context.Context) ([]storage.EntryInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("zipstore: entries: %w", storage.ErrClosed)
	}

	entries := make([]storage.EntryInfo, 0, len(s.committed)+len(s.pending))
	for id, f := range s.committed {
		if _, ok := s.pending[id]; ok {
			continue
		}
		entries = append(entries, storage.EntryInfo{
			ID:       id,
			Size:     int64(f.UncompressedSize64),
			Modified: f.Modified,
		})
	}
	for id, payload := range s.pending {
		entries = append(entries, storage.EntryInfo{
			ID:   id,
			Size: int64(len(payload)),
		})
	}
	return entries, nil
}

// Stats returns a snapshot of store statistics.
func (s *Store) Stats() storage.Stats {
	stats := s.counters.Snapshot()
	stats.Engine = storage.EngineZip
	stats.Path = s.cfg.Path

	s.mu.Lock()
	entries := len(s.committed)
	for id := range s.pending {
		if _, ok := s.committed[id]; !ok {
			entries++
		}
	}
	s.mu.Unlock()
	stats.Entries = uint64(entries)

	if info, err := os.Stat(s.cfg.Path); err == nil {
		stats.DiskSize = uint64(info.Size())
	}
	return stats
}

// Flush makes staged writes durable by rewriting the container and
// reopening it. The cost grows with the size of the whole container,
// not with the amount of staged data; unchanged entries are re-copied
// raw. A store with nothing staged returns immediately.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("zipstore: flush: %w", storage.ErrClosed)
	}
	if !s.dirty {
		return nil
	}
	return s.rewriteLocked()
}

// Close flushes staged writes and releases the container. Close is
// idempotent; other operations fail with ErrClosed afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var rewriteErr error
	if s.dirty {
		rewriteErr = s.rewriteLocked()
	}

	if s.rd != nil {
		if err := s.rd.Close(); err != nil && rewriteErr == nil {
			rewriteErr = fmt.Errorf("zipstore: close container: %w", err)
		}
		s.rd = nil
	}

	s.logger.Debug("container closed", "path", s.cfg.Path)
	return rewriteErr
}
