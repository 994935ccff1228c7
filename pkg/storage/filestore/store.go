// Package filestore implements the sharded directory storage engine
// for kvstash.
package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spaolacci/murmur3"
	"golang.org/x/sync/errgroup"

	"github.com/yndnr/kvstash-go/pkg/cmap"
	"github.com/yndnr/kvstash-go/pkg/crypto/adaptive"
	"github.com/yndnr/kvstash-go/pkg/interval"
	"github.com/yndnr/kvstash-go/pkg/storage"
)

// Default permissions and timed-mode period.
const (
	DefaultFilePerm = 0600
	DefaultDirPerm  = 0750

	DefaultFlushInterval = 5 * time.Second
)

// Config configures a sharded file store.
type Config struct {
	// Root is the directory holding the shard tree. Created if
	// absent.
	Root string

	// Logger receives structured logs. Defaults to slog.Default().
	Logger *slog.Logger

	// Cipher, when set, encrypts payloads at rest with the entry
	// address bound as additional data.
	Cipher adaptive.Cipher

	// FlushMode selects when writes are fsynced. In FlushManual and
	// FlushTimed modes a completed write is visible to reads
	// immediately; only durability waits for the next fsync.
	FlushMode FlushMode

	// FlushInterval is the period between background fsyncs in
	// FlushTimed mode. Zero selects DefaultFlushInterval.
	FlushInterval time.Duration

	// DirPerm and FilePerm apply to created shard directories and
	// entry files. Zero selects the defaults.
	DirPerm  os.FileMode
	FilePerm os.FileMode
}

// DefaultConfig returns the default configuration for a tree rooted at
// root: fsync on every write, 0750 directories, 0600 files.
func DefaultConfig(root string) Config {
	return Config{
		Root:          root,
		FlushMode:     FlushAlways,
		FlushInterval: DefaultFlushInterval,
		DirPerm:       DefaultDirPerm,
		FilePerm:      DefaultFilePerm,
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.DirPerm == 0 {
		cfg.DirPerm = DefaultDirPerm
	}
	if cfg.FilePerm == 0 {
		cfg.FilePerm = DefaultFilePerm
	}
}

// handle is a held-open descriptor for one entry file. The mutex
// serializes all I/O on the descriptor.
type handle struct {
	mu sync.Mutex
	f  *os.File
}

func hashKey(id uuid.UUID) uint64 {
	return murmur3.Sum64(id[:])
}

// Store is the sharded directory storage engine.
type Store struct {
	cfg    Config
	logger *slog.Logger
	cipher adaptive.Cipher

	counters storage.Counters

	handles *cmap.Map[uuid.UUID, *handle]
	runner  *interval.Runner
	closed  atomic.Bool

	// lastSkipped tracks the runner's skip counter between ticks.
	// Only touched by timedFlush, which the runner serializes.
	lastSkipped uint64
}

// Open opens a store rooted at cfg.Root, creating the directory if
// needed. A root that cannot be created or an invalid flush
// configuration fails here, before any Store is returned.
func Open(cfg Config) (*Store, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("filestore: root is required")
	}
	applyDefaults(&cfg)

	switch cfg.FlushMode {
	case FlushAlways, FlushManual, FlushTimed:
	default:
		return nil, fmt.Errorf("filestore: unknown flush mode %d", int(cfg.FlushMode))
	}

	if err := os.MkdirAll(cfg.Root, cfg.DirPerm); err != nil {
		return nil, fmt.Errorf("filestore: create root: %w", err)
	}

	s := &Store{
		cfg:     cfg,
		logger:  cfg.Logger,
		cipher:  cfg.Cipher,
		handles: cmap.New[uuid.UUID, *handle](hashKey),
	}

	if cfg.FlushMode == FlushTimed {
		r, err := interval.New(cfg.FlushInterval, s.timedFlush)
		if err != nil {
			return nil, fmt.Errorf("filestore: flush interval: %w", err)
		}
		s.runner = r
		r.Start()
	}

	s.logger.Debug("filestore opened",
		"root", cfg.Root,
		"mode", cfg.FlushMode.String())

	return s, nil
}

func (s *Store) timedFlush() {
	if err := s.syncAll(); err != nil {
		s.logger.Error("periodic flush failed", "error", err)
	}
	if n := s.runner.Skipped(); n > s.lastSkipped {
		s.logger.Warn("flush ticks skipped while a flush was running",
			"count", n-s.lastSkipped)
		s.lastSkipped = n
	}
}

func (s *Store) entryPath(id uuid.UUID) string {
	return filepath.Join(s.cfg.Root, storage.ShardName(id), storage.LeafName(id))
}

// acquire returns the held handle for id, opening and registering it
// on first write. The registry lock covers only the map mutation;
// losing the insert race closes the spare descriptor and returns the
// winner.
func (s *Store) acquire(id uuid.UUID) (*handle, error) {
	if h, ok := s.handles.Get(id); ok {
		return h, nil
	}

	dir := filepath.Join(s.cfg.Root, storage.ShardName(id))
	if err := os.MkdirAll(dir, s.cfg.DirPerm); err != nil {
		return nil, fmt.Errorf("filestore: create shard: %w", err)
	}

	f, err := os.OpenFile(
		filepath.Join(dir, storage.LeafName(id)),
		os.O_RDWR|os.O_CREATE, s.cfg.FilePerm)
	if err != nil {
		return nil, fmt.Errorf("filestore: open entry: %w", err)
	}

	h := &handle{f: f}
	if winner, loaded := s.handles.GetOrSet(id, h); loaded {
		f.Close()
		return winner, nil
	}
	return h, nil
}

// Put serializes value and writes it under id, replacing any previous
// payload.
func (s *Store) Put(ctx context.Context, id uuid.UUID, value any) error {
	data, err := storage.EncodeValue(value)
	if err != nil {
		return err
	}
	return s.write(id, data)
}

// PutReader writes the bytes read from r verbatim under id.
func (s *Store) PutReader(ctx context.Context, id uuid.UUID, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("filestore: read payload: %w", err)
	}
	return s.write(id, data)
}

// write seals one payload and rewrites the entry file from offset
// zero, truncating whatever was there before.
func (s *Store) write(id uuid.UUID, payload []byte) error {
	if s.closed.Load() {
		return fmt.Errorf("filestore: put: %w", storage.ErrClosed)
	}

	sealed := payload
	if s.cipher != nil {
		var err error
		sealed, err = s.cipher.Encrypt(payload, []byte(storage.EntryPath(id)))
		if err != nil {
			return fmt.Errorf("filestore: encrypt: %w", err)
		}
	}

	h, err := s.acquire(id)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := h.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("filestore: seek %s: %w", storage.LeafName(id), err)
	}
	if err := h.f.Truncate(0); err != nil {
		return fmt.Errorf("filestore: truncate %s: %w", storage.LeafName(id), err)
	}
	if _, err := h.f.Write(sealed); err != nil {
		return fmt.Errorf("filestore: write %s: %w", storage.LeafName(id), err)
	}
	if s.cfg.FlushMode == FlushAlways {
		if err := h.f.Sync(); err != nil {
			return fmt.Errorf("filestore: sync %s: %w", storage.LeafName(id), err)
		}
	}

	s.counters.RecordWrite(len(payload))

	s.logger.Debug("entry written",
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
		return true, fmt.Errorf("filestore: %s: %w", storage.LeafName(id), err)
	}
	return true, nil
}

// Open returns the raw stored bytes for id. The reader is fully
// buffered in memory and stays valid after the store is closed.
func (s *Store) Open(ctx context.Context, id uuid.UUID) (io.ReadCloser, bool, error) {
	data, found, err := s.payload(id, "open")
	if err != nil || !found {
		return nil, false, err
	}
	return io.NopCloser(bytes.NewReader(data)), true, nil
}

// payload reads and unseals the current bytes for id. Keys with a
// held handle read through it under the handle lock, so a concurrent
// rewrite is never observed half done. Everything else reads straight
// from the filesystem, which also covers entries written by earlier
// store instances on the same root.
func (s *Store) payload(id uuid.UUID, op string) ([]byte, bool, error) {
	if s.closed.Load() {
		return nil, false, fmt.Errorf("filestore: %s: %w", op, storage.ErrClosed)
	}

	var (
		sealed []byte
		err    error
	)
	if h, ok := s.handles.Get(id); ok {
		sealed, err = readHandle(h)
		if err != nil {
			return nil, false, fmt.Errorf("filestore: read entry %s: %w", storage.LeafName(id), err)
		}
	} else {
		sealed, err = os.ReadFile(s.entryPath(id))
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("filestore: read entry %s: %w", storage.LeafName(id), err)
		}
	}

	data := sealed
	if s.cipher != nil {
		data, err = s.cipher.Decrypt(sealed, []byte(storage.EntryPath(id)))
		if err != nil {
			return nil, false, fmt.Errorf("filestore: %s: %w: %v",
				storage.LeafName(id), storage.ErrMalformedEntry, err)
		}
	}

	s.counters.RecordRead(len(data))
	return data, true, nil
}

func readHandle(h *handle) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := h.f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(h.f)
}

// Exists reports whether an entry file for id is held or on disk.
func (s *Store) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	if s.closed.Load() {
		return false, fmt.Errorf("filestore: exists: %w", storage.ErrClosed)
	}

	if s.handles.Has(id) {
		return true, nil
	}

	if _, err := os.Stat(s.entryPath(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("filestore: stat entry: %w", err)
	}
	return true, nil
}

// Keys walks the shard tree and returns every key with an entry file.
// Files whose names do not parse as entry addresses are skipped.
func (s *Store) Keys(ctx context.Context) ([]uuid.UUID, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("filestore: keys: %w", storage.ErrClosed)
	}

	var keys []uuid.UUID
	err := filepath.WalkDir(s.cfg.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		id, perr := storage.ParseLeaf(d.Name())
		if perr != nil {
			// Not one of ours.
			return nil
		}
		keys = append(keys, id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("filestore: walk: %w", err)
	}
	return keys, nil
}

// Entries enumerates stored entries with file sizes and modification
// times from the shard tree.
func (s *Store) Entries(ctx context.Context) ([]storage.EntryInfo, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("filestore: entries: %w", storage.ErrClosed)
	}

	var entries []storage.EntryInfo
	err := filepath.WalkDir(s.cfg.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		id, perr := storage.ParseLeaf(d.Name())
		if perr != nil {
			// Not one of ours.
			return nil
		}
		info, ierr := d.Info()
		if ierr != nil {
			return ierr
		}
		entries = append(entries, storage.EntryInfo{
			ID:       id,
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("filestore: walk: %w", err)
	}
	return entries, nil
}

// Stats returns a snapshot of store statistics. Entry and size counts
// come from a tree walk and are best effort.
func (s *Store) Stats() storage.Stats {
	stats := s.counters.Snapshot()
	stats.Engine = storage.EngineDir
	stats.Path = s.cfg.Root

	_ = filepath.WalkDir(s.cfg.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if _, perr := storage.ParseLeaf(d.Name()); perr != nil {
			return nil
		}
		stats.Entries++
		if info, ierr := d.Info(); ierr == nil {
			stats.DiskSize += uint64(info.Size())
		}
		return nil
	})
	return stats
}

// Flush fsyncs every held handle. In FlushAlways mode writes are
// already durable and Flush has nothing new to sync, but it is still
// valid to call.
func (s *Store) Flush() error {
	if s.closed.Load() {
		return fmt.Errorf("filestore: flush: %w", storage.ErrClosed)
	}
	return s.syncAll()
}

// syncAll snapshots the registry and fsyncs the held handles in
// parallel. A store with no held handles returns immediately.
func (s *Store) syncAll() error {
	hs := s.handles.Values()
	if len(hs) == 0 {
		return nil
	}
	start := time.Now()

	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	for _, h := range hs {
		g.Go(func() error {
			h.mu.Lock()
			defer h.mu.Unlock()
			if err := h.f.Sync(); err != nil {
				return fmt.Errorf("filestore: sync %s: %w", filepath.Base(h.f.Name()), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.counters.RecordFlush(time.Since(start))
	s.logger.Debug("handles flushed", "count", len(hs))
	return nil
}

// Close stops the timed flusher, then syncs and releases every held
// handle. Close is idempotent; other operations fail with ErrClosed
// afterwards.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	if s.runner != nil {
		s.runner.Stop()
	}

	var firstErr error
	for _, it := range s.handles.Items() {
		h, ok := s.handles.Pop(it.Key)
		if !ok {
			continue
		}
		h.mu.Lock()
		if err := h.f.Sync(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("filestore: sync %s: %w", storage.LeafName(it.Key), err)
		}
		if err := h.f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("filestore: close %s: %w", storage.LeafName(it.Key), err)
		}
		h.mu.Unlock()
	}

	s.logger.Debug("filestore closed", "root", s.cfg.Root)
	return firstErr
}
