// Package badgerstore implements the Badger storage engine for
// kvstash.
package badgerstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"

	"github.com/yndnr/kvstash-go/pkg/crypto/adaptive"
	"github.com/yndnr/kvstash-go/pkg/interval"
	"github.com/yndnr/kvstash-go/pkg/storage"
)

// GC loop defaults.
const (
	DefaultGCInterval  = 10 * time.Minute
	DefaultGCThreshold = 0.5
)

// Config configures a Badger store.
type Config struct {
	// Dir is the database directory. Created by Badger if absent.
	// Ignored in memory mode.
	Dir string

	// Logger receives structured logs, including Badger's own
	// output. Defaults to slog.Default().
	Logger *slog.Logger

	// Cipher, when set, encrypts payloads at rest with the entry
	// address bound as additional data.
	Cipher adaptive.Cipher

	// SyncWrites makes Badger fsync every commit. Off by default;
	// Flush syncs the value log on demand.
	SyncWrites bool

	// GCInterval is the period between value log GC passes. Zero
	// selects DefaultGCInterval.
	GCInterval time.Duration

	// GCThreshold is the rewrite ratio passed to Badger's value log
	// GC. Zero selects DefaultGCThreshold.
	GCThreshold float64

	// InMemory keeps the whole database in memory. Nothing survives
	// Close and value log GC never runs.
	InMemory bool
}

// DefaultConfig returns the default configuration for a database at
// dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:         dir,
		GCInterval:  DefaultGCInterval,
		GCThreshold: DefaultGCThreshold,
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.GCInterval == 0 {
		cfg.GCInterval = DefaultGCInterval
	}
	if cfg.GCThreshold == 0 {
		cfg.GCThreshold = DefaultGCThreshold
	}
}

// Store is the Badger storage engine.
type Store struct {
	cfg    Config
	logger *slog.Logger
	cipher adaptive.Cipher

	counters storage.Counters

	db     *badger.DB
	gc     *interval.Runner
	closed atomic.Bool
}

// Open opens the database at cfg.Dir, creating it if needed, and
// starts the value log GC runner. A directory Badger cannot open
// fails here, before any Store is returned.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, fmt.Errorf("badgerstore: dir is required")
	}
	applyDefaults(&cfg)

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts.Logger = &badgerLogger{logger: cfg.Logger}
	opts.SyncWrites = cfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open db: %w", err)
	}

	s := &Store{
		cfg:    cfg,
		logger: cfg.Logger,
		cipher: cfg.Cipher,
		db:     db,
	}

	// Value log GC cannot run in memory mode.
	if !cfg.InMemory {
		r, err := interval.New(cfg.GCInterval, s.runGC)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("badgerstore: gc interval: %w", err)
		}
		s.gc = r
		r.Start()
	}

	s.logger.Debug("badger opened",
		"dir", cfg.Dir,
		"in_memory", cfg.InMemory,
		"gc_interval", cfg.GCInterval)

	return s, nil
}

// runGC drives value log GC until Badger reports nothing left to
// rewrite.
func (s *Store) runGC() {
	passes := 0
	for {
		err := s.db.RunValueLogGC(s.cfg.GCThreshold)
		if err != nil {
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Error("value log gc failed", "error", err)
			}
			break
		}
		passes++
	}
	if passes > 0 {
		s.logger.Debug("value log gc completed", "passes", passes)
	}
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
		return fmt.Errorf("badgerstore: read payload: %w", err)
	}
	return s.write(id, data)
}

func (s *Store) write(id uuid.UUID, payload []byte) error {
	if s.closed.Load() {
		return fmt.Errorf("badgerstore: put: %w", storage.ErrClosed)
	}

	sealed := payload
	if s.cipher != nil {
		var err error
		sealed, err = s.cipher.Encrypt(payload, []byte(storage.EntryPath(id)))
		if err != nil {
			return fmt.Errorf("badgerstore: encrypt: %w", err)
		}
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(id[:], sealed)
	})
	if err != nil {
		return fmt.Errorf("badgerstore: write %s: %w", storage.LeafName(id), err)
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
		return true, fmt.Errorf("badgerstore: %s: %w", storage.LeafName(id), err)
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

// payload reads and unseals the current bytes for id.
func (s *Store) payload(id uuid.UUID, op string) ([]byte, bool, error) {
	if s.closed.Load() {
		return nil, false, fmt.Errorf("badgerstore: %s: %w", op, storage.ErrClosed)
	}

	var sealed []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(id[:])
		if err != nil {
			return err
		}
		sealed, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("badgerstore: read entry %s: %w", storage.LeafName(id), err)
	}

	data := sealed
	if s.cipher != nil {
		data, err = s.cipher.Decrypt(sealed, []byte(storage.EntryPath(id)))
		if err != nil {
			return nil, false, fmt.Errorf("badgerstore: %s: %w: %v",
				storage.LeafName(id), storage.ErrMalformedEntry, err)
		}
	}

	s.counters.RecordRead(len(data))
	return data, true, nil
}

// Exists reports whether an entry is stored under id.
func (s *Store) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	if s.closed.Load() {
		return false, fmt.Errorf("badgerstore: exists: %w", storage.ErrClosed)
	}

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(id[:])
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("badgerstore: exists: %w", err)
	}
	return true, nil
}

// Keys returns every stored key. Keys that are not 16 bytes long are
// skipped.
func (s *Store) Keys(ctx context.Context) ([]uuid.UUID, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("badgerstore: keys: %w", storage.ErrClosed)
	}

	var keys []uuid.UUID
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			id, err := uuid.FromBytes(it.Item().KeyCopy(nil))
			if err != nil {
				// Not one of ours.
				continue
			}
			keys = append(keys, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: keys: %w", err)
	}
	return keys, nil
}

// Entries enumerates stored entries with approximate value sizes from
// the key index. Badger does not track per-entry write times, so
// Modified is always zero.
func (s *Store) Entries(ctx context.Context) ([]storage.EntryInfo, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("badgerstore: entries: %w", storage.ErrClosed)
	}

	var entries []storage.EntryInfo
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			id, err := uuid.FromBytes(item.KeyCopy(nil))
			if err != nil {
				// Not one of ours.
				continue
			}
			entries = append(entries, storage.EntryInfo{
				ID:   id,
				Size: item.ValueSize(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: entries: %w", err)
	}
	return entries, nil
}

// Stats returns a snapshot of store statistics. The entry count comes
// from a key-only iteration; disk size is the LSM tree plus the value
// log.
func (s *Store) Stats() storage.Stats {
	stats := s.counters.Snapshot()
	stats.Engine = storage.EngineBadger
	stats.Path = s.cfg.Dir

	if s.closed.Load() {
		return stats
	}

	lsm, vlog := s.db.Size()
	stats.DiskSize = uint64(lsm + vlog)

	_ = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			stats.Entries++
		}
		return nil
	})
	return stats
}

// Flush syncs the value log to disk. A no-op in memory mode.
func (s *Store) Flush() error {
	if s.closed.Load() {
		return fmt.Errorf("badgerstore: flush: %w", storage.ErrClosed)
	}
	start := time.Now()
	if err := s.db.Sync(); err != nil {
		return fmt.Errorf("badgerstore: sync: %w", err)
	}
	s.counters.RecordFlush(time.Since(start))
	return nil
}

// Close stops the GC runner and closes the database. Close is
// idempotent; other operations fail with ErrClosed afterwards.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	if s.gc != nil {
		s.gc.Stop()
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("badgerstore: close db: %w", err)
	}

	s.logger.Debug("badger closed", "dir", s.cfg.Dir)
	return nil
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
