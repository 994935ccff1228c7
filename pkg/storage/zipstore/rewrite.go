// Package zipstore implements the archive storage engine for kvstash.
package zipstore

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/flate"

	"github.com/yndnr/kvstash-go/pkg/storage"
)

// rewriteLocked replaces the container with a fresh one holding the
// committed entries merged with staged writes, then reopens it. A
// staged write shadows the committed entry with the same key, which
// is how overwrites drop the old payload. Caller holds mu.
func (s *Store) rewriteLocked() error {
	start := time.Now()

	dir := filepath.Dir(s.cfg.Path)
	tmp, err := os.CreateTemp(dir, "container-*.tmp")
	if err != nil {
		return fmt.Errorf("zipstore: create temp container: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after successful rename

	if err := s.writeMerged(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("zipstore: sync temp container: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("zipstore: close temp container: %w", err)
	}

	// Swap under the committed reader: close, rename, reopen.
	if err := s.rd.Close(); err != nil {
		return fmt.Errorf("zipstore: close container: %w", err)
	}
	s.rd = nil

	if err := os.Rename(tmpPath, s.cfg.Path); err != nil {
		// The old container is still in place; reopen it so the
		// store stays usable.
		if reopenErr := s.openReader(); reopenErr != nil {
			s.closed = true
		}
		return fmt.Errorf("zipstore: replace container: %w", err)
	}

	if err := s.openReader(); err != nil {
		// Nothing left to serve reads from; fail fast from here on.
		s.closed = true
		return err
	}

	staged := len(s.pending)
	s.pending = make(map[uuid.UUID][]byte)
	s.dirty = false
	elapsed := time.Since(start)
	s.counters.RecordFlush(elapsed)

	s.logger.Info("container rewritten",
		"path", s.cfg.Path,
		"entries", len(s.committed),
		"staged", staged,
		"elapsed", elapsed)
	return nil
}

// writeMerged writes the merged container image to w.
func (s *Store) writeMerged(w io.Writer) error {
	zw := zip.NewWriter(w)
	level := s.cfg.CompressionLevel
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})

	// Committed entries survive unless a staged write shadows them.
	// Raw copy preserves their compressed bytes. Foreign entries ride
	// along untouched.
	for _, f := range s.rd.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if id, err := storage.ParseLeaf(path.Base(f.Name)); err == nil {
			if s.committed[id] != f {
				continue // stale duplicate
			}
			if _, shadowed := s.pending[id]; shadowed {
				continue
			}
		}
		if err := zw.Copy(f); err != nil {
			return fmt.Errorf("zipstore: copy entry %s: %w", f.Name, err)
		}
	}

	// Staged payloads, deflated fresh, in key order for a
	// deterministic layout.
	ids := make([]uuid.UUID, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})

	now := time.Now()
	for _, id := range ids {
		hdr := &zip.FileHeader{
			Name:     storage.EntryPath(id),
			Method:   zip.Deflate,
			Modified: now,
		}
		ew, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("zipstore: create entry %s: %w", hdr.Name, err)
		}
		if _, err := ew.Write(s.pending[id]); err != nil {
			return fmt.Errorf("zipstore: write entry %s: %w", hdr.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("zipstore: finalize container: %w", err)
	}
	return nil
}
