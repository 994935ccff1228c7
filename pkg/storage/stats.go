// Package storage defines the embedded key-value store contract for
// kvstash.
package storage

import (
	"sync/atomic"
	"time"
)

// Stats is a point-in-time snapshot of engine statistics.
type Stats struct {
	// Engine is the engine name (EngineZip, EngineDir, EngineBadger).
	Engine string `json:"engine"`

	// Path is the container file or root directory.
	Path string `json:"path"`

	// Entries is the number of stored entries. Engines that cannot
	// count cheaply report 0.
	Entries uint64 `json:"entries"`

	// DiskSize is the on-disk size in bytes where the engine can
	// report it cheaply, 0 otherwise.
	DiskSize uint64 `json:"disk_size"`

	// Operation counters since the store was opened.
	Writes       uint64 `json:"writes"`
	Reads        uint64 `json:"reads"`
	Flushes      uint64 `json:"flushes"`
	BytesWritten uint64 `json:"bytes_written"`
	BytesRead    uint64 `json:"bytes_read"`

	// FlushTime is the cumulative wall time spent in completed
	// flushes.
	FlushTime time.Duration `json:"flush_time"`
}

// Counters accumulates operation counts on the hot path. Engines embed
// a Counters and fill the identity fields of the snapshot themselves.
type Counters struct {
	writes       atomic.Uint64
	reads        atomic.Uint64
	flushes      atomic.Uint64
	bytesWritten atomic.Uint64
	bytesRead    atomic.Uint64
	flushTime    atomic.Int64
}

// RecordWrite counts one write of n payload bytes.
func (c *Counters) RecordWrite(n int) {
	c.writes.Add(1)
	c.bytesWritten.Add(uint64(n))
}

// RecordRead counts one read of n payload bytes.
func (c *Counters) RecordRead(n int) {
	c.reads.Add(1)
	c.bytesRead.Add(uint64(n))
}

// RecordFlush counts one completed flush that took d.
func (c *Counters) RecordFlush(d time.Duration) {
	c.flushes.Add(1)
	c.flushTime.Add(int64(d))
}

// Snapshot returns the current counter values.
func (c *Counters) Snapshot() Stats {
	return Stats{
		Writes:       c.writes.Load(),
		Reads:        c.reads.Load(),
		Flushes:      c.flushes.Load(),
		BytesWritten: c.bytesWritten.Load(),
		BytesRead:    c.bytesRead.Load(),
		FlushTime:    time.Duration(c.flushTime.Load()),
	}
}
