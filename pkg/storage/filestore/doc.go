// Package filestore implements the sharded directory storage engine:
// every entry is one file at <root>/<shard>/<leaf>, where the shard is
// the first two hex characters of the key and the leaf is the full
// 32-character hex key.
//
// The first write to a key opens the entry file once and keeps the
// descriptor in a concurrent registry; later writes reuse it, seeking
// to offset zero and truncating before each rewrite. Three flush modes
// trade durability against write latency: FlushAlways fsyncs after
// every write, FlushManual defers all fsyncs to Flush and Close, and
// FlushTimed runs them on a background ticker.
//
// In the deferred modes a completed write is immediately VISIBLE to
// reads, including reads from another store instance on the same root;
// only durability against a crash waits for the next fsync.
//
// Reads of keys without a held handle go straight to the filesystem,
// so a fresh store sees everything earlier instances wrote. Files in
// the tree whose names do not parse as entry addresses are ignored.
package filestore
