// Package zipstore implements the archive storage engine: every entry
// lives in a single compressed ZIP-compatible container file.
//
// Writes stage in memory and become durable on Flush, which rewrites
// the container to a temp file and atomically renames it over the old
// one. Unchanged entries are re-copied raw, without recompression; new
// payloads are deflated with github.com/klauspost/compress. Overwrites
// replace the committed entry entirely at rewrite time.
//
// The container is a regular ZIP file, so stored payloads can be
// inspected with any archive tool. Entry names follow the same
// "shard/leaf" addressing the filestore engine uses on disk.
//
// All operations on one store serialize on an internal mutex; the
// engine favors compactness over concurrency. Readers returned by
// Open are fully buffered and stay valid across Flush and Close.
package zipstore
