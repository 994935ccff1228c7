// Package cmap provides a concurrent map implementation for kvstash.
//
// This package implements a sharded concurrent map used for tracking
// open file handles and other per-key state:
//
//   - Sharding: Configurable power-of-two shard count for parallelism
//   - Fine-grained Locking: Per-shard RWMutex for minimal contention
//   - Injected Hashing: The caller supplies the hash function, so key
//     types hash without reflection or string formatting
//   - Iteration: Safe iteration while holding read locks
//
// Usage:
//
//	m := cmap.New[uuid.UUID, *os.File](func(id uuid.UUID) uint64 {
//		return murmur3.Sum64(id[:])
//	})
//	m.Set(id, f)
//	f, ok := m.Get(id)
//
// Thread Safety:
//
// All operations are thread-safe. Read operations (Get, Has) use RLock,
// write operations (Set, Delete, Pop) use Lock. Locks are scoped to the
// map mutation itself; callers perform I/O on retrieved values outside
// any map lock.
package cmap
