// Package storage defines the embedded key-value store contract for
// kvstash.
//
// Values are serializable objects or raw byte streams addressed by
// caller-supplied UUID keys. Engines implementing the Store interface
// are interchangeable:
//
//   - zipstore: a single compressed ZIP container file
//   - filestore: one file per entry in a sharded directory tree
//   - badgerstore: an embedded Badger LSM database
//
// Reads of absent keys never fail; they report found=false. A payload
// that exists but cannot be decoded fails with ErrMalformedEntry, and
// operations on a closed store fail with ErrClosed.
//
// Usage:
//
//	s, err := filestore.Open(filestore.DefaultConfig(dir))
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	if err := s.Put(ctx, id, &profile); err != nil {
//		return err
//	}
//	profile, found, err := storage.Load[Profile](ctx, s, id)
//
// All engines are safe for concurrent use by multiple goroutines
// within a single process. Nothing coordinates access across
// processes.
package storage
