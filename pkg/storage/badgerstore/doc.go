// Package badgerstore implements the Badger storage engine: entries
// live in an embedded LSM database instead of the filesystem layouts
// the zipstore and filestore engines use.
//
// Keys are the raw 16 UUID bytes. Writes commit through Badger
// transactions and are visible immediately; Flush maps to the value
// log sync. A background runner drives Badger's value log garbage
// collection until it reports nothing left to rewrite.
//
// The engine trades the inspectable on-disk formats of the other two
// engines for write throughput on large entry counts. An in-memory
// mode exists for tests and scratch work; it keeps nothing on disk
// and cannot run value log GC.
package badgerstore
