// Package storage provides entry addressing shared by all engines.
package storage

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// ShardWidth is the number of leading hex characters that form the
// shard name.
const ShardWidth = 2

// LeafName returns the entry file name for id: the 32-character
// lowercase hex form of the UUID, no dashes.
func LeafName(id uuid.UUID) string {
	return hex.EncodeToString(id[:])
}

// ShardName returns the shard directory name for id: the first
// ShardWidth characters of its leaf name.
func ShardName(id uuid.UUID) string {
	return LeafName(id)[:ShardWidth]
}

// EntryPath returns the relative address "shard/leaf" for id.
//
// The same address names ZIP entries inside an archive container and
// file paths under a sharded root, so engines can exchange payloads.
// The mapping is pure and total: every UUID has exactly one address.
func EntryPath(id uuid.UUID) string {
	leaf := LeafName(id)
	return leaf[:ShardWidth] + "/" + leaf
}

// ParseLeaf parses a leaf name back into its UUID. It accepts only
// the 32-character lowercase dashless hex form produced by LeafName.
func ParseLeaf(name string) (uuid.UUID, error) {
	if len(name) != 32 {
		return uuid.Nil, fmt.Errorf("storage: leaf name %q: want 32 hex characters", name)
	}
	id, err := uuid.Parse(name)
	if err != nil {
		return uuid.Nil, fmt.Errorf("storage: leaf name %q: %w", name, err)
	}
	if LeafName(id) != name {
		return uuid.Nil, fmt.Errorf("storage: leaf name %q: not canonical lowercase hex", name)
	}
	return id, nil
}
