// Package storage provides the payload codec shared by all engines.
package storage

import (
	"encoding/json"
	"fmt"
)

// EncodeValue serializes value for storage. All engines share this
// seam, so every stored object payload is UTF-8 JSON text.
func EncodeValue(value any) ([]byte, error) {
	if value == nil {
		return nil, fmt.Errorf("storage: encode: %w", ErrNilValue)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("storage: encode value: %w", err)
	}
	return data, nil
}

// DecodeValue deserializes a stored payload into out. Decode failures
// wrap ErrMalformedEntry: the entry exists but its payload is not
// valid for the requested type.
func DecodeValue(data []byte, out any) error {
	if out == nil {
		return fmt.Errorf("storage: decode: %w", ErrNilValue)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("storage: %w: %v", ErrMalformedEntry, err)
	}
	return nil
}
