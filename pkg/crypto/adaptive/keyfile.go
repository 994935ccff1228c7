// Package adaptive provides adaptive payload encryption for kvstash.
package adaptive

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// KeyFilePerm is the permission mode for key files written by WriteKeyFile.
const KeyFilePerm = 0600

// LoadKeyFile reads an encryption key from path.
//
// The file holds a single key encoded as hex or standard base64;
// surrounding whitespace is ignored. The decoded key must be 16, 24,
// or 32 bytes.
func LoadKeyFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("adaptive: read key file: %w", err)
	}
	key, err := ParseKey(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("adaptive: key file %s: %w", path, err)
	}
	return key, nil
}

// ParseKey decodes a hex- or base64-encoded key string. Hex is tried
// first.
func ParseKey(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("key is empty")
	}
	if key, err := hex.DecodeString(s); err == nil {
		return validateKeySize(key)
	}
	if key, err := base64.StdEncoding.DecodeString(s); err == nil {
		return validateKeySize(key)
	}
	return nil, fmt.Errorf("key is neither hex nor base64")
}

func validateKeySize(key []byte) ([]byte, error) {
	switch len(key) {
	case 16, 24, 32:
		return key, nil
	default:
		return nil, fmt.Errorf("invalid key size %d: must be 16, 24, or 32 bytes", len(key))
	}
}

// GenerateKey returns size random bytes suitable as a cipher key.
// Size must be 16, 24, or 32.
func GenerateKey(size int) ([]byte, error) {
	if _, err := validateKeySize(make([]byte, size)); err != nil {
		return nil, fmt.Errorf("adaptive: %w", err)
	}
	key := make([]byte, size)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("adaptive: generate key: %w", err)
	}
	return key, nil
}

// WriteKeyFile writes key to path hex-encoded with owner-only
// permissions.
func WriteKeyFile(path string, key []byte) error {
	if _, err := validateKeySize(key); err != nil {
		return fmt.Errorf("adaptive: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)+"\n"), KeyFilePerm); err != nil {
		return fmt.Errorf("adaptive: write key file: %w", err)
	}
	return nil
}
