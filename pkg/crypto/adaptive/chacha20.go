// Package adaptive provides adaptive payload encryption for kvstash.
package adaptive

import (
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// ChaCha20 implements ChaCha20-Poly1305 authenticated encryption.
type ChaCha20 struct {
	baseCipher
}

// NewChaCha20 creates a new ChaCha20-Poly1305 cipher.
//
// Key must be exactly 32 bytes.
func NewChaCha20(key []byte) (*ChaCha20, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, errors.New("invalid key size for ChaCha20-Poly1305: must be 32 bytes")
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}

	return &ChaCha20{
		baseCipher: baseCipher{aead: aead},
	}, nil
}

// Type returns the cipher type.
func (c *ChaCha20) Type() CipherType {
	return CipherChaCha20
}
