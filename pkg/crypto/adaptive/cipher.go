// Package adaptive provides adaptive payload encryption for kvstash.
package adaptive

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
	"runtime"
)

// CipherType identifies the cipher algorithm.
type CipherType string

const (
	CipherAESGCM   CipherType = "aes-gcm"
	CipherChaCha20 CipherType = "chacha20-poly1305"
)

// Cipher provides authenticated encryption.
type Cipher interface {
	// Type returns the cipher type.
	Type() CipherType

	// Encrypt encrypts plaintext, binding additionalData into the
	// authentication tag. The nonce is generated per call and
	// prepended to the returned ciphertext.
	Encrypt(plaintext, additionalData []byte) ([]byte, error)

	// Decrypt decrypts a ciphertext produced by Encrypt. It fails if
	// additionalData does not match the value used at encryption time.
	Decrypt(ciphertext, additionalData []byte) ([]byte, error)

	// NonceSize returns the nonce size in bytes.
	NonceSize() int

	// Overhead returns the authentication tag size in bytes.
	Overhead() int
}

// New creates a new adaptive cipher with the given key.
//
// It automatically selects the optimal algorithm based on hardware.
func New(key []byte) (Cipher, error) {
	if hasAESNI() {
		return NewAESGCM(key)
	}
	return NewChaCha20(key)
}

// NewWithType creates a cipher of the specified type.
func NewWithType(key []byte, cipherType CipherType) (Cipher, error) {
	switch cipherType {
	case CipherAESGCM:
		return NewAESGCM(key)
	case CipherChaCha20:
		return NewChaCha20(key)
	default:
		return nil, errors.New("unknown cipher type: " + string(cipherType))
	}
}

// hasAESNI checks if AES hardware acceleration is available.
// Go's crypto/aes uses AES-NI on amd64 and the ARM crypto extensions
// on arm64; elsewhere ChaCha20 is the better choice.
func hasAESNI() bool {
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return true
	default:
		return false
	}
}

// baseCipher implements the nonce-prepended AEAD framing shared by all
// algorithms.
type baseCipher struct {
	aead cipher.AEAD
}

// NonceSize returns the nonce size in bytes.
func (c *baseCipher) NonceSize() int {
	return c.aead.NonceSize()
}

// Overhead returns the authentication tag size in bytes.
func (c *baseCipher) Overhead() int {
	return c.aead.Overhead()
}

// Encrypt performs authenticated encryption with a fresh random nonce
// prepended to the result.
func (c *baseCipher) Encrypt(plaintext, additionalData []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return c.aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

// Decrypt performs authenticated decryption of a nonce-prepended
// ciphertext.
func (c *baseCipher) Decrypt(ciphertext, additionalData []byte) ([]byte, error) {
	if len(ciphertext) < c.aead.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:c.aead.NonceSize()]
	ciphertext = ciphertext[c.aead.NonceSize():]

	return c.aead.Open(nil, nonce, ciphertext, additionalData)
}
