// Package adaptive provides adaptive payload encryption for kvstash.
//
// This package implements a cipher abstraction that automatically
// selects the best available encryption algorithm based on hardware
// capabilities. Stores use it to encrypt entry payloads at rest,
// binding each ciphertext to its entry address via AEAD additional
// data so a payload copied under a different key fails authentication.
//
// Supported Algorithms:
//
//   - AES-GCM: Preferred when hardware AES support is available
//   - ChaCha20-Poly1305: Fallback for systems without AES-NI
//
// Usage:
//
//	key, err := adaptive.LoadKeyFile(path)
//	c, err := adaptive.New(key)
//	sealed, err := c.Encrypt(payload, []byte(addr))
//	payload, err := c.Decrypt(sealed, []byte(addr))
//
// All cipher operations are safe for concurrent use.
package adaptive
