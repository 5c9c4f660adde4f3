// Package hash provides hashing utilities.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// SHA256 computes the SHA256 hash of data and returns it as a hex string.
func SHA256(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SHA256Short returns the first n characters of a SHA256 hash.
func SHA256Short(data []byte, n int) string {
	h := SHA256(data)
	if n > len(h) {
		return h
	}
	return h[:n]
}

// Fingerprint hashes the JSON encoding of each item in order and returns
// the first 16 hex characters. Equal sequences yield equal fingerprints.
func Fingerprint[T any](items []T) (string, error) {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for i, item := range items {
		if err := enc.Encode(item); err != nil {
			return "", fmt.Errorf("fingerprint item %d: %w", i, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}
