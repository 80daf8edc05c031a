// Package hash provides content hashing for rendered output and drift
// detection.
//
// stencil uses BLAKE3 digests to compare rendered files with what is on disk
// and to fingerprint whole rendered trees. The package provides both a real
// implementation and a fake implementation for testing.
package hash

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Hasher provides an abstraction for content hashing operations.
type Hasher interface {
	// HashFile computes the hash of the file at the given path.
	HashFile(path string) (string, error)

	// HashBytes computes the hash of data.
	HashBytes(data []byte) string
}

// BLAKE3Hasher implements Hasher using 256-bit BLAKE3.
type BLAKE3Hasher struct{}

// NewBLAKE3Hasher creates a new BLAKE3Hasher.
func NewBLAKE3Hasher() *BLAKE3Hasher {
	return &BLAKE3Hasher{}
}

// HashFile computes the BLAKE3 hash of the file at the given path.
func (h *BLAKE3Hasher) HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// HashBytes computes the BLAKE3 hash of data.
func (h *BLAKE3Hasher) HashBytes(data []byte) string {
	return Bytes(data)
}

// Bytes is HashBytes without a Hasher.
func Bytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FakeHasher implements Hasher with deterministic hashes for testing.
type FakeHasher struct {
	hashes map[string]string
}

// NewFakeHasher creates a new FakeHasher.
func NewFakeHasher() *FakeHasher {
	return &FakeHasher{
		hashes: make(map[string]string),
	}
}

// SetHash sets the hash for a specific path (for testing).
func (h *FakeHasher) SetHash(path, hash string) {
	h.hashes[path] = hash
}

// HashFile returns the predetermined hash for the given path.
func (h *FakeHasher) HashFile(path string) (string, error) {
	if hash, ok := h.hashes[path]; ok {
		return hash, nil
	}
	// Default hash if not set
	return "fakehash", nil
}

// HashBytes returns the real digest so fake-backed callers still compare
// rendered content correctly.
func (h *FakeHasher) HashBytes(data []byte) string {
	return Bytes(data)
}
