package gateways

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/zeebo/blake3"

	"github.com/ochairo/libbundle/internal/domain/entities"
)

// fileDigester computes file digests for bundle manifests
type fileDigester struct{}

// NewDigester creates a new file digester
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewDigester() *fileDigester {
	return &fileDigester{}
}

// Digest returns the hex digest of the file at path, following symlinks
func (d *fileDigester) Digest(path string, algorithm entities.DigestAlgorithm) (string, error) {
	h, err := newHash(algorithm)
	if err != nil {
		return "", err
	}

	//nolint:gosec // G304: path is a bundled file
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify checks that the file at path has the expected digest
func (d *fileDigester) Verify(path string, algorithm entities.DigestAlgorithm, expected string) error {
	actual, err := d.Digest(path, algorithm)
	if err != nil {
		return err
	}
	if actual != expected {
		return fmt.Errorf("%s mismatch: expected %s, got %s", algorithm, expected, actual)
	}
	return nil
}

func newHash(algorithm entities.DigestAlgorithm) (hash.Hash, error) {
	switch algorithm {
	case entities.DigestSHA256:
		return sha256.New(), nil
	case entities.DigestBLAKE3:
		return blake3.New(), nil
	default:
		return nil, fmt.Errorf("unsupported digest algorithm: %q", algorithm)
	}
}
