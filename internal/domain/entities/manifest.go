package entities

import (
	"fmt"
	"os"
	"time"
)

// ManifestFormatVersion is the current bundle manifest schema version
const ManifestFormatVersion = 1

// DigestAlgorithm names the hash used for manifest file digests
type DigestAlgorithm string

const (
	// DigestSHA256 is hex-encoded SHA-256
	DigestSHA256 DigestAlgorithm = "sha256"
	// DigestBLAKE3 is hex-encoded 32-byte BLAKE3
	DigestBLAKE3 DigestAlgorithm = "blake3"
)

// ParseDigestAlgorithm validates a digest algorithm name
func ParseDigestAlgorithm(name string) (DigestAlgorithm, error) {
	switch DigestAlgorithm(name) {
	case DigestSHA256, DigestBLAKE3:
		return DigestAlgorithm(name), nil
	default:
		return "", &ConfigurationError{Msg: fmt.Sprintf("unknown digest algorithm %q (want sha256 or blake3)", name)}
	}
}

// BundleManifest records what a materialization run produced
type BundleManifest struct {
	FormatVersion int
	Tool          string
	CreatedAt     time.Time
	SourceDir     string
	Filter        string
	Digest        DigestAlgorithm
	Files         []ManifestFile
	Failures      []ManifestFailure
}

// ManifestFile describes one copied file and the canonical links that point at it
type ManifestFile struct {
	Name   string
	Source string
	Size   int64
	Mode   os.FileMode
	Digest string
	Links  []string
}

// ManifestFailure describes one closure member that could not be materialized
type ManifestFailure struct {
	Source string
	Op     MaterializationOp
	Error  string
}
