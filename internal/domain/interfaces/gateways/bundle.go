// Package gateways defines the contracts of the adapters the domain depends on.
package gateways

import (
	"context"

	"github.com/ochairo/libbundle/internal/domain/entities"
)

// ArtifactScanner enumerates the input artifacts of a source directory
type ArtifactScanner interface {
	Scan(ctx context.Context, sourceDir string) ([]entities.Artifact, error)
}

// DependencyExtractor reports the resolved dependency paths of one file.
// An empty filter disables line filtering.
type DependencyExtractor interface {
	Extract(ctx context.Context, path, filter string) ([]string, error)
}

// PathResolver maps a path to the identity of the file it names, so that
// aliases such as a symlinked lib64 directory compare equal
type PathResolver interface {
	Canonical(path string) string
}

// Materializer copies a closure into a destination directory
type Materializer interface {
	// Prepare deletes destDir if it exists and recreates it empty
	Prepare(destDir string) error

	Materialize(ctx context.Context, destDir string, closure *entities.ClosureSet) (*entities.MaterializationReport, error)
}

// Digester computes file digests for the bundle manifest
type Digester interface {
	Digest(path string, algorithm entities.DigestAlgorithm) (string, error)
}

// ManifestStore persists bundle manifests
type ManifestStore interface {
	Save(path string, manifest *entities.BundleManifest) error
	Load(path string) (*entities.BundleManifest, error)
}

// ManifestSigner produces and checks detached manifest signatures
type ManifestSigner interface {
	SignManifest(manifestPath, keyPath string, passphrase []byte) (string, error)
	VerifyManifest(manifestPath, publicKeyPath string) error
}

// Packager packs a directory into a single archive file
type Packager interface {
	PackageDirectory(ctx context.Context, sourceDir, archivePath string) (*entities.BundleArchive, error)
}
