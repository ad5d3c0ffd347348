// Package entities defines core domain models and data structures.
package entities

// ArtifactKind classifies a scanned input file
type ArtifactKind string

const (
	// KindExecutable is a regular file the current process may execute
	KindExecutable ArtifactKind = "executable"
	// KindSharedLibrary is a file named like a versioned shared object (libfoo.so.1)
	KindSharedLibrary ArtifactKind = "versioned-shared-library"
)

// Artifact represents an input file whose loader dependencies are analyzed
type Artifact struct {
	Name string
	Path string
	Kind ArtifactKind
}
