// Package gateways provides adapter implementations for external services and tools.
package gateways

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/ochairo/libbundle/internal/domain/entities"
)

// sharedLibraryPattern matches versioned shared objects such as libfoo.so.6.1.2
const sharedLibraryPattern = "*.so.*"

// ArtifactScanner locates the executables and versioned shared libraries of a directory
type ArtifactScanner struct{}

// NewArtifactScanner creates a new artifact scanner
func NewArtifactScanner() *ArtifactScanner {
	return &ArtifactScanner{}
}

// Scan lists the top-level artifacts of sourceDir in name order.
// A file qualifies when its name matches *.so.* or when the current process
// may execute it. Directories never qualify. An empty result is not an error.
func (s *ArtifactScanner) Scan(_ context.Context, sourceDir string) ([]entities.Artifact, error) {
	info, err := os.Stat(sourceDir)
	if os.IsNotExist(err) {
		return nil, &entities.ConfigurationError{
			Msg: fmt.Sprintf("the source directory does not exist: %s", sourceDir),
			Err: entities.ErrNotFound,
		}
	}
	if err != nil {
		return nil, &entities.ConfigurationError{Msg: "failed to access source directory", Err: err}
	}
	if !info.IsDir() {
		return nil, &entities.ConfigurationError{Msg: fmt.Sprintf("the source path is not a directory: %s", sourceDir)}
	}

	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return nil, &entities.ConfigurationError{Msg: "failed to read source directory", Err: err}
	}

	artifacts := make([]entities.Artifact, 0)
	for _, entry := range entries {
		path := filepath.Join(sourceDir, entry.Name())

		// Stat follows symlinks so libfoo.so.1 -> libfoo.so.1.2 still counts
		fi, err := os.Stat(path)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}

		switch {
		case isVersionedLibrary(entry.Name()):
			artifacts = append(artifacts, entities.Artifact{Name: entry.Name(), Path: path, Kind: entities.KindSharedLibrary})
		case isExecutable(path):
			artifacts = append(artifacts, entities.Artifact{Name: entry.Name(), Path: path, Kind: entities.KindExecutable})
		}
	}

	return artifacts, nil
}

func isVersionedLibrary(name string) bool {
	// Hidden files are not matched, as with shell globbing
	if len(name) > 0 && name[0] == '.' {
		return false
	}
	matched, err := filepath.Match(sharedLibraryPattern, name)
	return err == nil && matched
}

// isExecutable asks the kernel whether this process may execute path
func isExecutable(path string) bool {
	return unix.Access(path, unix.X_OK) == nil
}
