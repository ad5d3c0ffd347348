package gateways

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ochairo/libbundle/internal/domain/entities"
)

// Packager packs a materialized bundle directory into a single archive
type Packager struct{}

// NewPackager creates a new packager
func NewPackager() *Packager {
	return &Packager{}
}

// PackageDirectory writes every entry of sourceDir into archivePath.
// Symlinks are stored as symlinks. The compression follows the file extension.
func (p *Packager) PackageDirectory(_ context.Context, sourceDir, archivePath string) (*entities.BundleArchive, error) {
	format, err := entities.ArchiveFormatFromPath(archivePath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat bundle directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("bundle path is not a directory: %s", sourceDir)
	}

	if err := os.MkdirAll(filepath.Dir(archivePath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	//nolint:gosec // G304: archivePath is operator configuration
	file, err := os.Create(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}

	entries, err := p.writeArchive(file, sourceDir, format)
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close archive file: %w", closeErr)
	}
	if err != nil {
		_ = os.Remove(archivePath)
		return nil, err
	}

	return &entities.BundleArchive{Path: archivePath, Format: format, Entries: entries}, nil
}

func (p *Packager) writeArchive(w io.Writer, sourceDir string, format entities.ArchiveFormat) (int, error) {
	compressor, err := newCompressor(w, format)
	if err != nil {
		return 0, err
	}

	tarWriter := tar.NewWriter(compressor)
	entries, err := p.addDirectory(tarWriter, sourceDir)

	// Close order matters: tar trailer first, then the compression frame
	if closeErr := tarWriter.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to finish tar stream: %w", closeErr)
	}
	if closeErr := compressor.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to finish %s stream: %w", format, closeErr)
	}
	return entries, err
}

// addDirectory walks sourceDir and adds files relative to it
func (p *Packager) addDirectory(tarWriter *tar.Writer, sourceDir string) (int, error) {
	entries := 0
	err := filepath.Walk(sourceDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path: %w", err)
		}
		// Skip the root directory itself
		if relPath == "." {
			return nil
		}

		var linkTarget string
		if info.Mode()&os.ModeSymlink != 0 {
			linkTarget, err = os.Readlink(path)
			if err != nil {
				return fmt.Errorf("failed to read symlink %s: %w", path, err)
			}
		}

		header, err := tar.FileInfoHeader(info, linkTarget)
		if err != nil {
			return fmt.Errorf("failed to create tar header: %w", err)
		}
		header.Name = filepath.ToSlash(relPath)

		if err := tarWriter.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write tar header: %w", err)
		}
		entries++

		if !info.Mode().IsRegular() {
			return nil
		}
		return copyIntoTar(tarWriter, path)
	})
	return entries, err
}

func copyIntoTar(tarWriter *tar.Writer, path string) error {
	//nolint:gosec // G304: File path from filepath.Walk for packaging
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer file.Close()

	if _, err := io.Copy(tarWriter, file); err != nil {
		return fmt.Errorf("failed to write file to tar: %w", err)
	}
	return nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func newCompressor(w io.Writer, format entities.ArchiveFormat) (io.WriteCloser, error) {
	switch format {
	case entities.ArchiveTar:
		return nopWriteCloser{w}, nil
	case entities.ArchiveTarGz:
		return gzip.NewWriterLevel(w, gzip.DefaultCompression)
	case entities.ArchiveTarZst:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	case entities.ArchiveTarLz4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported archive format: %s", format)
	}
}
