package entities

import (
	"fmt"
	"strings"
)

// ArchiveFormat is the container and compression of a bundle archive
type ArchiveFormat string

const (
	ArchiveTar    ArchiveFormat = "tar"
	ArchiveTarGz  ArchiveFormat = "tar.gz"
	ArchiveTarZst ArchiveFormat = "tar.zst"
	ArchiveTarLz4 ArchiveFormat = "tar.lz4"
)

// ArchiveFormatFromPath infers the archive format from a file name
func ArchiveFormatFromPath(path string) (ArchiveFormat, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return ArchiveTarGz, nil
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return ArchiveTarZst, nil
	case strings.HasSuffix(lower, ".tar.lz4"):
		return ArchiveTarLz4, nil
	case strings.HasSuffix(lower, ".tar"):
		return ArchiveTar, nil
	default:
		return "", &ConfigurationError{
			Msg: fmt.Sprintf("cannot infer archive format from %q (use .tar, .tar.gz, .tgz, .tar.zst or .tar.lz4)", path),
		}
	}
}

// BundleArchive describes a packed destination directory
type BundleArchive struct {
	Path    string
	Format  ArchiveFormat
	Entries int
}
