package gateways

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ochairo/libbundle/internal/domain/entities"
	"github.com/ochairo/libbundle/internal/domain/interfaces"
)

// copyModeBits are the permission bits carried over from the source file
const copyModeBits = os.ModePerm | os.ModeSetuid | os.ModeSetgid | os.ModeSticky

// FileMaterializer copies closure members into a flat destination directory
// and adds canonical unversioned symlinks next to versioned libraries
type FileMaterializer struct {
	logger interfaces.Logger
}

// NewFileMaterializer creates a new materializer
func NewFileMaterializer(logger interfaces.Logger) *FileMaterializer {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &FileMaterializer{logger: logger}
}

// CanonicalLinkName returns the unversioned name a loader looks up for a
// library file: everything before the first '.', plus ".so".
// libfoo.so.6.1.2 becomes libfoo.so.
func CanonicalLinkName(basename string) string {
	if i := strings.IndexByte(basename, '.'); i >= 0 {
		basename = basename[:i]
	}
	return basename + ".so"
}

// Prepare deletes destDir if it exists and recreates it empty
func (m *FileMaterializer) Prepare(destDir string) error {
	if err := os.RemoveAll(destDir); err != nil {
		return fmt.Errorf("failed to remove destination directory: %w", err)
	}
	if err := os.MkdirAll(destDir, 0750); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	return nil
}

// Materialize copies every closure member to destDir/<basename> and then
// creates the canonical links. Failures are recorded per entry and never stop
// the remaining entries. All copies happen before any link, so a copied file
// always owns its name.
func (m *FileMaterializer) Materialize(_ context.Context, destDir string, closure *entities.ClosureSet) (*entities.MaterializationReport, error) {
	info, err := os.Stat(destDir)
	if err != nil {
		return nil, fmt.Errorf("failed to access destination directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("destination is not a directory: %s", destDir)
	}

	report := &entities.MaterializationReport{DestDir: destDir}
	owners := make(map[string]string) // basename -> source path

	for _, src := range closure.Paths() {
		name := filepath.Base(src)
		entry := entities.MaterializedEntry{
			SourcePath: src,
			DestPath:   filepath.Join(destDir, name),
			LinkStatus: entities.LinkNone,
		}
		if link := CanonicalLinkName(name); link != name {
			entry.LinkName = link
		}

		if prev, taken := owners[name]; taken {
			entry.Err = &entities.MaterializationError{
				Path: src,
				Op:   entities.OpCopy,
				Err:  fmt.Errorf("%w: %s already copied from %s", entities.ErrDuplicateBasename, name, prev),
			}
		} else if err := copyFile(src, entry.DestPath); err != nil {
			entry.Err = &entities.MaterializationError{Path: src, Op: entities.OpCopy, Err: err}
		} else {
			owners[name] = src
		}

		if entry.Err != nil {
			m.logger.Warn("copy failed", interfaces.F("path", src), interfaces.F("error", entry.Err.Err))
			if entry.LinkName != "" {
				entry.LinkStatus = entities.LinkSkipped
			}
		}
		report.Entries = append(report.Entries, entry)
	}

	links := make(map[string]string) // link name -> target basename
	for i := range report.Entries {
		entry := &report.Entries[i]
		if entry.Err != nil || entry.LinkName == "" {
			continue
		}

		target := filepath.Base(entry.DestPath)
		if _, isFile := owners[entry.LinkName]; isFile {
			entry.LinkStatus = entities.LinkShadowed
			m.logger.Debug("canonical name is a copied file", interfaces.F("link", entry.LinkName))
			continue
		}
		if prev, linked := links[entry.LinkName]; linked {
			entry.LinkStatus = entities.LinkConflict
			m.logger.Warn("canonical link already points elsewhere",
				interfaces.F("link", entry.LinkName),
				interfaces.F("target", prev),
				interfaces.F("skipped", target))
			continue
		}

		// Relative target keeps the bundle relocatable
		if err := os.Symlink(target, filepath.Join(destDir, entry.LinkName)); err != nil {
			entry.LinkStatus = entities.LinkFailed
			entry.Err = &entities.MaterializationError{Path: entry.SourcePath, Op: entities.OpLink, Err: err}
			m.logger.Warn("link failed", interfaces.F("link", entry.LinkName), interfaces.F("error", err))
			continue
		}
		entry.LinkStatus = entities.LinkCreated
		links[entry.LinkName] = target
	}

	return report, nil
}

// copyFile copies the bytes and permission bits of src to dst, following
// symlinks at src. A partially written dst is removed on failure.
func copyFile(src, dst string) (err error) {
	//nolint:gosec // G304: src is a dependency path reported by the introspection tool
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	//nolint:errcheck // Defer close on read-only file
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", src)
	}

	//nolint:gosec // G304: dst is inside the destination directory
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}
	return os.Chmod(dst, info.Mode()&copyModeBits)
}
