package services

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ochairo/libbundle/internal/domain/entities"
	"github.com/ochairo/libbundle/internal/domain/interfaces/gateways"
)

// specialModeBits are the mode bits a copy preserves besides permissions
const specialModeBits = os.ModeSetuid | os.ModeSetgid | os.ModeSticky

// ManifestBuilder describes materialization reports as bundle manifests
type ManifestBuilder struct {
	digester gateways.Digester
	tool     string
	now      func() time.Time
}

// NewManifestBuilder creates a manifest builder stamping manifests with tool
func NewManifestBuilder(digester gateways.Digester, tool string) *ManifestBuilder {
	return &ManifestBuilder{digester: digester, tool: tool, now: time.Now}
}

// Build describes every copied file of report, reading size, mode and digest
// from the destination copy. Failed entries are listed under Failures.
func (b *ManifestBuilder) Build(report *entities.MaterializationReport, cfg entities.BundleConfig) (*entities.BundleManifest, error) {
	manifest := &entities.BundleManifest{
		FormatVersion: entities.ManifestFormatVersion,
		Tool:          b.tool,
		CreatedAt:     b.now().UTC(),
		SourceDir:     cfg.SourceDir,
		Filter:        cfg.Filter,
		Digest:        cfg.Digest,
		Files:         make([]entities.ManifestFile, 0, len(report.Entries)),
	}

	for _, entry := range report.Copied() {
		info, err := os.Lstat(entry.DestPath)
		if err != nil {
			return nil, fmt.Errorf("failed to stat bundled file: %w", err)
		}
		digest, err := b.digester.Digest(entry.DestPath, cfg.Digest)
		if err != nil {
			return nil, fmt.Errorf("failed to digest bundled file: %w", err)
		}

		file := entities.ManifestFile{
			Name:   filepath.Base(entry.DestPath),
			Source: entry.SourcePath,
			Size:   info.Size(),
			Mode:   info.Mode() & (os.ModePerm | specialModeBits),
			Digest: digest,
		}
		if entry.LinkStatus == entities.LinkCreated {
			file.Links = []string{entry.LinkName}
		}
		manifest.Files = append(manifest.Files, file)
	}

	for _, entry := range report.Failures() {
		manifest.Failures = append(manifest.Failures, entities.ManifestFailure{
			Source: entry.SourcePath,
			Op:     entry.Err.Op,
			Error:  entry.Err.Err.Error(),
		})
	}

	return manifest, nil
}

// VerifyBundle compares destDir against manifest and returns one message per
// mismatch. An empty result means the bundle matches.
func VerifyBundle(destDir string, manifest *entities.BundleManifest, digester gateways.Digester) []string {
	problems := make([]string, 0)

	for _, file := range manifest.Files {
		path := filepath.Join(destDir, file.Name)
		info, err := os.Lstat(path)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", file.Name, err))
			continue
		}
		if !info.Mode().IsRegular() {
			problems = append(problems, fmt.Sprintf("%s: not a regular file", file.Name))
			continue
		}

		if info.Size() != file.Size {
			problems = append(problems, fmt.Sprintf("%s: size %d, want %d", file.Name, info.Size(), file.Size))
		}
		if mode := info.Mode() & (os.ModePerm | specialModeBits); mode != file.Mode {
			problems = append(problems, fmt.Sprintf("%s: mode %s, want %s", file.Name, mode, file.Mode))
		}
		digest, err := digester.Digest(path, manifest.Digest)
		switch {
		case err != nil:
			problems = append(problems, fmt.Sprintf("%s: %v", file.Name, err))
		case digest != file.Digest:
			problems = append(problems, fmt.Sprintf("%s: %s digest mismatch", file.Name, manifest.Digest))
		}

		for _, link := range file.Links {
			target, err := os.Readlink(filepath.Join(destDir, link))
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s: %v", link, err))
				continue
			}
			if target != file.Name {
				problems = append(problems, fmt.Sprintf("%s: links to %s, want %s", link, target, file.Name))
			}
		}
	}

	return problems
}
