// Package orchestrators coordinates complex workflows across multiple domain services.
package orchestrators

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ochairo/libbundle/internal/domain/entities"
	"github.com/ochairo/libbundle/internal/domain/interfaces"
	"github.com/ochairo/libbundle/internal/domain/interfaces/gateways"
	"github.com/ochairo/libbundle/internal/domain/services"
)

// BundleOrchestrator coordinates the scan, closure and materialization workflow
type BundleOrchestrator struct {
	scanner      gateways.ArtifactScanner
	extractor    gateways.DependencyExtractor
	resolver     gateways.PathResolver
	materializer gateways.Materializer
	digester     gateways.Digester
	manifests    gateways.ManifestStore
	signer       gateways.ManifestSigner
	packager     gateways.Packager
	tool         string
	lookupEnv    func(string) (string, bool)
	logger       interfaces.Logger
}

// BundleOrchestratorConfig holds configuration for the orchestrator
type BundleOrchestratorConfig struct {
	// Tool is recorded in manifests, e.g. "libbundle 1.2.0"
	Tool string
	// LookupEnv resolves the signing passphrase variable; defaults to os.LookupEnv
	LookupEnv func(string) (string, bool)
	// Resolver identifies aliased paths during closure computation; nil compares cleaned paths
	Resolver gateways.PathResolver
	Logger   interfaces.Logger
}

// NewBundleOrchestrator creates a new bundle orchestrator
func NewBundleOrchestrator(
	scanner gateways.ArtifactScanner,
	extractor gateways.DependencyExtractor,
	materializer gateways.Materializer,
	digester gateways.Digester,
	manifests gateways.ManifestStore,
	signer gateways.ManifestSigner,
	packager gateways.Packager,
	config BundleOrchestratorConfig,
) *BundleOrchestrator {
	tool := config.Tool
	if tool == "" {
		tool = "libbundle"
	}
	lookupEnv := config.LookupEnv
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	logger := config.Logger
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}

	return &BundleOrchestrator{
		scanner:      scanner,
		extractor:    extractor,
		resolver:     config.Resolver,
		materializer: materializer,
		digester:     digester,
		manifests:    manifests,
		signer:       signer,
		packager:     packager,
		tool:         tool,
		lookupEnv:    lookupEnv,
		logger:       logger,
	}
}

// ResolveResult contains the artifacts and closure of a source directory
type ResolveResult struct {
	Artifacts []entities.Artifact
	Closure   *entities.ClosureSet
	Probes    int
	Duration  time.Duration
}

// BundleResult contains the result of a materialization
type BundleResult struct {
	Report        *entities.MaterializationReport
	Manifest      *entities.BundleManifest
	ManifestPath  string
	SignaturePath string
	Archive       *entities.BundleArchive
	Duration      time.Duration
}

// VerifyResult contains the result of checking a bundle against its manifest
type VerifyResult struct {
	Manifest          *entities.BundleManifest
	SignatureVerified bool
	Problems          []string
}

// Resolve scans cfg.SourceDir and computes the dependency closure of what it
// finds. Nothing on disk is modified.
func (o *BundleOrchestrator) Resolve(ctx context.Context, cfg entities.BundleConfig) (*ResolveResult, error) {
	startTime := time.Now()

	// Step 1: Reject configurations that would damage the source or the output
	if err := validatePaths(cfg); err != nil {
		return nil, err
	}

	// Step 2: Enumerate executables and versioned shared libraries
	artifacts, err := o.scanner.Scan(ctx, cfg.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan source directory: %w", err)
	}
	if len(artifacts) == 0 {
		return nil, &entities.ConfigurationError{
			Msg: fmt.Sprintf("nothing to bundle in %s", cfg.SourceDir),
			Err: entities.ErrNoArtifacts,
		}
	}
	o.logger.Info("scanned source directory",
		interfaces.F("dir", cfg.SourceDir),
		interfaces.F("artifacts", len(artifacts)))

	// Step 3: Compute the transitive closure
	builder := services.NewClosureBuilder(o.extractor, o.resolver, cfg.Filter, o.logger)
	closure, err := builder.Resolve(ctx, artifacts)
	if err != nil {
		return nil, fmt.Errorf("failed to compute dependency closure: %w", err)
	}
	o.logger.Info("computed dependency closure",
		interfaces.F("libraries", closure.Len()),
		interfaces.F("probes", builder.Probes()))

	return &ResolveResult{
		Artifacts: artifacts,
		Closure:   closure,
		Probes:    builder.Probes(),
		Duration:  time.Since(startTime),
	}, nil
}

// Materialize replaces cfg.DestDir with the closure, then writes the
// manifest, its signature and the archive when configured. Per-entry
// failures are reported in the result, not returned as an error.
func (o *BundleOrchestrator) Materialize(ctx context.Context, cfg entities.BundleConfig, closure *entities.ClosureSet) (*BundleResult, error) {
	startTime := time.Now()

	// Step 1: Validate outputs before the destination is touched
	if err := validatePaths(cfg); err != nil {
		return nil, err
	}
	if _, err := entities.ParseDigestAlgorithm(string(cfg.Digest)); err != nil {
		return nil, err
	}
	if cfg.ArchivePath != "" {
		if _, err := entities.ArchiveFormatFromPath(cfg.ArchivePath); err != nil {
			return nil, err
		}
	}
	passphrase, err := o.passphrase(cfg)
	if err != nil {
		return nil, err
	}

	// Step 2: Recreate the destination and copy the closure into it
	if err := o.materializer.Prepare(cfg.DestDir); err != nil {
		return nil, fmt.Errorf("failed to prepare destination: %w", err)
	}
	report, err := o.materializer.Materialize(ctx, cfg.DestDir, closure)
	if err != nil {
		return nil, fmt.Errorf("failed to materialize closure: %w", err)
	}
	result := &BundleResult{Report: report}
	o.logger.Info("materialized closure",
		interfaces.F("dir", cfg.DestDir),
		interfaces.F("copied", len(report.Copied())),
		interfaces.F("failed", report.FailureCount()))

	// Step 3: Describe the bundle
	if cfg.ManifestPath != "" {
		manifest, err := services.NewManifestBuilder(o.digester, o.tool).Build(report, cfg)
		if err != nil {
			return result, fmt.Errorf("failed to build manifest: %w", err)
		}
		if err := o.manifests.Save(cfg.ManifestPath, manifest); err != nil {
			return result, fmt.Errorf("failed to save manifest: %w", err)
		}
		result.Manifest = manifest
		result.ManifestPath = cfg.ManifestPath

		// Step 4: Sign the manifest
		if cfg.SignKeyPath != "" {
			sigPath, err := o.signer.SignManifest(cfg.ManifestPath, cfg.SignKeyPath, passphrase)
			if err != nil {
				return result, fmt.Errorf("failed to sign manifest: %w", err)
			}
			result.SignaturePath = sigPath
		}
	}

	// Step 5: Pack the destination
	if cfg.ArchivePath != "" {
		archive, err := o.packager.PackageDirectory(ctx, cfg.DestDir, cfg.ArchivePath)
		if err != nil {
			return result, fmt.Errorf("failed to archive bundle: %w", err)
		}
		result.Archive = archive
	}

	result.Duration = time.Since(startTime)
	return result, nil
}

// Verify checks destDir against the manifest at manifestPath. When
// publicKeyPath is set, the manifest signature is checked first and a bad
// signature is returned as an error.
func (o *BundleOrchestrator) Verify(_ context.Context, manifestPath, publicKeyPath, destDir string) (*VerifyResult, error) {
	if publicKeyPath != "" {
		if err := o.signer.VerifyManifest(manifestPath, publicKeyPath); err != nil {
			return nil, fmt.Errorf("manifest signature rejected: %w", err)
		}
	}

	manifest, err := o.manifests.Load(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	return &VerifyResult{
		Manifest:          manifest,
		SignatureVerified: publicKeyPath != "",
		Problems:          services.VerifyBundle(destDir, manifest, o.digester),
	}, nil
}

// GetSummary returns a one-line human-readable summary of the bundle
func (r *BundleResult) GetSummary() string {
	copied := len(r.Report.Copied())
	failed := r.Report.FailureCount()

	links := 0
	for _, e := range r.Report.Entries {
		if e.LinkStatus == entities.LinkCreated {
			links++
		}
	}

	summary := fmt.Sprintf("Copied %d libraries (%d links) into %s", copied, links, r.Report.DestDir)
	if failed > 0 {
		summary += fmt.Sprintf(", %d failed", failed)
	}
	if r.ManifestPath != "" {
		summary += fmt.Sprintf("; manifest %s", r.ManifestPath)
	}
	if r.SignaturePath != "" {
		summary += fmt.Sprintf(" signed %s", r.SignaturePath)
	}
	if r.Archive != nil {
		summary += fmt.Sprintf("; archive %s (%d entries)", r.Archive.Path, r.Archive.Entries)
	}
	return summary
}

// passphrase resolves the signing key passphrase from the configured variable
func (o *BundleOrchestrator) passphrase(cfg entities.BundleConfig) ([]byte, error) {
	if cfg.SignKeyPath == "" {
		return nil, nil
	}
	if cfg.ManifestPath == "" {
		return nil, &entities.ConfigurationError{Msg: "a signing key requires a manifest path"}
	}
	if _, err := os.Stat(cfg.SignKeyPath); err != nil {
		return nil, &entities.ConfigurationError{Msg: "signing key is not readable", Err: err}
	}
	if cfg.SignPassphraseEnv == "" {
		return nil, nil
	}
	value, ok := o.lookupEnv(cfg.SignPassphraseEnv)
	if !ok {
		return nil, &entities.ConfigurationError{Msg: fmt.Sprintf("passphrase variable %s is not set", cfg.SignPassphraseEnv)}
	}
	return []byte(value), nil
}

// validatePaths rejects a destination that would delete the source when
// replaced, and outputs that would land inside the destination being packed
func validatePaths(cfg entities.BundleConfig) error {
	if cfg.SourceDir == "" || cfg.DestDir == "" {
		return &entities.ConfigurationError{Msg: "source and destination directories are required"}
	}

	src, err := filepath.Abs(cfg.SourceDir)
	if err != nil {
		return &entities.ConfigurationError{Msg: "invalid source directory", Err: err}
	}
	dest, err := filepath.Abs(cfg.DestDir)
	if err != nil {
		return &entities.ConfigurationError{Msg: "invalid destination directory", Err: err}
	}

	if within(src, dest) {
		return &entities.ConfigurationError{
			Msg: fmt.Sprintf("destination %s would delete source %s when replaced", cfg.DestDir, cfg.SourceDir),
		}
	}
	if cfg.ArchivePath != "" {
		archive, err := filepath.Abs(cfg.ArchivePath)
		if err != nil {
			return &entities.ConfigurationError{Msg: "invalid archive path", Err: err}
		}
		if within(archive, dest) {
			return &entities.ConfigurationError{Msg: fmt.Sprintf("archive %s must be outside the destination", cfg.ArchivePath)}
		}
	}
	return nil
}

// within reports whether path equals dir or lies below it
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
