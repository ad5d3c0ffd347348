package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ochairo/libbundle/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/libbundle/internal/domain-orchestrators"
	"github.com/ochairo/libbundle/internal/domain/entities"
	"github.com/ochairo/libbundle/internal/domain/interfaces"
	"github.com/ochairo/libbundle/internal/external-adapters/logging"
	"github.com/ochairo/libbundle/internal/external-adapters/yaml"
	"github.com/spf13/pflag"
)

func runBundle(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("libbundle", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	var flags bundleFlags
	flags.register(fs)

	fs.Usage = func() {
		printUsage(stdout)
		fmt.Fprintf(stdout, "\nOptions:\n%s", fs.FlagUsages())
		fmt.Fprint(stdout, `
Examples:
  # Bundle everything linked by the binaries in ./bin
  libbundle ./bin ./bundle

  # Only follow libraries from the pkg.7 installation, write a signed manifest
  libbundle --manifest bundle.yml --sign-key release.asc ./bin ./bundle pkg.7

  # Preview the closure without copying
  libbundle --dry-run ./bin ./bundle
`)
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n\n", err)
		fs.Usage()
		return 1
	}

	if fs.NArg() < 2 || fs.NArg() > 3 {
		usageErr := &entities.UsageError{Msg: fmt.Sprintf("expected <source_dir> <dest_dir> [filter], got %d arguments", fs.NArg())}
		fmt.Fprintf(stderr, "Error: %v\n\n", usageErr)
		fs.Usage()
		return 1
	}

	cfg, err := loadBundleConfig(fs, &flags, fs.Args())
	if err != nil {
		reportError(stderr, err)
		return 1
	}

	logger := newLogger(stderr, cfg.Verbose)
	orch, err := newBundleOrchestrator(cfg, logger)
	if err != nil {
		reportError(stderr, err)
		return 1
	}

	return executeBundle(ctx, orch, cfg, stdout, stderr)
}

func executeBundle(ctx context.Context, orch *orchestrators.BundleOrchestrator, cfg entities.BundleConfig, stdout, stderr io.Writer) int {
	resolved, err := orch.Resolve(ctx, cfg)
	if err != nil {
		reportError(stderr, err)
		return 1
	}

	fmt.Fprintln(stdout, "Libraries to be copied:")
	for _, path := range resolved.Closure.Paths() {
		fmt.Fprintln(stdout, path)
	}

	if cfg.DryRun {
		fmt.Fprintf(stdout, "Dry run: %d libraries from %d artifacts, %s left untouched\n",
			resolved.Closure.Len(), len(resolved.Artifacts), cfg.DestDir)
		return 0
	}

	result, err := orch.Materialize(ctx, cfg, resolved.Closure)
	if result != nil {
		printFailures(stdout, result.Report)
	}
	if err != nil {
		reportError(stderr, err)
		return 1
	}

	fmt.Fprintln(stdout, result.GetSummary())

	if result.Report.FailureCount() > 0 && !cfg.BestEffort {
		return 1
	}
	return 0
}

func printFailures(w io.Writer, report *entities.MaterializationReport) {
	for _, entry := range report.Failures() {
		if entry.Err.Op == entities.OpLink {
			fmt.Fprintf(w, "Unable to copy %s: link %s: %v\n", entry.SourcePath, entry.LinkName, entry.Err.Err)
			continue
		}
		fmt.Fprintf(w, "Unable to copy %s: %v\n", entry.SourcePath, entry.Err.Err)
	}
}

// newBundleOrchestrator wires the adapters selected by cfg
func newBundleOrchestrator(cfg entities.BundleConfig, logger interfaces.Logger) (*orchestrators.BundleOrchestrator, error) {
	resolver, err := gateways.NewCanonicalResolver(cfg.CacheSize, logger)
	if err != nil {
		return nil, err
	}

	return orchestrators.NewBundleOrchestrator(
		gateways.NewArtifactScanner(),
		gateways.NewDependencyExtractor(cfg.IntrospectCommand, cfg.ProbeTimeout, logger),
		gateways.NewFileMaterializer(logger),
		gateways.NewDigester(),
		yaml.NewManifestRepository(),
		gateways.NewSignatureGateway(),
		gateways.NewPackager(),
		orchestrators.BundleOrchestratorConfig{
			Tool:     "libbundle " + version,
			Resolver: resolver,
			Logger:   logger,
		},
	), nil
}

func newLogger(w io.Writer, verbose bool) interfaces.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return logging.NewTextLogger(w, level)
}

// reportError prints err with a prefix chosen by its type
func reportError(w io.Writer, err error) {
	var (
		usageErr *entities.UsageError
		cfgErr   *entities.ConfigurationError
		toolErr  *entities.ToolInvocationError
	)
	switch {
	case errors.As(err, &usageErr), errors.As(err, &cfgErr):
		fmt.Fprintf(w, "Error: %v\n", err)
	case errors.As(err, &toolErr):
		fmt.Fprintf(w, "Error: dependency introspection failed: %v\n", err)
	default:
		fmt.Fprintf(w, "Unexpected error: %v\n", err)
	}
}
