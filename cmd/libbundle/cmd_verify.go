package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ochairo/libbundle/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/libbundle/internal/domain-orchestrators"
	"github.com/ochairo/libbundle/internal/domain/entities"
	"github.com/ochairo/libbundle/internal/external-adapters/yaml"
	"github.com/spf13/pflag"
)

func runVerify(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("verify", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		manifestPath = fs.String("manifest", "", "Manifest written by a bundle run (required)")
		keyPath      = fs.String("key", "", "Armored OpenPGP public key; checks <manifest>.asc first")
		verbose      = fs.BoolP("verbose", "v", false, "Verbose logging")
	)

	fs.Usage = func() {
		fmt.Fprintf(stdout, `Usage: libbundle verify --manifest <file> [--key <public key>] <dest_dir>

Check that dest_dir still matches the manifest written when it was bundled:
every file's size, mode and digest, and every canonical link's target.

Options:
%s
Examples:
  # Check a bundle
  libbundle verify --manifest bundle.yml ./bundle

  # Check the manifest signature too
  libbundle verify --manifest bundle.yml --key release.pub.asc ./bundle
`, fs.FlagUsages())
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n\n", err)
		fs.Usage()
		return 1
	}

	if *manifestPath == "" || fs.NArg() != 1 {
		fmt.Fprintf(stderr, "Error: %v\n\n", &entities.UsageError{Msg: "--manifest and exactly one <dest_dir> are required"})
		fs.Usage()
		return 1
	}

	orch := orchestrators.NewBundleOrchestrator(
		nil, nil, nil,
		gateways.NewDigester(),
		yaml.NewManifestRepository(),
		gateways.NewSignatureGateway(),
		nil,
		orchestrators.BundleOrchestratorConfig{Logger: newLogger(stderr, *verbose)},
	)

	destDir := fs.Arg(0)
	result, err := orch.Verify(ctx, *manifestPath, *keyPath, destDir)
	if err != nil {
		reportError(stderr, err)
		return 1
	}

	if result.SignatureVerified {
		fmt.Fprintf(stdout, "Signature OK: %s%s\n", *manifestPath, gateways.SignatureSuffix)
	}
	for _, problem := range result.Problems {
		fmt.Fprintf(stdout, "FAILED %s\n", problem)
	}
	if len(result.Manifest.Failures) > 0 {
		fmt.Fprintf(stdout, "Note: %d libraries were not bundled when the manifest was written\n", len(result.Manifest.Failures))
	}

	if len(result.Problems) > 0 {
		fmt.Fprintf(stdout, "%s does not match %s: %d problems\n", destDir, *manifestPath, len(result.Problems))
		return 1
	}
	fmt.Fprintf(stdout, "%s matches %s: %d files verified\n", destDir, *manifestPath, len(result.Manifest.Files))
	return 0
}
