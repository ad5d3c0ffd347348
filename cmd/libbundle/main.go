package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
)

// version is overridden at link time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	// A missing .env is fine
	_ = godotenv.Load()

	if len(args) > 0 {
		switch args[0] {
		case "verify":
			return runVerify(ctx, args[1:], stdout, stderr)
		case "help":
			printUsage(stdout)
			return 0
		case "version":
			fmt.Fprintf(stdout, "libbundle %s\n", version)
			return 0
		}
	}
	return runBundle(ctx, args, stdout, stderr)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `libbundle - Copy the shared-library closure of a directory of binaries

Usage:
  libbundle [options] <source_dir> <dest_dir> [filter]
  libbundle verify --manifest <file> [--key <public key>] <dest_dir>
  libbundle version

Every executable and versioned shared library (*.so.*) directly inside
source_dir is inspected with ldd. Each resolved dependency, and each of
their dependencies in turn, is copied into dest_dir next to a symlink
named after its canonical form (libfoo.so.1.2 -> libfoo.so).

WARNING: dest_dir is deleted and recreated if it already exists.

A source_dir named verify, help or version is read as a command; give it
with a path prefix instead, e.g. "libbundle ./verify out".

filter restricts the closure to ldd lines containing the given
substring at every level, e.g. "pkg.7" keeps only libraries whose
resolution line mentions pkg.7.

Use "libbundle --help" or "libbundle verify --help" for the full option list.
`)
}
