package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ochairo/libbundle/internal/domain/entities"
	"github.com/ochairo/libbundle/internal/external-adapters/yaml"
	"github.com/spf13/pflag"
)

// Environment variables consulted between the config file and the flags
const (
	envConfig       = "LIBBUNDLE_CONFIG"
	envLdd          = "LIBBUNDLE_LDD"
	envFilter       = "LIBBUNDLE_FILTER"
	envBestEffort   = "LIBBUNDLE_BEST_EFFORT"
	envProbeTimeout = "LIBBUNDLE_PROBE_TIMEOUT"
	envCacheSize    = "LIBBUNDLE_CACHE_SIZE"
	envDigest       = "LIBBUNDLE_DIGEST"
)

// bundleFlags holds the raw command-line options of a bundle run
type bundleFlags struct {
	configPath        string
	ldd               string
	probeTimeout      time.Duration
	cacheSize         int
	bestEffort        bool
	dryRun            bool
	manifest          string
	digest            string
	signKey           string
	signPassphraseEnv string
	archive           string
	verbose           bool
}

func (f *bundleFlags) register(fs *pflag.FlagSet) {
	defaults := entities.DefaultBundleConfig()

	fs.StringVarP(&f.configPath, "config", "c", "", "YAML config file (also "+envConfig+")")
	fs.StringVar(&f.ldd, "ldd", defaults.IntrospectCommand, "Dependency introspection command")
	fs.DurationVar(&f.probeTimeout, "probe-timeout", 0, "Deadline for each introspection call (0 = none)")
	fs.IntVar(&f.cacheSize, "cache-size", defaults.CacheSize, "Path identities to memoize (0 = disabled)")
	fs.BoolVar(&f.bestEffort, "best-effort", false, "Exit 0 even when some libraries could not be copied")
	fs.BoolVar(&f.dryRun, "dry-run", false, "Print the closure without touching the destination")
	fs.StringVar(&f.manifest, "manifest", "", "Write a YAML manifest of the bundle to this file")
	fs.StringVar(&f.digest, "digest", string(defaults.Digest), "Manifest digest algorithm (sha256 or blake3)")
	fs.StringVar(&f.signKey, "sign-key", "", "Armored OpenPGP private key used to sign the manifest")
	fs.StringVar(&f.signPassphraseEnv, "sign-passphrase-env", "", "Environment variable holding the signing key passphrase")
	fs.StringVar(&f.archive, "archive", "", "Pack the destination into .tar, .tar.gz, .tgz, .tar.zst or .tar.lz4")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "Log every introspection call")
}

// loadBundleConfig resolves the run configuration with the precedence
// flags > environment > config file > defaults. Positional arguments are
// source_dir, dest_dir and an optional filter.
func loadBundleConfig(fs *pflag.FlagSet, f *bundleFlags, positional []string) (entities.BundleConfig, error) {
	cfg := entities.DefaultBundleConfig()

	configPath := f.configPath
	if !fs.Changed("config") {
		configPath = os.Getenv(envConfig)
	}
	if configPath != "" {
		parsed, err := yaml.NewConfigParser().ParseFile(configPath, cfg)
		if err != nil {
			return cfg, err
		}
		cfg = parsed
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	applyFlags(&cfg, fs, f)

	cfg.SourceDir = positional[0]
	cfg.DestDir = positional[1]
	if len(positional) > 2 {
		cfg.Filter = positional[2]
	}

	if err := yaml.ValidateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *entities.BundleConfig) error {
	if v, ok := os.LookupEnv(envLdd); ok {
		cfg.IntrospectCommand = v
	}
	if v, ok := os.LookupEnv(envFilter); ok {
		cfg.Filter = v
	}
	if v, ok := os.LookupEnv(envDigest); ok {
		cfg.Digest = entities.DigestAlgorithm(v)
	}
	if v, ok := os.LookupEnv(envBestEffort); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return envError(envBestEffort, err)
		}
		cfg.BestEffort = b
	}
	if v, ok := os.LookupEnv(envProbeTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return envError(envProbeTimeout, err)
		}
		cfg.ProbeTimeout = d
	}
	if v, ok := os.LookupEnv(envCacheSize); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError(envCacheSize, err)
		}
		cfg.CacheSize = n
	}
	return nil
}

func envError(name string, err error) error {
	return &entities.ConfigurationError{Msg: fmt.Sprintf("invalid %s", name), Err: err}
}

// applyFlags copies only the flags given on the command line
func applyFlags(cfg *entities.BundleConfig, fs *pflag.FlagSet, f *bundleFlags) {
	if fs.Changed("ldd") {
		cfg.IntrospectCommand = f.ldd
	}
	if fs.Changed("probe-timeout") {
		cfg.ProbeTimeout = f.probeTimeout
	}
	if fs.Changed("cache-size") {
		cfg.CacheSize = f.cacheSize
	}
	if fs.Changed("best-effort") {
		cfg.BestEffort = f.bestEffort
	}
	if fs.Changed("dry-run") {
		cfg.DryRun = f.dryRun
	}
	if fs.Changed("manifest") {
		cfg.ManifestPath = f.manifest
	}
	if fs.Changed("digest") {
		cfg.Digest = entities.DigestAlgorithm(f.digest)
	}
	if fs.Changed("sign-key") {
		cfg.SignKeyPath = f.signKey
	}
	if fs.Changed("sign-passphrase-env") {
		cfg.SignPassphraseEnv = f.signPassphraseEnv
	}
	if fs.Changed("archive") {
		cfg.ArchivePath = f.archive
	}
	if fs.Changed("verbose") {
		cfg.Verbose = f.verbose
	}
}
