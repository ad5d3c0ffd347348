package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ochairo/libbundle/internal/domain/entities"
	"github.com/spf13/pflag"
)

func parseFlags(t *testing.T, args ...string) (*pflag.FlagSet, *bundleFlags) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	var f bundleFlags
	f.register(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return fs, &f
}

func TestLoadBundleConfig_Precedence(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "libbundle.yml")
	config := []byte("ldd: from-file\nfilter: file-filter\ncache_size: 10\nprobe_timeout: 1s\n")
	if err := os.WriteFile(configPath, config, 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(envConfig, configPath)
	t.Setenv(envLdd, "from-env")
	t.Setenv(envCacheSize, "20")

	fs, f := parseFlags(t, "--cache-size", "30", "src", "dest")
	cfg, err := loadBundleConfig(fs, f, fs.Args())
	if err != nil {
		t.Fatalf("loadBundleConfig() error = %v", err)
	}

	if cfg.IntrospectCommand != "from-env" {
		t.Errorf("IntrospectCommand = %q, environment should override the file", cfg.IntrospectCommand)
	}
	if cfg.CacheSize != 30 {
		t.Errorf("CacheSize = %d, flag should override the environment", cfg.CacheSize)
	}
	if cfg.Filter != "file-filter" {
		t.Errorf("Filter = %q, want the file value", cfg.Filter)
	}
	if cfg.ProbeTimeout != time.Second {
		t.Errorf("ProbeTimeout = %v, want 1s", cfg.ProbeTimeout)
	}
	if cfg.Digest != entities.DigestSHA256 {
		t.Errorf("Digest = %q, want the default", cfg.Digest)
	}
	if cfg.SourceDir != "src" || cfg.DestDir != "dest" {
		t.Errorf("positional = %q %q", cfg.SourceDir, cfg.DestDir)
	}
}

func TestLoadBundleConfig_PositionalFilterWins(t *testing.T) {
	t.Setenv(envFilter, "env-filter")

	fs, f := parseFlags(t, "src", "dest", "pkg.7")
	cfg, err := loadBundleConfig(fs, f, fs.Args())
	if err != nil {
		t.Fatalf("loadBundleConfig() error = %v", err)
	}
	if cfg.Filter != "pkg.7" {
		t.Errorf("Filter = %q, want pkg.7", cfg.Filter)
	}
}

func TestLoadBundleConfig_InvalidEnvironment(t *testing.T) {
	tests := []struct{ name, value string }{
		{envBestEffort, "maybe"},
		{envProbeTimeout, "soon"},
		{envCacheSize, "lots"},
		{envDigest, "md5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.name, tt.value)
			fs, f := parseFlags(t, "src", "dest")

			_, err := loadBundleConfig(fs, f, fs.Args())
			var cfgErr *entities.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("loadBundleConfig() error = %v, want ConfigurationError", err)
			}
		})
	}
}

func TestLoadBundleConfig_FlagsOnly(t *testing.T) {
	fs, f := parseFlags(t, "--best-effort", "--digest", "blake3", "--archive", "out.tgz", "-v", "src", "dest")
	cfg, err := loadBundleConfig(fs, f, fs.Args())
	if err != nil {
		t.Fatalf("loadBundleConfig() error = %v", err)
	}
	if !cfg.BestEffort || !cfg.Verbose || cfg.Digest != entities.DigestBLAKE3 || cfg.ArchivePath != "out.tgz" {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if cfg.CacheSize != entities.DefaultCacheSize || cfg.IntrospectCommand != entities.DefaultIntrospectCommand {
		t.Errorf("unset flags should keep defaults: %+v", cfg)
	}
}
