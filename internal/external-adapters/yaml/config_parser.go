// Package yaml provides YAML-based configuration parsing and manifest storage.
package yaml

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ochairo/libbundle/internal/domain/entities"
	"gopkg.in/yaml.v3"
)

// yamlConfig represents the raw YAML structure of a config file.
// Pointer fields distinguish "absent" from the zero value so only keys
// present in the file override the base configuration.
type yamlConfig struct {
	Ldd               *string `yaml:"ldd"`
	Filter            *string `yaml:"filter"`
	ProbeTimeout      *string `yaml:"probe_timeout"`
	CacheSize         *int    `yaml:"cache_size"`
	BestEffort        *bool   `yaml:"best_effort"`
	DryRun            *bool   `yaml:"dry_run"`
	Manifest          *string `yaml:"manifest"`
	Digest            *string `yaml:"digest"`
	SignKey           *string `yaml:"sign_key"`
	SignPassphraseEnv *string `yaml:"sign_passphrase_env"`
	Archive           *string `yaml:"archive"`
	Verbose           *bool   `yaml:"verbose"`
}

// ConfigParser parses YAML config files
type ConfigParser struct{}

// NewConfigParser creates a new YAML config parser
func NewConfigParser() *ConfigParser {
	return &ConfigParser{}
}

// ParseFile reads filePath and overlays its settings onto base
func (p *ConfigParser) ParseFile(filePath string, base entities.BundleConfig) (entities.BundleConfig, error) {
	//nolint:gosec // G304: filePath is the operator-supplied --config path
	data, err := os.ReadFile(filePath)
	if err != nil {
		return base, &entities.ConfigurationError{Msg: fmt.Sprintf("failed to read config file %s", filePath), Err: err}
	}

	cfg, err := p.Parse(data, base)
	if err != nil {
		return base, fmt.Errorf("%s: %w", filePath, err)
	}
	return cfg, nil
}

// Parse overlays the settings in data onto base. Unknown keys are rejected.
func (p *ConfigParser) Parse(data []byte, base entities.BundleConfig) (entities.BundleConfig, error) {
	var raw yamlConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return base, &entities.ConfigurationError{Msg: "failed to parse YAML config", Err: err}
	}

	cfg := base
	if raw.Ldd != nil {
		cfg.IntrospectCommand = *raw.Ldd
	}
	if raw.Filter != nil {
		cfg.Filter = *raw.Filter
	}
	if raw.ProbeTimeout != nil {
		d, err := time.ParseDuration(*raw.ProbeTimeout)
		if err != nil {
			return base, &entities.ConfigurationError{Msg: "invalid probe_timeout", Err: err}
		}
		cfg.ProbeTimeout = d
	}
	if raw.CacheSize != nil {
		cfg.CacheSize = *raw.CacheSize
	}
	if raw.BestEffort != nil {
		cfg.BestEffort = *raw.BestEffort
	}
	if raw.DryRun != nil {
		cfg.DryRun = *raw.DryRun
	}
	if raw.Manifest != nil {
		cfg.ManifestPath = *raw.Manifest
	}
	if raw.Digest != nil {
		cfg.Digest = entities.DigestAlgorithm(*raw.Digest)
	}
	if raw.SignKey != nil {
		cfg.SignKeyPath = *raw.SignKey
	}
	if raw.SignPassphraseEnv != nil {
		cfg.SignPassphraseEnv = *raw.SignPassphraseEnv
	}
	if raw.Archive != nil {
		cfg.ArchivePath = *raw.Archive
	}
	if raw.Verbose != nil {
		cfg.Verbose = *raw.Verbose
	}

	if err := ValidateConfig(cfg); err != nil {
		return base, err
	}
	return cfg, nil
}

// ValidateConfig checks the settings that can be judged without touching the filesystem
func ValidateConfig(cfg entities.BundleConfig) error {
	if cfg.IntrospectCommand == "" {
		return &entities.ConfigurationError{Msg: "introspection command must not be empty"}
	}
	if cfg.ProbeTimeout < 0 {
		return &entities.ConfigurationError{Msg: fmt.Sprintf("probe timeout must not be negative, got %s", cfg.ProbeTimeout)}
	}
	if cfg.CacheSize < 0 {
		return &entities.ConfigurationError{Msg: fmt.Sprintf("cache size must not be negative, got %d", cfg.CacheSize)}
	}
	if _, err := entities.ParseDigestAlgorithm(string(cfg.Digest)); err != nil {
		return err
	}
	if cfg.ArchivePath != "" {
		if _, err := entities.ArchiveFormatFromPath(cfg.ArchivePath); err != nil {
			return err
		}
	}
	if cfg.SignKeyPath != "" && cfg.ManifestPath == "" {
		return &entities.ConfigurationError{Msg: "a signing key requires a manifest path"}
	}
	return nil
}
