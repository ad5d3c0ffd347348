package yaml

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ochairo/libbundle/internal/domain/entities"
	"gopkg.in/yaml.v3"
)

type yamlManifest struct {
	FormatVersion int                   `yaml:"format_version"`
	Tool          string                `yaml:"tool"`
	CreatedAt     time.Time             `yaml:"created_at"`
	SourceDir     string                `yaml:"source_dir"`
	Filter        string                `yaml:"filter,omitempty"`
	Digest        string                `yaml:"digest"`
	Files         []yamlManifestFile    `yaml:"files"`
	Failures      []yamlManifestFailure `yaml:"failures,omitempty"`
}

type yamlManifestFile struct {
	Name   string   `yaml:"name"`
	Source string   `yaml:"source"`
	Size   int64    `yaml:"size"`
	Mode   string   `yaml:"mode"`
	Digest string   `yaml:"digest"`
	Links  []string `yaml:"links,omitempty"`
}

type yamlManifestFailure struct {
	Source string `yaml:"source"`
	Op     string `yaml:"op"`
	Error  string `yaml:"error"`
}

// ManifestRepository stores bundle manifests as YAML files
type ManifestRepository struct{}

// NewManifestRepository creates a new YAML manifest repository
func NewManifestRepository() *ManifestRepository {
	return &ManifestRepository{}
}

// Save writes manifest to filePath, replacing any existing file
func (r *ManifestRepository) Save(filePath string, manifest *entities.BundleManifest) error {
	raw := yamlManifest{
		FormatVersion: manifest.FormatVersion,
		Tool:          manifest.Tool,
		CreatedAt:     manifest.CreatedAt.UTC(),
		SourceDir:     manifest.SourceDir,
		Filter:        manifest.Filter,
		Digest:        string(manifest.Digest),
		Files:         make([]yamlManifestFile, 0, len(manifest.Files)),
	}
	for _, f := range manifest.Files {
		raw.Files = append(raw.Files, yamlManifestFile{
			Name:   f.Name,
			Source: f.Source,
			Size:   f.Size,
			Mode:   formatMode(f.Mode),
			Digest: f.Digest,
			Links:  f.Links,
		})
	}
	for _, f := range manifest.Failures {
		raw.Failures = append(raw.Failures, yamlManifestFailure{Source: f.Source, Op: string(f.Op), Error: f.Error})
	}

	data, err := yaml.Marshal(&raw)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	//nolint:gosec // G306: manifests are meant to be readable alongside the bundle
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest %s: %w", filePath, err)
	}
	return nil
}

// Load reads the manifest stored at filePath
func (r *ManifestRepository) Load(filePath string) (*entities.BundleManifest, error) {
	//nolint:gosec // G304: filePath is the operator-supplied --manifest path
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, &entities.ConfigurationError{Msg: fmt.Sprintf("failed to read manifest %s", filePath), Err: err}
	}

	var raw yamlManifest
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &entities.ConfigurationError{Msg: fmt.Sprintf("failed to parse manifest %s", filePath), Err: err}
	}
	if raw.FormatVersion != entities.ManifestFormatVersion {
		return nil, &entities.ConfigurationError{
			Msg: fmt.Sprintf("unsupported manifest format version %d (want %d)", raw.FormatVersion, entities.ManifestFormatVersion),
		}
	}
	digest, err := entities.ParseDigestAlgorithm(raw.Digest)
	if err != nil {
		return nil, err
	}

	manifest := &entities.BundleManifest{
		FormatVersion: raw.FormatVersion,
		Tool:          raw.Tool,
		CreatedAt:     raw.CreatedAt,
		SourceDir:     raw.SourceDir,
		Filter:        raw.Filter,
		Digest:        digest,
	}
	for _, f := range raw.Files {
		mode, err := parseMode(f.Mode)
		if err != nil {
			return nil, &entities.ConfigurationError{Msg: fmt.Sprintf("invalid mode for %s", f.Name), Err: err}
		}
		manifest.Files = append(manifest.Files, entities.ManifestFile{
			Name:   f.Name,
			Source: f.Source,
			Size:   f.Size,
			Mode:   mode,
			Digest: f.Digest,
			Links:  f.Links,
		})
	}
	for _, f := range raw.Failures {
		manifest.Failures = append(manifest.Failures, entities.ManifestFailure{
			Source: f.Source,
			Op:     entities.MaterializationOp(f.Op),
			Error:  f.Error,
		})
	}
	return manifest, nil
}

// formatMode encodes permission and special bits in chmod octal notation
func formatMode(mode os.FileMode) string {
	bits := uint32(mode.Perm())
	if mode&os.ModeSetuid != 0 {
		bits |= 04000
	}
	if mode&os.ModeSetgid != 0 {
		bits |= 02000
	}
	if mode&os.ModeSticky != 0 {
		bits |= 01000
	}
	return fmt.Sprintf("%04o", bits)
}

// parseMode reverses formatMode
func parseMode(s string) (os.FileMode, error) {
	bits, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, err
	}
	mode := os.FileMode(bits & 0777)
	if bits&04000 != 0 {
		mode |= os.ModeSetuid
	}
	if bits&02000 != 0 {
		mode |= os.ModeSetgid
	}
	if bits&01000 != 0 {
		mode |= os.ModeSticky
	}
	return mode, nil
}
