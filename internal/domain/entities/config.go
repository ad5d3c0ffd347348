package entities

import "time"

// DefaultIntrospectCommand is the dynamic-linker introspection tool
const DefaultIntrospectCommand = "ldd"

// DefaultCacheSize bounds the number of memoized path identities
const DefaultCacheSize = 4096

// BundleConfig holds the settings of one bundling run
type BundleConfig struct {
	SourceDir         string
	DestDir           string
	Filter            string
	IntrospectCommand string
	ProbeTimeout      time.Duration // zero means no deadline
	CacheSize         int           // zero disables path identity memoization
	BestEffort        bool          // exit 0 even when entries failed
	DryRun            bool
	ManifestPath      string
	Digest            DigestAlgorithm
	SignKeyPath       string
	SignPassphraseEnv string
	ArchivePath       string
	Verbose           bool
}

// DefaultBundleConfig returns the configuration used when nothing overrides it
func DefaultBundleConfig() BundleConfig {
	return BundleConfig{
		IntrospectCommand: DefaultIntrospectCommand,
		CacheSize:         DefaultCacheSize,
		Digest:            DigestSHA256,
	}
}
