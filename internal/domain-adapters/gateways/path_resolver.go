package gateways

import (
	"fmt"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ochairo/libbundle/internal/domain/interfaces"
)

// CanonicalResolver identifies a path by the file it resolves to after
// following every symlink, so that /lib64/libz.so.1 and /lib/libz.so.1
// compare equal when lib64 links to lib. When the file was requested under
// a different basename than the one it resolves to, the identity keeps
// that basename as a qualifier: two sonames sharing one file stay distinct
// because each needs its own entry in the bundle.
//
// Resolutions are memoized in an LRU. Every file in a closure typically
// reports the same handful of system libraries, so most lookups are hits.
type CanonicalResolver struct {
	cache  *lru.Cache[string, string]
	eval   func(string) (string, error)
	logger interfaces.Logger
}

// NewCanonicalResolver creates a resolver that memoizes at most size
// resolutions. A size of zero disables memoization.
func NewCanonicalResolver(size int, logger interfaces.Logger) (*CanonicalResolver, error) {
	if size < 0 {
		return nil, fmt.Errorf("path cache size must not be negative, got %d", size)
	}
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}

	r := &CanonicalResolver{eval: filepath.EvalSymlinks, logger: logger}
	if size > 0 {
		cache, err := lru.New[string, string](size)
		if err != nil {
			return nil, fmt.Errorf("failed to create path cache: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

// Canonical returns the identity of path. A path that cannot be resolved
// is identified by its cleaned text.
func (r *CanonicalResolver) Canonical(path string) string {
	key := filepath.Clean(path)
	if r.cache != nil {
		if id, ok := r.cache.Get(key); ok {
			return id
		}
	}

	id := key
	if resolved, err := r.eval(key); err == nil {
		id = filepath.Clean(resolved)
		if base := filepath.Base(key); filepath.Base(id) != base {
			id += "#" + base
		}
	} else {
		r.logger.Debug("path not resolvable, using cleaned path", interfaces.F("path", key), interfaces.F("error", err))
	}

	if r.cache != nil {
		r.cache.Add(key, id)
	}
	return id
}

// Len returns the number of memoized resolutions
func (r *CanonicalResolver) Len() int {
	if r.cache == nil {
		return 0
	}
	return r.cache.Len()
}
