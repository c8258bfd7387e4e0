// Package backends owns embedding backend construction. Instead of
// module-level singletons, a Registry instance is injected by the
// application and hands out at most one backend per configuration.
package backends

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/quarrylabs/quarry/internal/embed"
	"github.com/quarrylabs/quarry/internal/errors"
)

// Spec selects a backend and its configuration. Equal specs yield the
// same instance from a Registry.
type Spec struct {
	// Backend is the backend name, e.g. "static".
	Backend string

	// Model is the backend-specific model identifier; optional.
	Model string

	// Dimension is the embedding dimension (0 means the backend
	// default).
	Dimension int

	// CacheSize is the LRU size for the caching wrapper; 0 means the
	// default, negative disables caching.
	CacheSize int
}

func (s Spec) key() string {
	return fmt.Sprintf("%s|%s|%d|%d", s.Backend, s.Model, s.Dimension, s.CacheSize)
}

// Builder constructs a backend from a spec.
type Builder func(Spec) (embed.Embedder, error)

// Registry is a thread-safe get-or-create cache of embedding
// backends. Concurrent first requests for the same spec construct
// exactly one instance; losers wait for the winner's result.
type Registry struct {
	mu        sync.RWMutex
	builders  map[string]Builder
	instances map[string]embed.Embedder
	group     singleflight.Group
}

// NewRegistry creates a registry with the built-in backends
// registered.
func NewRegistry() *Registry {
	r := &Registry{
		builders:  make(map[string]Builder),
		instances: make(map[string]embed.Embedder),
	}
	r.RegisterBackend("static", func(spec Spec) (embed.Embedder, error) {
		return embed.NewStaticEmbedder(spec.Dimension), nil
	})
	return r
}

// RegisterBackend adds (or replaces) a named backend builder.
func (r *Registry) RegisterBackend(name string, builder Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[name] = builder
}

// Get returns the backend for the spec, constructing it on first use.
// Unknown backend names fail with a validation error listing the
// registered backends.
func (r *Registry) Get(spec Spec) (embed.Embedder, error) {
	key := spec.key()

	r.mu.RLock()
	inst, ok := r.instances[key]
	builder, known := r.builders[spec.Backend]
	r.mu.RUnlock()
	if ok {
		return inst, nil
	}
	if !known {
		return nil, errors.Validation(fmt.Sprintf(
			"unknown embedding backend %q (available: %s)",
			spec.Backend, strings.Join(r.backendNames(), ", ")))
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		r.mu.RLock()
		inst, ok := r.instances[key]
		r.mu.RUnlock()
		if ok {
			return inst, nil
		}

		built, err := builder(spec)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeEmbeddingFailed,
				fmt.Errorf("construct %q backend: %w", spec.Backend, err))
		}
		if spec.CacheSize >= 0 {
			built = embed.NewCachedEmbedder(built, spec.CacheSize)
		}

		r.mu.Lock()
		r.instances[key] = built
		r.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(embed.Embedder), nil
}

func (r *Registry) backendNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
