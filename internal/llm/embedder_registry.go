// ABOUTME: Lazily initialised, reference-counted embedders keyed by model name
// ABOUTME: Each model is created once per process on first use and never evicted
package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// EmbedderFactory creates the embedder for a model
type EmbedderFactory func(ctx context.Context, model string) (Embedder, error)

// EmbedderRegistry holds one embedder per model name
type EmbedderRegistry struct {
	mu      sync.Mutex
	factory EmbedderFactory
	entries map[string]*registryEntry
}

type registryEntry struct {
	ready    chan struct{}
	embedder Embedder
	err      error
	refs     int
}

// NewEmbedderRegistry creates a registry that builds embedders with factory
func NewEmbedderRegistry(factory EmbedderFactory) *EmbedderRegistry {
	return &EmbedderRegistry{
		factory: factory,
		entries: make(map[string]*registryEntry),
	}
}

// OpenAIEmbedderFactory builds OpenAIEmbedders from a base config, overriding the model
func OpenAIEmbedderFactory(base *ClientConfig) EmbedderFactory {
	return func(_ context.Context, model string) (Embedder, error) {
		cfg := *base
		cfg.EmbeddingModel = model
		return NewOpenAIEmbedder(&cfg)
	}
}

// Acquire returns the embedder for model, creating it on first use.
// Callers must call release when done; a failed initialisation is retried on the next call.
func (r *EmbedderRegistry) Acquire(ctx context.Context, model string) (Embedder, func(), error) {
	r.mu.Lock()
	e, ok := r.entries[model]
	if !ok {
		e = &registryEntry{ready: make(chan struct{})}
		r.entries[model] = e
		r.mu.Unlock()

		emb, err := r.factory(ctx, model)

		r.mu.Lock()
		e.embedder, e.err = emb, err
		if err != nil {
			delete(r.entries, model)
		}
		close(e.ready)
	}
	r.mu.Unlock()

	select {
	case <-e.ready:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	if e.err != nil {
		return nil, nil, fmt.Errorf("initialising embedder %q: %w", model, e.err)
	}

	r.mu.Lock()
	e.refs++
	r.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			e.refs--
			r.mu.Unlock()
		})
	}
	return e.embedder, release, nil
}

// RefCount returns the number of outstanding acquisitions of model
func (r *EmbedderRegistry) RefCount(model string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[model]; ok {
		return e.refs
	}
	return 0
}

// Models returns the names of models that have an entry, sorted
func (r *EmbedderRegistry) Models() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
