package papersift

import (
	"errors"
	"strings"
	"sync"
)

// EmbedderFactory builds an embedder for a configuration.
type EmbedderFactory func(cfg Config) (Embedder, error)

// EmbedderPool lazily creates one embedder per requested model and reuses it.
// Front-ends that let the caller pick a model share a pool instead of a
// process-wide embedder.
type EmbedderPool struct {
	base    Config
	factory EmbedderFactory

	mu        sync.Mutex
	embedders map[string]Embedder
}

// NewEmbedderPool creates a pool deriving per-model configs from base.
// A nil factory uses NewEmbedder.
func NewEmbedderPool(base Config, factory EmbedderFactory) *EmbedderPool {
	base.ApplyDefaults()
	if factory == nil {
		factory = NewEmbedder
	}
	return &EmbedderPool{base: base, factory: factory, embedders: make(map[string]Embedder)}
}

// DefaultModel returns the model used when callers do not name one.
func (p *EmbedderPool) DefaultModel() string {
	return p.modelFor("")
}

func (p *EmbedderPool) modelFor(model string) string {
	model = strings.TrimSpace(model)
	if model != "" {
		return model
	}
	if p.base.Embedder.Provider == ProviderOpenAI {
		return p.base.Embedder.OpenAI.Model
	}
	return p.base.Embedder.ModelID
}

// Get returns the embedder for model, creating it on first use.
func (p *EmbedderPool) Get(model string) (Embedder, error) {
	model = p.modelFor(model)
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.embedders[model]; ok {
		return e, nil
	}
	cfg := p.base.Clone()
	if model != p.DefaultModel() {
		switch cfg.Embedder.Provider {
		case ProviderOpenAI:
			cfg.Embedder.OpenAI.Model = model
		case ProviderONNX:
			cfg.Embedder.ModelID = model
			cfg.Embedder.ModelPath = ""
			cfg.Embedder.TokenizerPath = ""
		}
	}
	e, err := p.factory(cfg)
	if err != nil {
		return nil, err
	}
	p.embedders[model] = e
	return e, nil
}

// Close closes every embedder the pool created.
func (p *EmbedderPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for name, e := range p.embedders {
		errs = append(errs, e.Close())
		delete(p.embedders, name)
	}
	return errors.Join(errs...)
}
