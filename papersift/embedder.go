package papersift

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"yashubustudio/papersift/emb"
)

// Embedder exposes the minimal surface required by the service layer.
// Implementations must return vectors of one fixed dimensionality and the
// same vector for the same text.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Close() error
	ModelID() string
}

// OrtEmbedder is a thin wrapper over emb.Encoder.
type OrtEmbedder struct {
	mu        sync.Mutex
	enc       *emb.Encoder
	cfg       EmbedderConfig
	batchSize int
}

// NewOrtEmbedder initializes the ONNX encoder.
func NewOrtEmbedder(cfg EmbedderConfig, batchSize int) (*OrtEmbedder, error) {
	if cfg.ModelID == "" && cfg.ModelPath != "" {
		cfg.ModelID = filepath.Base(cfg.ModelPath)
	}
	if batchSize <= 0 {
		batchSize = 32
	}
	encoder := &emb.Encoder{}
	if err := encoder.Init(emb.Config{
		OrtDLL:        cfg.OrtDLL,
		ModelPath:     cfg.ModelPath,
		TokenizerPath: cfg.TokenizerPath,
		MaxSeqLen:     cfg.MaxSeqLen,
	}); err != nil {
		return nil, err
	}
	return &OrtEmbedder{enc: encoder, cfg: cfg, batchSize: batchSize}, nil
}

// Close releases ORT resources.
func (o *OrtEmbedder) Close() error {
	if o == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.enc != nil {
		o.enc.Close()
		o.enc = nil
	}
	return nil
}

// ModelID returns the identifier used for cache keys.
func (o *OrtEmbedder) ModelID() string {
	return o.cfg.ModelID
}

// EmbedText embeds a single string.
func (o *OrtEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := o.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedTexts embeds texts in batches, checking ctx between batches.
func (o *OrtEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	o.mu.Lock()
	enc := o.enc
	o.mu.Unlock()
	if enc == nil {
		return nil, errors.New("embedder is not initialized")
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += o.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+o.batchSize, len(texts))
		vecs, err := enc.EncodeBatch(NormalizeAll(texts[start:end]))
		if err != nil {
			return nil, fmt.Errorf("encode batch %d-%d: %w", start, end, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// NewEmbedder builds the configured provider wrapped in the configured cache.
func NewEmbedder(cfg Config) (Embedder, error) {
	cfg.ApplyDefaults()
	var (
		base Embedder
		err  error
	)
	switch cfg.Embedder.Provider {
	case ProviderONNX:
		if err := resolveModelFiles(&cfg.Embedder); err != nil {
			return nil, fmt.Errorf("resolve model files: %w", err)
		}
		base, err = NewOrtEmbedder(cfg.Embedder, cfg.BatchSize)
	case ProviderOpenAI:
		base, err = NewOpenAIEmbedder(cfg.Embedder.OpenAI, cfg.BatchSize)
	case ProviderHashing:
		base = NewHashEmbedder(cfg.Embedder.Dimension)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedder.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s embedder: %w", cfg.Embedder.Provider, err)
	}
	var ttl time.Duration
	if cfg.Embedder.CacheTTL != "" {
		if ttl, err = time.ParseDuration(cfg.Embedder.CacheTTL); err != nil {
			_ = base.Close()
			return nil, fmt.Errorf("parse embedder.cacheTtl: %w", err)
		}
	}
	cache, err := NewVectorCache(cfg.Embedder.CacheBackend, cfg.Embedder.CacheDir, ttl)
	if err != nil {
		_ = base.Close()
		return nil, err
	}
	if cache == nil {
		return base, nil
	}
	return NewCachedEmbedder(base, cache), nil
}
