package papersift

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedderPoolReusesPerModel(t *testing.T) {
	var built []string
	pool := NewEmbedderPool(Config{}, func(cfg Config) (Embedder, error) {
		built = append(built, cfg.Embedder.ModelID)
		return NewHashEmbedder(16), nil
	})
	t.Cleanup(func() { pool.Close() })

	a, err := pool.Get("")
	require.NoError(t, err)
	b, err := pool.Get(DefaultModelID)
	require.NoError(t, err)
	assert.Same(t, a, b)

	c, err := pool.Get("sentence-transformers/all-MiniLM-L6-v2")
	require.NoError(t, err)
	assert.NotSame(t, a, c)
	assert.Equal(t, []string{DefaultModelID, "sentence-transformers/all-MiniLM-L6-v2"}, built)
}

func TestEmbedderPoolOpenAIModel(t *testing.T) {
	var models []string
	pool := NewEmbedderPool(Config{Embedder: EmbedderConfig{Provider: ProviderOpenAI}}, func(cfg Config) (Embedder, error) {
		models = append(models, cfg.Embedder.OpenAI.Model)
		return NewHashEmbedder(8), nil
	})
	assert.Equal(t, "text-embedding-3-small", pool.DefaultModel())
	_, err := pool.Get("text-embedding-3-large")
	require.NoError(t, err)
	assert.Equal(t, []string{"text-embedding-3-large"}, models)
}

func TestEmbedderPoolFactoryError(t *testing.T) {
	pool := NewEmbedderPool(Config{}, func(Config) (Embedder, error) {
		return nil, errors.New("no model files")
	})
	_, err := pool.Get("")
	assert.ErrorContains(t, err, "no model files")
	assert.NoError(t, pool.Close())
}

func TestNewEmbedderHashingWithCache(t *testing.T) {
	e, err := NewEmbedder(Config{Embedder: EmbedderConfig{
		Provider:     ProviderHashing,
		Dimension:    32,
		CacheBackend: CacheSQLite,
		CacheDir:     t.TempDir(),
	}})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	assert.IsType(t, &CachedEmbedder{}, e)
	assert.Equal(t, "hashing-32", e.ModelID())

	_, err = NewEmbedder(Config{Embedder: EmbedderConfig{Provider: "word2vec"}})
	assert.ErrorContains(t, err, "unknown embedding provider")
}

func TestNewEmbedderCacheTTL(t *testing.T) {
	e, err := NewEmbedder(Config{Embedder: EmbedderConfig{Provider: ProviderHashing, CacheTTL: "30m"}})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	assert.IsType(t, &CachedEmbedder{}, e)

	_, err = NewEmbedder(Config{Embedder: EmbedderConfig{Provider: ProviderHashing, CacheTTL: "soon"}})
	assert.ErrorContains(t, err, "cacheTtl")
}
