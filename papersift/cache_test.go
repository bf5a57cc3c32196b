package papersift

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKeyDependsOnModel(t *testing.T) {
	assert.Equal(t, CacheKey("m", "text"), CacheKey("m", "text"))
	assert.NotEqual(t, CacheKey("m1", "text"), CacheKey("m2", "text"))
	assert.Len(t, CacheKey("m", "text"), 40)
}

func TestVectorCacheBackends(t *testing.T) {
	dir := t.TempDir()
	backends := map[string]func() (VectorCache, error){
		"memory": func() (VectorCache, error) { return NewMemoryCache(0), nil },
		"file":   func() (VectorCache, error) { return NewDiskCache(filepath.Join(dir, "bins")) },
		"sqlite": func() (VectorCache, error) { return OpenSQLiteCache(filepath.Join(dir, "db", "cache.db")) },
	}
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			cache, err := open()
			require.NoError(t, err)
			t.Cleanup(func() { cache.Close() })

			_, ok := cache.Get("absent")
			assert.False(t, ok)

			vec := []float32{0.25, -1.5, 3}
			require.NoError(t, cache.Put("k", vec))
			got, ok := cache.Get("k")
			require.True(t, ok)
			assert.Equal(t, vec, got)

			got[0] = 99
			again, _ := cache.Get("k")
			assert.Equal(t, float32(0.25), again[0])

			require.NoError(t, cache.Put("k", []float32{1}))
			replaced, _ := cache.Get("k")
			assert.Equal(t, []float32{1}, replaced)
		})
	}
}

func TestDiskCacheRejectsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewDiskCache(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.bin"), []byte{1, 0}, 0o644))
	_, ok := cache.Get("bad")
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "short.bin"), []byte{2, 0, 0, 0, 1, 2, 3, 4}, 0o644))
	_, ok = cache.Get("short")
	assert.False(t, ok)
}

func TestSQLiteCacheLen(t *testing.T) {
	cache, err := OpenSQLiteCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	require.NoError(t, cache.Put("a", []float32{1}))
	require.NoError(t, cache.Put("b", []float32{2}))
	n, err := cache.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCachedEmbedderSkipsKnownTexts(t *testing.T) {
	ctx := context.Background()
	base := newCountingEmbedder()
	cached := NewCachedEmbedder(base, NewMemoryCache(0))

	first, err := cached.EmbedTexts(ctx, []string{"alpha beta", "gamma", "alpha beta"})
	require.NoError(t, err)
	assert.Equal(t, 2, base.count(), "duplicates are embedded once")
	assert.Equal(t, first[0], first[2])

	second, err := cached.EmbedTexts(ctx, []string{"gamma", " alpha beta ", "delta"})
	require.NoError(t, err)
	assert.Equal(t, 3, base.count(), "only the new text reaches the provider")
	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[1])

	vec, err := cached.EmbedText(ctx, "delta")
	require.NoError(t, err)
	assert.Equal(t, second[2], vec)
	assert.Equal(t, 3, base.count())
	assert.Equal(t, base.ModelID(), cached.ModelID())
}

func TestCachedEmbedderPersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	store, err := OpenSQLiteCache(path)
	require.NoError(t, err)
	first := NewCachedEmbedder(newCountingEmbedder(), store)
	want, err := first.EmbedText(ctx, "persisted text")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	store, err = OpenSQLiteCache(path)
	require.NoError(t, err)
	base := newCountingEmbedder()
	second := NewCachedEmbedder(base, store)
	t.Cleanup(func() { second.Close() })
	got, err := second.EmbedText(ctx, "persisted text")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 0, base.count())
}

func TestNewVectorCache(t *testing.T) {
	c, err := NewVectorCache(CacheNone, "", 0)
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = NewVectorCache(CacheFile, "", 0)
	assert.Error(t, err)

	_, err = NewVectorCache("redis", "", 0)
	assert.ErrorContains(t, err, "unknown cache backend")

	c, err = NewVectorCache(CacheSQLite, t.TempDir(), 0)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteCache{}, c)
	require.NoError(t, c.Close())
}

func TestMemoryCacheExpiresEntries(t *testing.T) {
	cache := NewMemoryCache(20 * time.Millisecond)
	t.Cleanup(func() { cache.Close() })
	require.NoError(t, cache.Put("k", []float32{1, 2}))
	_, ok := cache.Get("k")
	require.True(t, ok)
	assert.Eventually(t, func() bool {
		_, ok := cache.Get("k")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestCachedEmbedderMemoryLayer(t *testing.T) {
	ctx := context.Background()

	mem := NewMemoryCache(0)
	inMemory := NewCachedEmbedder(newCountingEmbedder(), mem)
	assert.Nil(t, inMemory.front, "memory store is not duplicated")
	_, err := inMemory.EmbedTexts(ctx, []string{"one", "two", "one"})
	require.NoError(t, err)
	assert.Equal(t, 2, mem.Len())

	store, err := OpenSQLiteCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	onDisk := NewCachedEmbedder(newCountingEmbedder(), store)
	t.Cleanup(func() { onDisk.Close() })
	require.NotNil(t, onDisk.front)
	_, err = onDisk.EmbedText(ctx, "three")
	require.NoError(t, err)
	assert.Equal(t, 1, onDisk.front.Len())

	uncached := NewCachedEmbedder(newCountingEmbedder(), nil)
	assert.Nil(t, uncached.front)
}
