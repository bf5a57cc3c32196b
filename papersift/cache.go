package papersift

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// VectorCache stores embeddings by key.
type VectorCache interface {
	Get(key string) ([]float32, bool)
	Put(key string, vec []float32) error
	Close() error
}

// NewVectorCache opens the named backend. CacheNone returns a nil cache.
// ttl bounds the lifetime of memory entries; zero keeps them until Close.
func NewVectorCache(backend, dir string, ttl time.Duration) (VectorCache, error) {
	switch backend {
	case "", CacheMemory:
		return NewMemoryCache(ttl), nil
	case CacheNone:
		return nil, nil
	case CacheFile:
		if dir == "" {
			return nil, errors.New("file cache requires embedder.cacheDir")
		}
		return NewDiskCache(dir)
	case CacheSQLite:
		if dir == "" {
			return nil, errors.New("sqlite cache requires embedder.cacheDir")
		}
		return OpenSQLiteCache(filepath.Join(dir, "embeddings.db"))
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}

// CacheKey derives the cache key for text under modelID.
func CacheKey(modelID, text string) string {
	h := sha1.New()
	_, _ = io.WriteString(h, modelID)
	_, _ = io.WriteString(h, "|")
	_, _ = io.WriteString(h, text)
	return hex.EncodeToString(h.Sum(nil))
}

// frontTTL bounds the memory layer kept in front of file and sqlite backends.
const frontTTL = 10 * time.Minute

// CachedEmbedder serves repeated texts from a VectorCache. File and sqlite
// backends get a short-lived memory layer in front of them.
type CachedEmbedder struct {
	base  Embedder
	store VectorCache
	front *MemoryCache
}

// NewCachedEmbedder wraps base with store.
func NewCachedEmbedder(base Embedder, store VectorCache) *CachedEmbedder {
	c := &CachedEmbedder{base: base, store: store}
	if _, inMemory := store.(*MemoryCache); store != nil && !inMemory {
		c.front = NewMemoryCache(frontTTL)
	}
	return c
}

// ModelID returns the wrapped provider's model identifier.
func (c *CachedEmbedder) ModelID() string { return c.base.ModelID() }

// Close closes the cache and the wrapped provider.
func (c *CachedEmbedder) Close() error {
	var errs []error
	if c.front != nil {
		errs = append(errs, c.front.Close())
	}
	if c.store != nil {
		errs = append(errs, c.store.Close())
	}
	errs = append(errs, c.base.Close())
	return errors.Join(errs...)
}

// EmbedText embeds one text, consulting the cache first.
func (c *CachedEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedTexts embeds only the texts missing from the cache, in one call to the provider.
func (c *CachedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	missing := make(map[string][]int)
	var order []string
	for i, t := range texts {
		key := CacheKey(c.base.ModelID(), NormalizeText(t))
		if vec, ok := c.lookup(key); ok {
			out[i] = vec
			continue
		}
		if _, seen := missing[key]; !seen {
			order = append(order, t)
		}
		missing[key] = append(missing[key], i)
	}
	if len(order) == 0 {
		return out, nil
	}
	vecs, err := c.base.EmbedTexts(ctx, order)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(order) {
		return nil, fmt.Errorf("provider returned %d vectors for %d texts", len(vecs), len(order))
	}
	for j, t := range order {
		key := CacheKey(c.base.ModelID(), NormalizeText(t))
		c.remember(key, vecs[j])
		for _, i := range missing[key] {
			out[i] = cloneVector(vecs[j])
		}
	}
	return out, nil
}

func (c *CachedEmbedder) lookup(key string) ([]float32, bool) {
	if c.front != nil {
		if vec, ok := c.front.Get(key); ok {
			return vec, true
		}
	}
	if c.store == nil {
		return nil, false
	}
	vec, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	if c.front != nil {
		_ = c.front.Put(key, vec)
	}
	return vec, true
}

func (c *CachedEmbedder) remember(key string, vec []float32) {
	if c.front != nil {
		_ = c.front.Put(key, vec)
	}
	if c.store != nil {
		_ = c.store.Put(key, vec)
	}
}

// MemoryCache keeps vectors in process memory, optionally expiring them.
type MemoryCache struct {
	items *gocache.Cache
}

// NewMemoryCache creates an empty in-memory cache. Entries live for ttl after
// their last write; a zero ttl never expires them.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		return &MemoryCache{items: gocache.New(gocache.NoExpiration, 0)}
	}
	return &MemoryCache{items: gocache.New(ttl, ttl)}
}

func (m *MemoryCache) Get(key string) ([]float32, bool) {
	v, ok := m.items.Get(key)
	if !ok {
		return nil, false
	}
	return cloneVector(v.([]float32)), true
}

func (m *MemoryCache) Put(key string, vec []float32) error {
	m.items.SetDefault(key, cloneVector(vec))
	return nil
}

// Len returns the number of entries, including expired ones not yet swept.
func (m *MemoryCache) Len() int { return m.items.ItemCount() }

func (m *MemoryCache) Close() error {
	m.items.Flush()
	return nil
}

// DiskCache stores one little-endian .bin file per vector: a uint32 length
// followed by float32 components.
type DiskCache struct {
	dir string
}

// NewDiskCache prepares dir for vector files.
func NewDiskCache(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &DiskCache{dir: dir}, nil
}

func (d *DiskCache) Get(key string) ([]float32, bool) {
	vec, err := d.load(key)
	if err != nil {
		return nil, false
	}
	return vec, true
}

func (d *DiskCache) load(key string) ([]float32, error) {
	path := filepath.Join(d.dir, key+".bin")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeVector(data)
}

func (d *DiskCache) Put(key string, vec []float32) error {
	path := filepath.Join(d.dir, key+".bin")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, encodeVector(vec), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (d *DiskCache) Close() error { return nil }

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4+len(vec)*4)
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(vec)))
	off := 4
	for _, v := range vec {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) < 4 {
		return nil, errors.New("cached vector too small")
	}
	length := int(binary.LittleEndian.Uint32(data[:4]))
	data = data[4:]
	if len(data) != length*4 {
		return nil, fmt.Errorf("cached vector length mismatch: want %d floats, have %d bytes", length, len(data))
	}
	vec := make([]float32, length)
	for i := 0; i < length; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4 : (i+1)*4]))
	}
	return vec, nil
}

func cloneVector(vec []float32) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)
	return out
}
