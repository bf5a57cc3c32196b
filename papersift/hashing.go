package papersift

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"
	"unicode"

	"yashubustudio/papersift/emb"
)

// HashEmbedder is a deterministic bag-of-words embedder: every lower-cased
// word is hashed into one of dimension buckets and the counts are
// L2-normalized. It needs no model files, which makes it useful offline and in tests.
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder creates a HashEmbedder; non-positive dimensions fall back to 384.
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = 384
	}
	return &HashEmbedder{dimension: dimension}
}

func (h *HashEmbedder) ModelID() string { return "hashing-" + strconv.Itoa(h.dimension) }

func (h *HashEmbedder) Close() error { return nil }

func (h *HashEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	return h.embed(text), nil
}

func (h *HashEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.embed(t)
	}
	return out, nil
}

func (h *HashEmbedder) embed(text string) []float32 {
	vec := make([]float32, h.dimension)
	for _, word := range words(NormalizeText(text)) {
		f := fnv.New32a()
		_, _ = f.Write([]byte(word))
		vec[int(f.Sum32()%uint32(h.dimension))]++
	}
	return emb.Normalize(vec)
}

func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
