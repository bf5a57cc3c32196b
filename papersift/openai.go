package papersift

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIEmbedder embeds texts through an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client    openai.Client
	modelName string
	batchSize int
}

// NewOpenAIEmbedder creates a client for cfg.
func NewOpenAIEmbedder(cfg OpenAIConfig, batchSize int) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.New("openai api key is required (set OPENAI_API_KEY)")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if batchSize <= 0 {
		batchSize = 32
	}
	return &OpenAIEmbedder{
		client:    openai.NewClient(opts...),
		modelName: cfg.Model,
		batchSize: batchSize,
	}, nil
}

// ModelID returns the remote model name.
func (m *OpenAIEmbedder) ModelID() string { return "openai:" + m.modelName }

// Close is a no-op; the HTTP client holds no resources.
func (m *OpenAIEmbedder) Close() error { return nil }

// EmbedText embeds a single text.
func (m *OpenAIEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedTexts embeds texts in request-sized batches.
func (m *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += m.batchSize {
		end := min(start+m.batchSize, len(texts))
		vecs, err := m.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (m *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	inputs := make([]string, len(texts))
	for i, t := range texts {
		t = NormalizeText(t)
		// The endpoint rejects empty strings.
		if strings.TrimSpace(t) == "" {
			t = " "
		}
		inputs[i] = t
	}
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: inputs,
		},
		Model: openai.EmbeddingModel(m.modelName),
	}
	response, err := m.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(response.Data) != len(texts) {
		return nil, fmt.Errorf("create embeddings: got %d vectors for %d texts", len(response.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for i, item := range response.Data {
		idx := int(item.Index)
		if idx < 0 || idx >= len(out) {
			idx = i
		}
		vec := make([]float32, len(item.Embedding))
		for j, val := range item.Embedding {
			vec[j] = float32(val)
		}
		out[idx] = vec
	}
	return out, nil
}
