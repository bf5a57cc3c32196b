package papersift

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"yashubustudio/papersift/selection"
)

// Embedding providers understood by NewEmbedder.
const (
	ProviderONNX    = "onnx"
	ProviderOpenAI  = "openai"
	ProviderHashing = "hashing"
)

// Vector cache backends understood by NewEmbedder.
const (
	CacheMemory = "memory"
	CacheFile   = "file"
	CacheSQLite = "sqlite"
	CacheNone   = "none"
)

// DefaultModelID is the sentence-transformer used when none is configured.
const DefaultModelID = "sentence-transformers/all-mpnet-base-v2"

// DefaultSeparator joins title and abstract before embedding.
const DefaultSeparator = " [SEP] "

// Paper is one row of a bibliographic export.
type Paper struct {
	ID       string `json:"id"`
	Row      int    `json:"row"`
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
	Text     string `json:"text"`
}

// OpenAIConfig configures the remote embeddings provider.
type OpenAIConfig struct {
	APIKey  string `json:"apiKey,omitempty" toml:"api_key"`
	BaseURL string `json:"baseUrl,omitempty" toml:"base_url"`
	Model   string `json:"model,omitempty" toml:"model"`
}

// EmbedderConfig selects and configures the embedding provider and its cache.
type EmbedderConfig struct {
	Provider      string       `json:"provider" toml:"provider"`
	OrtDLL        string       `json:"ortDll" toml:"ort_dll"`
	ModelPath     string       `json:"modelPath" toml:"model_path"`
	TokenizerPath string       `json:"tokenizerPath" toml:"tokenizer_path"`
	MaxSeqLen     int          `json:"maxSeqLen" toml:"max_seq_len"`
	ModelID       string       `json:"modelId" toml:"model_id"`
	CacheDir      string       `json:"cacheDir" toml:"cache_dir"`
	CacheBackend  string       `json:"cacheBackend" toml:"cache_backend"`
	CacheTTL      string       `json:"cacheTtl,omitempty" toml:"cache_ttl"`
	Dimension     int          `json:"dimension,omitempty" toml:"dimension"`
	HFToken       string       `json:"hfToken,omitempty" toml:"hf_token"`
	OpenAI        OpenAIConfig `json:"openai" toml:"openai"`
}

// ThresholdConfig names the default selection strategy.
// A non-nil Value overrides Method with a fixed cutoff.
type ThresholdConfig struct {
	Method string   `json:"method" toml:"method"`
	Value  *float64 `json:"value,omitempty" toml:"value,omitempty"`
}

// WebConfig holds settings for the HTTP front-end.
type WebConfig struct {
	Addr         string `json:"addr" toml:"addr"`
	MaxUploadMB  int    `json:"maxUploadMb" toml:"max_upload_mb"`
	SessionTTL   string `json:"sessionTtl" toml:"session_ttl"`
	HistogramBin int    `json:"histogramBins" toml:"histogram_bins"`
}

// Config aggregates runtime settings persisted to config.json or config.toml.
type Config struct {
	Embedder      EmbedderConfig   `json:"embedder" toml:"embedder"`
	Threshold     ThresholdConfig  `json:"threshold" toml:"threshold"`
	Columns       ColumnCandidates `json:"columns" toml:"columns"`
	Separator     string           `json:"separator" toml:"separator"`
	BatchSize     int              `json:"batchSize" toml:"batch_size"`
	MaxCandidates int              `json:"maxCandidates" toml:"max_candidates"`
	Web           WebConfig        `json:"web" toml:"web"`
}

// Clone creates a deep copy of the configuration so callers can mutate safely.
func (c Config) Clone() Config {
	buf, _ := json.Marshal(c)
	var out Config
	_ = json.Unmarshal(buf, &out)
	return out
}

// ApplyDefaults populates zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Embedder.Provider == "" {
		c.Embedder.Provider = ProviderONNX
	}
	if c.Embedder.MaxSeqLen == 0 {
		c.Embedder.MaxSeqLen = 384
	}
	if c.Embedder.ModelID == "" {
		c.Embedder.ModelID = DefaultModelID
	}
	if c.Embedder.CacheBackend == "" {
		if c.Embedder.CacheDir != "" {
			c.Embedder.CacheBackend = CacheFile
		} else {
			c.Embedder.CacheBackend = CacheMemory
		}
	}
	if c.Embedder.Dimension == 0 {
		c.Embedder.Dimension = 384
	}
	if c.Embedder.OpenAI.Model == "" {
		c.Embedder.OpenAI.Model = "text-embedding-3-small"
	}
	if c.Embedder.OpenAI.APIKey == "" {
		c.Embedder.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Embedder.HFToken == "" {
		c.Embedder.HFToken = os.Getenv("HF_TOKEN")
	}
	if c.Threshold.Method == "" {
		c.Threshold.Method = "auto"
	}
	c.Columns = c.Columns.withDefaults()
	if c.Separator == "" {
		c.Separator = DefaultSeparator
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = 50000
	}
	if c.Web.Addr == "" {
		c.Web.Addr = ":5000"
	}
	if c.Web.MaxUploadMB <= 0 {
		c.Web.MaxUploadMB = 100
	}
	if c.Web.SessionTTL == "" {
		c.Web.SessionTTL = "2h"
	}
	if c.Web.HistogramBin <= 0 {
		c.Web.HistogramBin = 50
	}
}

// ThresholdSpec converts the configured strategy into a selection.ThresholdSpec.
func (t ThresholdConfig) ThresholdSpec() (selection.ThresholdSpec, error) {
	if t.Value != nil {
		return selection.Fixed{Value: *t.Value}, nil
	}
	return selection.ParseThresholdSpec(t.Method)
}

// ResolveThresholdSpec picks the strategy from a method name and an optional
// numeric override, mirroring the command line and web form inputs.
func ResolveThresholdSpec(method, override string) (selection.ThresholdSpec, error) {
	override = strings.TrimSpace(override)
	if override != "" {
		v, err := strconv.ParseFloat(override, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: threshold %q is not a number", selection.ErrInvalidThresholdSpec, override)
		}
		return selection.Fixed{Value: v}, nil
	}
	return selection.ParseThresholdSpec(method)
}
