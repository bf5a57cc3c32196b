package papersift

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gomlx/go-huggingface/hub"
)

// Files fetched from a sentence-transformers repository on the HuggingFace hub.
const (
	hubModelFile     = "onnx/model.onnx"
	hubTokenizerFile = "tokenizer.json"
)

// FetchModel downloads the ONNX export and tokenizer of a HuggingFace
// repository (e.g. "sentence-transformers/all-mpnet-base-v2") into cacheDir,
// reusing earlier downloads.
func FetchModel(repoID, cacheDir, token string) (modelPath, tokenizerPath string, err error) {
	if !strings.Contains(repoID, "/") {
		return "", "", fmt.Errorf("model %q is not a hub repository id", repoID)
	}
	repo := hub.New(repoID)
	if cacheDir != "" {
		repo = repo.WithCacheDir(filepath.Join(cacheDir, "hub"))
	}
	if token != "" {
		repo = repo.WithAuth(token)
	}
	paths, err := repo.DownloadFiles(hubModelFile, hubTokenizerFile)
	if err != nil {
		return "", "", fmt.Errorf("download %s: %w", repoID, err)
	}
	if len(paths) != 2 {
		return "", "", fmt.Errorf("download %s: got %d files", repoID, len(paths))
	}
	return paths[0], paths[1], nil
}

// resolveModelFiles fills in model and tokenizer paths from the hub when
// only a model id is configured.
func resolveModelFiles(cfg *EmbedderConfig) error {
	if cfg.ModelPath != "" && cfg.TokenizerPath != "" {
		return nil
	}
	model, tok, err := FetchModel(cfg.ModelID, cfg.CacheDir, cfg.HFToken)
	if err != nil {
		return err
	}
	if cfg.ModelPath == "" {
		cfg.ModelPath = model
	}
	if cfg.TokenizerPath == "" {
		cfg.TokenizerPath = tok
	}
	return nil
}
