package papersift

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"yashubustudio/papersift/selection"
)

// ProgressFunc reports how many papers have been embedded so far.
type ProgressFunc func(done, total int)

// Service embeds libraries against a reference and applies selection strategies.
type Service struct {
	embedder Embedder

	cfgMu sync.RWMutex
	cfg   Config

	logger *log.Logger
}

// NewService constructs a service with the given embedder and configuration.
func NewService(embedder Embedder, cfg Config, logger *log.Logger) (*Service, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	cfg.ApplyDefaults()
	return &Service{embedder: embedder, cfg: cfg, logger: logger}, nil
}

// Close releases embedder resources.
func (s *Service) Close() error {
	if s.embedder != nil {
		return s.embedder.Close()
	}
	return nil
}

// Config returns a copy of the current configuration.
func (s *Service) Config() Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg.Clone()
}

// UpdateConfig replaces the configuration.
func (s *Service) UpdateConfig(cfg Config) {
	cfg.ApplyDefaults()
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()
}

// ModelID identifies the embedding model in use.
func (s *Service) ModelID() string {
	return s.embedder.ModelID()
}

// Encoding holds the embeddings and similarity scores of one library against
// one reference. Selections with different strategies reuse it without
// re-encoding.
type Encoding struct {
	ModelID    string
	Reference  selection.Reference
	Candidates []selection.Candidate
	Scores     []float64
}

// Select applies spec to the cached scores.
func (e *Encoding) Select(spec selection.ThresholdSpec) (selection.Result, error) {
	return selection.Apply(e.Candidates, e.Scores, spec)
}

// Summary describes the score distribution without a cutoff.
func (e *Encoding) Summary() selection.Statistics {
	return selection.Summarize(e.Scores)
}

// Encode embeds reference and every paper, then scores each paper.
func (s *Service) Encode(ctx context.Context, reference string, papers []Paper, progress ProgressFunc) (*Encoding, error) {
	cfg := s.Config()
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrEmptyReference
	}
	if len(papers) > cfg.MaxCandidates {
		return nil, fmt.Errorf("%w: %d papers, limit %d", ErrTooManyCandidates, len(papers), cfg.MaxCandidates)
	}
	started := time.Now()
	refVec, err := s.embedder.EmbedText(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("embed reference: %w", err)
	}
	s.logf("Reference embedded (%d dimensions, model %s)", len(refVec), s.embedder.ModelID())

	candidates := make([]selection.Candidate, len(papers))
	for start := 0; start < len(papers); start += cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+cfg.BatchSize, len(papers))
		texts := make([]string, end-start)
		for i := start; i < end; i++ {
			texts[i-start] = papers[i].Text
		}
		vecs, err := s.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed papers %d-%d: %w", start+1, end, err)
		}
		for i, vec := range vecs {
			p := papers[start+i]
			candidates[start+i] = selection.Candidate{ID: p.ID, Text: p.Text, Vector: vec}
		}
		if progress != nil {
			progress(end, len(papers))
		}
	}
	ref := selection.Reference{Text: reference, Vector: refVec}
	scores, err := selection.ScoreCandidates(ref, candidates)
	if err != nil {
		return nil, fmt.Errorf("score papers: %w", err)
	}
	s.logf("Embedded and scored %d papers in %s", len(papers), time.Since(started).Round(time.Millisecond))
	return &Encoding{
		ModelID:    s.embedder.ModelID(),
		Reference:  ref,
		Candidates: candidates,
		Scores:     scores,
	}, nil
}

// Filter encodes papers and selects them with spec in one step.
func (s *Service) Filter(ctx context.Context, reference string, papers []Paper, spec selection.ThresholdSpec) (*Encoding, selection.Result, error) {
	enc, err := s.Encode(ctx, reference, papers, nil)
	if err != nil {
		return nil, selection.Result{}, err
	}
	res, err := enc.Select(spec)
	if err != nil {
		return enc, selection.Result{}, err
	}
	s.logf("Selected %d of %d papers (%s, cutoff %.4f)", len(res.Selected), len(papers), spec, res.Cutoff)
	return enc, res, nil
}

func (s *Service) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
