// Package query runs the retrieval side: embed the question, search the
// vector index, rerank the candidates, and synthesize an answer.
package query

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/corpusd/corpusd/internal/index"
	"github.com/corpusd/corpusd/internal/rerank"
	"github.com/corpusd/corpusd/internal/synth"
)

// Embedder turns a batch of texts into vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Reranker re-scores candidate documents against a query.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]rerank.Result, error)
}

// Synthesizer produces the final answer from ordered context chunks.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, contextChunks []string) (string, error)
}

// Options control retrieval breadth and cutoffs.
type Options struct {
	// TopK is how many chunks feed the answer.
	TopK int
	// MaxDistance excludes matches beyond this cosine distance.
	MaxDistance float64
	// Overfetch multiplies TopK for the vector search so the reranker has a
	// wider candidate set to choose from.
	Overfetch int
}

func (o Options) withDefaults() Options {
	if o.TopK <= 0 {
		o.TopK = 3
	}
	if o.MaxDistance <= 0 {
		o.MaxDistance = 0.5
	}
	if o.Overfetch <= 0 {
		o.Overfetch = 3
	}
	return o
}

// Result is a fully answered question.
type Result struct {
	Answer string        `json:"answer"`
	Chunks []index.Match `json:"chunks"`
	// Reranked is false when the reranker failed and the vector-distance
	// order was used instead.
	Reranked bool `json:"reranked"`
}

// Service wires the retrieval pipeline together.
type Service struct {
	embedder Embedder
	idx      index.Index
	reranker Reranker
	synth    Synthesizer
	log      *slog.Logger
	opts     Options
}

func NewService(embedder Embedder, idx index.Index, reranker Reranker, synthesizer Synthesizer, log *slog.Logger, opts Options) *Service {
	return &Service{
		embedder: embedder,
		idx:      idx,
		reranker: reranker,
		synth:    synthesizer,
		log:      log,
		opts:     opts.withDefaults(),
	}
}

// Search embeds the question and returns the nearest chunks without
// synthesis, ordered by ascending distance.
func (s *Service) Search(ctx context.Context, question string, limit int) ([]index.Match, error) {
	if limit <= 0 {
		limit = s.opts.TopK * s.opts.Overfetch
	}
	vectors, err := s.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	matches, err := s.idx.Search(ctx, vectors[0], limit, s.opts.MaxDistance)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return matches, nil
}

// Answer runs the full pipeline: embed, search, rerank, synthesize. A rerank
// failure degrades to the vector-distance order instead of failing the query;
// a synthesis failure is returned as-is so callers can tell the backend being
// down apart from an insufficient-context answer.
func (s *Service) Answer(ctx context.Context, question string) (*Result, error) {
	matches, err := s.Search(ctx, question, s.opts.TopK*s.opts.Overfetch)
	if err != nil {
		return nil, err
	}

	if len(matches) == 0 {
		// No context. Synthesis short-circuits to the sentinel.
		answer, err := s.synth.Synthesize(ctx, question, nil)
		if err != nil {
			return nil, err
		}
		return &Result{Answer: answer, Chunks: []index.Match{}}, nil
	}

	ordered, reranked := s.rerankMatches(ctx, question, matches)
	if len(ordered) > s.opts.TopK {
		ordered = ordered[:s.opts.TopK]
	}

	texts := make([]string, len(ordered))
	for i, m := range ordered {
		texts[i] = m.Text
	}
	answer, err := s.synth.Synthesize(ctx, question, texts)
	if err != nil {
		return nil, err
	}

	if synth.IsInsufficient(answer) {
		answer = synth.InsufficientContext
	}
	return &Result{Answer: answer, Chunks: ordered, Reranked: reranked}, nil
}

// rerankMatches re-orders matches by cross-encoder relevance. On any rerank
// failure the original vector-distance order is kept.
func (s *Service) rerankMatches(ctx context.Context, question string, matches []index.Match) ([]index.Match, bool) {
	docs := make([]string, len(matches))
	for i, m := range matches {
		docs[i] = m.Text
	}
	results, err := s.reranker.Rerank(ctx, question, docs, len(docs))
	if err != nil {
		s.log.Warn("rerank failed, falling back to vector order", "error", err)
		return matches, false
	}
	ordered := make([]index.Match, 0, len(results))
	for _, r := range results {
		ordered = append(ordered, matches[r.Index])
	}
	if len(ordered) == 0 {
		return matches, false
	}
	return ordered, true
}
