package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/corpusd/corpusd/internal/chunker"
	"github.com/corpusd/corpusd/internal/synth"
)

type searchRequest struct {
	Question string `json:"question"`
	Limit    int    `json:"limit"`
}

// handleSearch returns nearest chunks without answer synthesis.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		jsonError(w, "question is required", http.StatusBadRequest)
		return
	}

	matches, err := s.query.Search(r.Context(), req.Question, req.Limit)
	if err != nil {
		s.log.Error("search failed", "error", err)
		jsonError(w, "search failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"results": matches})
}

// handleAnswer runs the full retrieval pipeline and synthesizes an answer. A
// generative backend outage maps to 502; an insufficient-context answer is a
// normal 200 with the sentinel text.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		jsonError(w, "question is required", http.StatusBadRequest)
		return
	}

	result, err := s.query.Answer(r.Context(), req.Question)
	if err != nil {
		if errors.Is(err, synth.ErrUnavailable) {
			s.log.Error("synthesis backend unavailable", "error", err)
			jsonError(w, "answer backend unavailable", http.StatusBadGateway)
			return
		}
		s.log.Error("answer failed", "error", err)
		jsonError(w, "answer failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"results":  []string{result.Answer},
		"chunks":   result.Chunks,
		"reranked": result.Reranked,
	})
}

type chunkingRequest struct {
	Text    string `json:"text"`
	Size    int    `json:"size"`
	Overlap int    `json:"overlap"`
	Unit    string `json:"unit"`
	// Delegated selects model-driven chunking instead of the fixed window.
	Delegated bool `json:"delegated"`
}

// handleChunking exposes the chunker directly, for inspection and tuning.
func (s *Server) handleChunking(w http.ResponseWriter, r *http.Request) {
	var req chunkingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	var chunks []chunker.Chunk
	var err error
	if req.Delegated {
		chunks, err = s.delegated.Chunk(r.Context(), req.Text)
		var ferr *chunker.FormatError
		if errors.As(err, &ferr) {
			jsonError(w, "model returned malformed chunking: "+ferr.Error(), http.StatusBadGateway)
			return
		}
	} else {
		policy := chunker.FixedPolicy{
			Size:    req.Size,
			Overlap: req.Overlap,
			Unit:    chunker.UnitChars,
		}
		if req.Unit == "words" {
			policy.Unit = chunker.UnitWords
		}
		if policy.Size <= 0 {
			policy.Size = s.cfg.ChunkSize
			policy.Overlap = s.cfg.ChunkOverlap
		}
		chunks, err = chunker.FixedWindow(req.Text, policy)
	}
	if err != nil {
		if errors.Is(err, chunker.ErrEmptyInput) || errors.Is(err, chunker.ErrInvalidConfig) {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.log.Error("chunking failed", "error", err)
		jsonError(w, "chunking failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"chunks": chunks})
}

type embeddingRequest struct {
	Texts []string `json:"texts"`
}

// handleEmbedding embeds a batch of texts, preserving input order.
func (s *Server) handleEmbedding(w http.ResponseWriter, r *http.Request) {
	var req embeddingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Texts) == 0 {
		jsonError(w, "texts is required", http.StatusBadRequest)
		return
	}

	vectors, err := s.embedder.Embed(r.Context(), req.Texts)
	if err != nil {
		s.log.Error("embedding failed", "error", err)
		jsonError(w, "embedding failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"embeddings": vectors})
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopK      int      `json:"top_k"`
}

// handleRerank scores documents against a query.
func (s *Server) handleRerank(w http.ResponseWriter, r *http.Request) {
	var req rerankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		jsonError(w, "query is required", http.StatusBadRequest)
		return
	}
	if req.TopK <= 0 {
		req.TopK = s.cfg.RerankTopK
	}

	results, err := s.reranker.Rerank(r.Context(), req.Query, req.Documents, req.TopK)
	if err != nil {
		s.log.Error("rerank failed", "error", err)
		jsonError(w, "rerank failed", http.StatusBadGateway)
		return
	}

	out := make([]map[string]any, 0, len(results))
	for _, res := range results {
		out = append(out, map[string]any{
			"index":           res.Index,
			"document":        res.Document,
			"relevance_score": res.Score,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"results": out})
}
