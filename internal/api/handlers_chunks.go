package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/corpusd/corpusd/internal/index"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleGetChunk(w http.ResponseWriter, r *http.Request) {
	id, ok := chunkID(w, r)
	if !ok {
		return
	}
	chunk, err := s.idx.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			jsonError(w, "chunk not found", http.StatusNotFound)
			return
		}
		s.log.Error("chunk lookup failed", "chunk_id", id, "error", err)
		jsonError(w, "chunk lookup failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chunk)
}

type updateChunkRequest struct {
	Text      *string        `json:"chunk_text"`
	Embedding []float32      `json:"embedding"`
	Metadata  map[string]any `json:"meta_data"`
}

// handleUpdateChunk replaces chunk text and its vector together. Text without
// a matching vector is rejected so stored text and embedding never diverge.
func (s *Server) handleUpdateChunk(w http.ResponseWriter, r *http.Request) {
	id, ok := chunkID(w, r)
	if !ok {
		return
	}

	var req updateChunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Text == nil || len(req.Embedding) == 0 {
		jsonError(w, "chunk_text and embedding must be updated together", http.StatusBadRequest)
		return
	}

	chunk, err := s.idx.Update(r.Context(), id, *req.Text, req.Embedding, req.Metadata)
	if err != nil {
		switch {
		case errors.Is(err, index.ErrNotFound):
			jsonError(w, "chunk not found", http.StatusNotFound)
		case errors.Is(err, index.ErrTextWithoutVector):
			jsonError(w, "chunk_text and embedding must be updated together", http.StatusBadRequest)
		default:
			s.log.Error("chunk update failed", "chunk_id", id, "error", err)
			jsonError(w, "chunk update failed", http.StatusInternalServerError)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chunk)
}

func (s *Server) handleDeleteChunk(w http.ResponseWriter, r *http.Request) {
	id, ok := chunkID(w, r)
	if !ok {
		return
	}
	if err := s.idx.Delete(r.Context(), id); err != nil {
		if errors.Is(err, index.ErrNotFound) {
			jsonError(w, "chunk not found", http.StatusNotFound)
			return
		}
		s.log.Error("chunk delete failed", "chunk_id", id, "error", err)
		jsonError(w, "chunk delete failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"deleted": id})
}

func chunkID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "chunkID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		jsonError(w, "invalid chunk id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
