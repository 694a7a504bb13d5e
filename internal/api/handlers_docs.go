package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/corpusd/corpusd/internal/store"
	"github.com/go-chi/chi/v5"
)

// handleGetDocument returns a stored document with its tags.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	doc, err := s.docs.GetDocument(r.Context(), docID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, "document not found", http.StatusNotFound)
			return
		}
		s.log.Error("document lookup failed", "document_id", docID, "error", err)
		jsonError(w, "document lookup failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

// handleDeleteDocument removes a document and all of its indexed chunks.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	ctx := r.Context()

	chunksDeleted, err := s.idx.DeleteDocument(ctx, docID)
	if err != nil {
		s.log.Error("chunk delete failed", "document_id", docID, "error", err)
		jsonError(w, "failed to delete document chunks", http.StatusInternalServerError)
		return
	}

	if err := s.docs.DeleteDocument(ctx, docID); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.log.Error("document delete failed", "document_id", docID, "error", err)
		jsonError(w, "failed to delete document", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"document_id":    docID,
		"chunks_deleted": chunksDeleted,
	})
}
