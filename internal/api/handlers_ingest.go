package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/corpusd/corpusd/internal/pipeline"
	"github.com/corpusd/corpusd/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ingestRequest struct {
	UserID    string `json:"user_id"`
	CorpusKey string `json:"corpus_key"`
	DocType   string `json:"doc_type"`
	DocName   string `json:"doc_name"`
	SourceURL string `json:"source_url"`
	// Text is pre-extracted plain text. When set, extraction is skipped.
	Text string `json:"text"`
	// Content is a base64 payload for the extractor when Text is empty.
	Content string `json:"content"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	req.UserID = strings.TrimSpace(req.UserID)
	req.DocType = strings.TrimSpace(req.DocType)
	req.DocName = strings.TrimSpace(req.DocName)
	if req.UserID == "" {
		jsonError(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if req.DocType == "" || req.DocName == "" {
		jsonError(w, "doc_type and doc_name are required", http.StatusBadRequest)
		return
	}
	if req.CorpusKey == "" {
		req.CorpusKey = "default"
	}
	if req.Text == "" && req.Content == "" {
		jsonError(w, "text or content is required", http.StatusBadRequest)
		return
	}

	var data []byte
	if req.Text == "" {
		decoded, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			jsonError(w, "content must be base64: "+err.Error(), http.StatusBadRequest)
			return
		}
		data = decoded
	}

	now := time.Now()
	job := &pipeline.Job{
		ID:         uuid.NewString(),
		DocumentID: store.DocumentID(req.DocType, req.DocName),
		UserID:     req.UserID,
		CorpusKey:  req.CorpusKey,
		DocType:    req.DocType,
		DocName:    req.DocName,
		SourceURL:  req.SourceURL,
		Status:     pipeline.StatusQueued,
		Stage:      pipeline.StageQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if req.Text != "" {
		job.SetText(req.Text)
	} else {
		job.SetData(data)
	}

	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":      job.ID,
		"document_id": job.DocumentID,
		"status":      job.Status,
		"poll_url":    fmt.Sprintf("/api/ingest/%s/status", job.ID),
	})
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":      snap.ID,
		"document_id": snap.DocumentID,
		"status":      snap.Status,
		"stage":       snap.Stage,
		"progress":    snap.Progress,
	})
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
