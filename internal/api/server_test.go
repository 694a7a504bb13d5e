package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/corpusd/corpusd/internal/chunker"
	"github.com/corpusd/corpusd/internal/config"
	"github.com/corpusd/corpusd/internal/index"
	"github.com/corpusd/corpusd/internal/llm"
	"github.com/corpusd/corpusd/internal/pipeline"
	"github.com/corpusd/corpusd/internal/query"
	"github.com/corpusd/corpusd/internal/rerank"
	"github.com/corpusd/corpusd/internal/store"
	"github.com/corpusd/corpusd/internal/synth"
	"github.com/corpusd/corpusd/internal/tagging"
)

type fakeEmbedder struct{}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type fakeReranker struct{}

func (f *fakeReranker) Rerank(_ context.Context, _ string, _ []string, _ int) ([]rerank.Result, error) {
	return nil, errors.New("rerank unavailable")
}

type fakeCompleter struct {
	response string
	err      error
}

func (f *fakeCompleter) Complete(_ context.Context, _, _ string) (string, error) {
	return f.response, f.err
}

type fakeTagger struct{}

func (f *fakeTagger) Tag(_ context.Context, _ string) (*tagging.Tags, error) {
	return &tagging.Tags{}, nil
}

const testAPIKey = "test-secret"

func newTestServer(t *testing.T, completer *fakeCompleter) (*Server, *index.Memory) {
	t.Helper()

	cfg := config.Config{
		APIKey:         testAPIKey,
		MaxQueueSize:   10,
		MaxUploadBytes: 1 << 20,
		ChunkSize:      2,
		ChunkOverlap:   0,
		ChunkUnit:      "words",
		RerankTopK:     3,
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	idx := index.NewMemory()
	docs := store.NewMemory()
	embedder := &fakeEmbedder{}
	reranker := &fakeReranker{}

	orch := pipeline.NewOrchestrator(cfg, pipeline.Deps{
		Tagger:   &fakeTagger{},
		Embedder: embedder,
		Store:    docs,
		Index:    idx,
	}, log)

	qs := query.NewService(embedder, idx, reranker, synth.New(completer, 0), log, query.Options{TopK: 3, MaxDistance: 0.5})
	llmClient := llm.NewClient("http://127.0.0.1:0", "k", "test-model")

	return NewServer(orch, qs, embedder, reranker, chunker.NewDelegated(completer), llmClient, idx, docs, log, cfg), idx
}

func doRequest(srv *Server, method, path, body string, authed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if authed {
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	srv, _ := newTestServer(t, &fakeCompleter{})
	rec := doRequest(srv, http.MethodGet, "/health", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t, &fakeCompleter{})

	rec := doRequest(srv, http.MethodPost, "/api/search", `{"question":"q"}`, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON error body, got content type %q", ct)
	}
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil || errResp.Error == "" {
		t.Fatalf("expected error field in body %q: %v", rec.Body.String(), err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"question":"q"}`))
	req.Header.Set("Authorization", "Bearer wrong-key")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong key, got %d", rec.Code)
	}
}

func TestIngestValidation(t *testing.T) {
	srv, _ := newTestServer(t, &fakeCompleter{})

	cases := []struct {
		name string
		body string
	}{
		{"missing user", `{"doc_type":"txt","doc_name":"a","text":"hi"}`},
		{"missing doc identity", `{"user_id":"u1","text":"hi"}`},
		{"missing payload", `{"user_id":"u1","doc_type":"txt","doc_name":"a"}`},
		{"bad base64", `{"user_id":"u1","doc_type":"txt","doc_name":"a","content":"!!!"}`},
	}
	for _, tc := range cases {
		rec := doRequest(srv, http.MethodPost, "/api/ingest", tc.body, true)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, rec.Code)
		}
	}
}

func TestIngestAcceptedAndStatusPollable(t *testing.T) {
	srv, _ := newTestServer(t, &fakeCompleter{})

	rec := doRequest(srv, http.MethodPost, "/api/ingest",
		`{"user_id":"u1","doc_type":"txt","doc_name":"a.txt","text":"Alpha beta gamma"}`, true)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		JobID      string `json:"job_id"`
		DocumentID string `json:"document_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.JobID == "" {
		t.Fatal("expected job id")
	}
	if resp.DocumentID != "txt|a.txt" {
		t.Fatalf("expected deterministic document id, got %q", resp.DocumentID)
	}

	rec = doRequest(srv, http.MethodGet, "/api/ingest/"+resp.JobID+"/status", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 status poll, got %d", rec.Code)
	}

	rec = doRequest(srv, http.MethodGet, "/api/ingest/unknown/status", "", true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown job, got %d", rec.Code)
	}
}

func TestSearchReturnsSeededChunks(t *testing.T) {
	srv, idx := newTestServer(t, &fakeCompleter{})
	_, err := idx.Store(context.Background(), index.Chunk{
		DocumentID: "txt|a", Index: 1, Text: "hello world", Embedding: []float32{1, 0},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := doRequest(srv, http.MethodPost, "/api/search", `{"question":"hello"}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Results []struct {
			Text     string  `json:"chunkText"`
			Distance float64 `json:"distance"`
		} `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Text != "hello world" {
		t.Fatalf("unexpected results: %+v", resp.Results)
	}
}

func TestAnswerBackendDownIs502(t *testing.T) {
	srv, idx := newTestServer(t, &fakeCompleter{err: errors.New("down")})
	_, err := idx.Store(context.Background(), index.Chunk{
		DocumentID: "txt|a", Index: 1, Text: "context", Embedding: []float32{1, 0},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := doRequest(srv, http.MethodPost, "/api/answer", `{"question":"q"}`, true)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for backend outage, got %d", rec.Code)
	}
}

func TestAnswerNoContextIsSentinel200(t *testing.T) {
	srv, _ := newTestServer(t, &fakeCompleter{response: "unused"})

	rec := doRequest(srv, http.MethodPost, "/api/answer", `{"question":"q"}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Results []string `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0] != synth.InsufficientContext {
		t.Fatalf("expected sentinel answer, got %+v", resp.Results)
	}
}

func TestAnswerWithContextReturnsChunks(t *testing.T) {
	srv, idx := newTestServer(t, &fakeCompleter{response: "hello is a greeting"})
	_, err := idx.Store(context.Background(), index.Chunk{
		DocumentID: "txt|a", Index: 1, Text: "hello world", Embedding: []float32{1, 0},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := doRequest(srv, http.MethodPost, "/api/answer", `{"question":"hello"}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Results []string `json:"results"`
		Chunks  []struct {
			Text string `json:"chunkText"`
		} `json:"chunks"`
		Reranked bool `json:"reranked"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0] != "hello is a greeting" {
		t.Fatalf("unexpected results: %+v", resp.Results)
	}
	if len(resp.Chunks) != 1 || resp.Chunks[0].Text != "hello world" {
		t.Fatalf("expected supporting chunks in response, got %+v", resp.Chunks)
	}
	// The test reranker always fails, so the vector ordering is served as is.
	if resp.Reranked {
		t.Fatal("expected reranked=false when the reranker is unavailable")
	}
}

func TestUpdateChunkRequiresTextAndEmbedding(t *testing.T) {
	srv, idx := newTestServer(t, &fakeCompleter{})
	id, err := idx.Store(context.Background(), index.Chunk{
		DocumentID: "txt|a", Index: 1, Text: "old", Embedding: []float32{1, 0},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := doRequest(srv, http.MethodPatch, "/api/chunks/1", `{"chunk_text":"new"}`, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for text without embedding, got %d", rec.Code)
	}

	rec = doRequest(srv, http.MethodPatch, "/api/chunks/1", `{"chunk_text":"new","embedding":[0,1]}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for paired update, got %d: %s", rec.Code, rec.Body.String())
	}

	updated, err := idx.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if updated.Text != "new" || updated.Embedding[1] != 1 {
		t.Fatalf("update not applied: %+v", updated)
	}
}

func TestChunkingEndpointFixedWindow(t *testing.T) {
	srv, _ := newTestServer(t, &fakeCompleter{})

	rec := doRequest(srv, http.MethodPost, "/api/chunking",
		`{"text":"Alpha beta gamma delta epsilon","size":2,"unit":"words"}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Chunks []chunker.Chunk `json:"chunks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Chunks) != 3 || resp.Chunks[0].Content != "Alpha beta" {
		t.Fatalf("unexpected chunks: %+v", resp.Chunks)
	}
}

func TestChunkingEndpointRejectsBadConfig(t *testing.T) {
	srv, _ := newTestServer(t, &fakeCompleter{})
	rec := doRequest(srv, http.MethodPost, "/api/chunking", `{"text":"a b c","size":2,"overlap":5}`, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for overlap >= size, got %d", rec.Code)
	}
}

func TestDeleteDocumentRemovesChunks(t *testing.T) {
	srv, idx := newTestServer(t, &fakeCompleter{})
	for i := 0; i < 2; i++ {
		_, err := idx.Store(context.Background(), index.Chunk{
			DocumentID: "txt|a", Index: i + 1, Text: "t", Embedding: []float32{1, 0},
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	rec := doRequest(srv, http.MethodDelete, "/api/documents/txt|a", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ChunksDeleted int64 `json:"chunks_deleted"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ChunksDeleted != 2 {
		t.Fatalf("expected 2 chunks deleted, got %d", resp.ChunksDeleted)
	}
}
