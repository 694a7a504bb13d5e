package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/corpusd/corpusd/internal/chunker"
	"github.com/corpusd/corpusd/internal/config"
	"github.com/corpusd/corpusd/internal/index"
	"github.com/corpusd/corpusd/internal/llm"
	"github.com/corpusd/corpusd/internal/pipeline"
	"github.com/corpusd/corpusd/internal/query"
	"github.com/corpusd/corpusd/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Chunker runs model-delegated chunking for the utility endpoint.
type Chunker interface {
	Chunk(ctx context.Context, text string) ([]chunker.Chunk, error)
}

// Server is the HTTP API server for corpusd.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	query        *query.Service
	embedder     query.Embedder
	reranker     query.Reranker
	delegated    Chunker
	llm          *llm.Client
	idx          index.Index
	docs         store.Store
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, qs *query.Service, embedder query.Embedder, reranker query.Reranker, delegated Chunker, llmClient *llm.Client, idx index.Index, docs store.Store, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		query:        qs,
		embedder:     embedder,
		reranker:     reranker,
		delegated:    delegated,
		llm:          llmClient,
		idx:          idx,
		docs:         docs,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/ingest", s.handleIngest)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)

		r.Post("/api/search", s.handleSearch)
		r.Post("/api/answer", s.handleAnswer)

		r.Post("/api/chunking", s.handleChunking)
		r.Post("/api/embedding", s.handleEmbedding)
		r.Post("/api/rerank", s.handleRerank)

		r.Get("/api/chunks/{chunkID}", s.handleGetChunk)
		r.Patch("/api/chunks/{chunkID}", s.handleUpdateChunk)
		r.Delete("/api/chunks/{chunkID}", s.handleDeleteChunk)

		r.Get("/api/documents/{docID}", s.handleGetDocument)
		r.Delete("/api/documents/{docID}", s.handleDeleteDocument)

		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
