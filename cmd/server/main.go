package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corpusd/corpusd/internal/api"
	"github.com/corpusd/corpusd/internal/chunker"
	"github.com/corpusd/corpusd/internal/config"
	"github.com/corpusd/corpusd/internal/embedding"
	"github.com/corpusd/corpusd/internal/extractor"
	"github.com/corpusd/corpusd/internal/index"
	"github.com/corpusd/corpusd/internal/llm"
	"github.com/corpusd/corpusd/internal/pipeline"
	"github.com/corpusd/corpusd/internal/query"
	"github.com/corpusd/corpusd/internal/rerank"
	"github.com/corpusd/corpusd/internal/store"
	"github.com/corpusd/corpusd/internal/synth"
	"github.com/corpusd/corpusd/internal/tagging"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage backends. An empty DATABASE_URL selects in-memory mode, which
	// loses all data on restart.
	var (
		idx  index.Index
		docs store.Store
		pool *pgxpool.Pool
	)
	if cfg.DatabaseURL != "" {
		var err error
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		pgIndex := index.NewPostgres(pool, cfg.EmbeddingDim)
		if err := pgIndex.Init(ctx); err != nil {
			log.Error("index schema init failed", "error", err)
			os.Exit(1)
		}
		pgStore := store.NewPostgres(pool)
		if err := pgStore.Init(ctx); err != nil {
			log.Error("store schema init failed", "error", err)
			os.Exit(1)
		}
		idx = pgIndex
		docs = pgStore
	} else {
		log.Warn("DATABASE_URL not set, using in-memory storage")
		idx = index.NewMemory()
		docs = store.NewMemory()
	}

	// Provider clients.
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel)
	embedder := embedding.NewClient(cfg.VoyageBaseURL, cfg.VoyageAPIKey, cfg.EmbedModel)
	reranker := rerank.NewClient(cfg.VoyageBaseURL, cfg.VoyageAPIKey, cfg.RerankModel)

	// Ingestion pipeline.
	orch := pipeline.NewOrchestrator(cfg, pipeline.Deps{
		Extractor: extractor.NewRegistry(),
		Tagger:    tagging.NewTagger(llmClient),
		Embedder:  embedder,
		Store:     docs,
		Index:     idx,
	}, log)
	orch.Start(ctx)

	// Retrieval side.
	synthesizer := synth.New(llmClient, cfg.MaxContextBytes)
	qs := query.NewService(embedder, idx, reranker, synthesizer, log, query.Options{
		TopK:        cfg.RerankTopK,
		MaxDistance: cfg.SearchMaxDistance,
		Overfetch:   cfg.SearchOverfetch,
	})

	srv := api.NewServer(orch, qs, embedder, reranker, chunker.NewDelegated(llmClient), llmClient, idx, docs, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		llmClient.Close()
		embedder.Close()
		reranker.Close()
		idx.Close()
		docs.Close()
		if pool != nil {
			pool.Close()
		}
	}()

	log.Info("starting corpusd", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
