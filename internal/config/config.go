package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Postgres with pgvector. Empty selects the in-memory backends.
	DatabaseURL string

	// Auth
	APIKey string

	// Voyage AI embedding and rerank
	VoyageBaseURL string
	VoyageAPIKey  string
	EmbedModel    string
	RerankModel   string
	EmbeddingDim  int

	// OpenAI-compatible chat completions
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Chunking defaults
	ChunkSize    int
	ChunkOverlap int
	ChunkUnit    string

	// Retrieval
	SearchTopK        int
	SearchMaxDistance float64
	SearchOverfetch   int
	RerankTopK        int
	MaxContextBytes   int

	// Per-stage provider call timeout
	StageTimeout time.Duration

	// Job state
	JobTTL time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		APIKey: os.Getenv("CORPUSD_API_KEY"),

		VoyageBaseURL: envOr("VOYAGE_BASE_URL", "https://api.voyageai.com/v1"),
		VoyageAPIKey:  os.Getenv("VOYAGE_API_KEY"),
		EmbedModel:    envOr("EMBED_MODEL", "voyage-3-large"),
		RerankModel:   envOr("RERANK_MODEL", "rerank-2"),
		EmbeddingDim:  envInt("EMBEDDING_DIM", 1024),

		LLMBaseURL: envOr("LLM_BASE_URL", "https://api.groq.com/openai/v1"),
		LLMAPIKey:  os.Getenv("LLM_API_KEY"),
		LLMModel:   envOr("LLM_MODEL", "llama-3.3-70b-versatile"),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		ChunkSize:    envInt("CHUNK_SIZE", 1000),
		ChunkOverlap: envInt("CHUNK_OVERLAP", 100),
		ChunkUnit:    envOr("CHUNK_UNIT", "chars"),

		SearchTopK:        envInt("SEARCH_TOP_K", 5),
		SearchMaxDistance: envFloat("SEARCH_MAX_DISTANCE", 0.5),
		SearchOverfetch:   envInt("SEARCH_OVERFETCH", 3),
		RerankTopK:        envInt("RERANK_TOP_K", 3),
		MaxContextBytes:   envInt("MAX_CONTEXT_BYTES", 24*1024),

		StageTimeout: envDuration("STAGE_TIMEOUT", 2*time.Minute),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.EmbeddingDim <= 0 {
		cfg.EmbeddingDim = 1024
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = 0
	}
	if cfg.SearchTopK <= 0 {
		cfg.SearchTopK = 5
	}
	if cfg.SearchMaxDistance <= 0 {
		cfg.SearchMaxDistance = 0.5
	}
	if cfg.SearchOverfetch <= 0 {
		cfg.SearchOverfetch = 3
	}
	if cfg.RerankTopK <= 0 {
		cfg.RerankTopK = 3
	}
	if cfg.MaxContextBytes <= 0 {
		cfg.MaxContextBytes = 24 * 1024
	}
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = 2 * time.Minute
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("CORPUSD_API_KEY is required")
	}
	if c.VoyageAPIKey == "" {
		return fmt.Errorf("VOYAGE_API_KEY is required")
	}
	if c.LLMAPIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
