package pipeline

import (
	"errors"
	"math/rand"
	"time"

	"github.com/corpusd/corpusd/internal/embedding"
	"github.com/corpusd/corpusd/internal/llm"
)

// IsRetryable checks if a provider error is worth retrying.
func IsRetryable(err error) bool {
	var llmErr *llm.RetryableError
	if errors.As(err, &llmErr) {
		return true
	}
	var provErr *embedding.ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable()
	}
	return false
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base + jitter
}

const MaxRetries = 3
