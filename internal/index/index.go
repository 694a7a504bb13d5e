// Package index persists document chunks with their embedding vectors and
// answers nearest-neighbour queries by cosine distance.
package index

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDuplicateChunk is returned when a chunk with the same
	// (documentId, chunkIndex) pair already exists.
	ErrDuplicateChunk = errors.New("index: duplicate (documentId, chunkIndex)")
	// ErrNotFound is returned when the requested chunk does not exist.
	ErrNotFound = errors.New("index: chunk not found")
	// ErrTextWithoutVector rejects chunk edits that would leave a stored
	// vector stale relative to its text.
	ErrTextWithoutVector = errors.New("index: chunk update requires text and vector together")
)

// Chunk is one stored retrievable unit. Index is 1-based and unique within a
// document; the document is referenced by id only.
type Chunk struct {
	ID         int64          `json:"chunkId"`
	DocumentID string         `json:"documentId"`
	Index      int            `json:"chunkIndex"`
	Text       string         `json:"chunkText"`
	Embedding  []float32      `json:"embeddingData,omitempty"`
	Metadata   map[string]any `json:"metaData,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// Match is a search hit. Distance is cosine distance: lower is more similar.
type Match struct {
	Chunk
	Distance float64 `json:"distance"`
}

// Index is the chunk store contract. The same cosine metric is used at write
// and query time; mixing metrics silently returns garbage rankings.
type Index interface {
	// Store persists a chunk with its vector and returns the assigned id.
	Store(ctx context.Context, chunk Chunk) (int64, error)

	// Search returns up to limit chunks ordered by ascending cosine
	// distance from the query vector, excluding results farther than
	// maxDistance. An empty index yields an empty result, not an error.
	Search(ctx context.Context, vector []float32, limit int, maxDistance float64) ([]Match, error)

	// Get returns a chunk by id.
	Get(ctx context.Context, id int64) (Chunk, error)

	// Update replaces a chunk's text and vector together and returns the
	// updated chunk. Text edits without a regenerated vector are rejected
	// so stored vectors never drift from their text.
	Update(ctx context.Context, id int64, text string, vector []float32, metadata map[string]any) (Chunk, error)

	// Delete removes a chunk by id.
	Delete(ctx context.Context, id int64) error

	// DeleteDocument removes all chunks of a document and reports how many
	// were deleted.
	DeleteDocument(ctx context.Context, documentID string) (int64, error)

	// Close releases resources.
	Close() error
}
