// Package store persists corpus and document records. Chunk storage and
// similarity search live in the index package; documents reference chunks by
// id only.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("store: not found")
)

// Corpus is a named grouping of documents owned by a user. (UserID, Key) is
// unique; corpora are created lazily on first ingestion for a key.
type Corpus struct {
	ID        int64     `json:"corpusId"`
	UserID    string    `json:"userId"`
	Key       string    `json:"corpusKey"`
	CreatedAt time.Time `json:"createdAt"`
}

// Document identifies one ingested source. ID is derived deterministically
// from the document type and name so re-ingesting the same file resolves to
// the same identity.
type Document struct {
	ID         string          `json:"documentId"`
	CorpusID   int64           `json:"corpusId"`
	UserID     string          `json:"userId"`
	Type       string          `json:"docType"`
	Name       string          `json:"docName"`
	SourceURL  string          `json:"sourceUrl,omitempty"`
	RawText    string          `json:"rawText,omitempty"`
	Tags       json.RawMessage `json:"tags,omitempty"`
	TagsFailed bool            `json:"tagsFailed,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// DocumentID derives the deterministic document identity from type and name.
func DocumentID(docType, docName string) string {
	return docType + "|" + docName
}

// Store is the corpus/document persistence contract.
type Store interface {
	// EnsureCorpus returns the corpus for (userID, key), creating it if
	// absent.
	EnsureCorpus(ctx context.Context, userID, key string) (Corpus, error)

	// UpsertDocument creates the document, or replaces its content when
	// the deterministic id already exists.
	UpsertDocument(ctx context.Context, doc Document) error

	// GetDocument returns a document by id.
	GetDocument(ctx context.Context, id string) (Document, error)

	// DeleteDocument removes a document record. Its chunks are deleted
	// separately through the chunk index; no cascade is performed here.
	DeleteDocument(ctx context.Context, id string) error

	// Close releases resources.
	Close() error
}
