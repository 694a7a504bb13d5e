package pipeline

import "fmt"

// PartialPersistError reports an ingestion that wrote the document and some
// chunks but not all of them. No compensating delete is performed; the caller
// decides whether to resume or delete-and-retry using the persisted count.
type PartialPersistError struct {
	DocumentID string
	Persisted  int
	Total      int
	Err        error
}

func (e *PartialPersistError) Error() string {
	return fmt.Sprintf("persisted %d/%d chunks for document %s: %v", e.Persisted, e.Total, e.DocumentID, e.Err)
}

func (e *PartialPersistError) Unwrap() error { return e.Err }
