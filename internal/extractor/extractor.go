// Package extractor defines the narrow text-extraction boundary the pipeline
// depends on. Format-specific parsing lives behind this interface; the
// pipeline only ever sees plain text.
package extractor

import (
	"context"
	"fmt"
)

// Extractor converts an uploaded payload into plain text.
type Extractor interface {
	Extract(ctx context.Context, docType string, data []byte, sourceURL string) (string, error)
}

// Registry dispatches to a registered extractor by document type.
type Registry struct {
	byType map[string]Extractor
}

func NewRegistry() *Registry {
	r := &Registry{byType: make(map[string]Extractor)}
	r.Register("txt", &PlainText{})
	r.Register("text", &PlainText{})
	return r
}

// Register installs an extractor for a document type, replacing any previous
// registration.
func (r *Registry) Register(docType string, e Extractor) {
	r.byType[docType] = e
}

// Extract dispatches by document type.
func (r *Registry) Extract(ctx context.Context, docType string, data []byte, sourceURL string) (string, error) {
	e, ok := r.byType[docType]
	if !ok {
		return "", fmt.Errorf("extractor: unsupported document type %q", docType)
	}
	return e.Extract(ctx, docType, data, sourceURL)
}

// Supported reports whether a document type has a registered extractor.
func (r *Registry) Supported(docType string) bool {
	_, ok := r.byType[docType]
	return ok
}
