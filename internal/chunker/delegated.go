package chunker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/corpusd/corpusd/internal/llm"
)

// Completer is the generative-model capability delegated chunking relies on.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// FormatError reports a structurally invalid model response. Raw carries the
// response text for diagnosis.
type FormatError struct {
	Raw string
	Err error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("chunker: malformed model output: %v (raw: %s)", e.Err, truncate(e.Raw, 200))
}

func (e *FormatError) Unwrap() error { return e.Err }

// Delegated asks a generative model to choose chunk boundaries. The model's
// output must be a strict JSON array of {chunk_number, content} objects; a
// malformed response is surfaced as *FormatError and is never retried here,
// since regeneration is nondeterministic and could silently move boundaries.
type Delegated struct {
	llm Completer
}

func NewDelegated(c Completer) *Delegated {
	return &Delegated{llm: c}
}

const delegatedPrompt = `Split the following text into chunks of approximately 200-300 words each. Each chunk should be numbered sequentially starting from 1. The output must be returned as a structured JSON array in the following format:

[
  {
    "chunk_number": 1,
    "content": "First chunk of the text here..."
  },
  {
    "chunk_number": 2,
    "content": "Second chunk of the text here..."
  }
]

Make sure:
- Chunks do NOT break sentences mid-way.
- Logical flow is preserved.
- No extra commentary, just the raw JSON output.

Text: `

// Chunk sends the full text to the model and validates the returned chunk
// list: valid JSON, the expected array-of-objects shape, contiguous 1-based
// numbering, and non-empty content.
func (d *Delegated) Chunk(ctx context.Context, text string) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	resp, err := d.llm.Complete(ctx, "", delegatedPrompt+text)
	if err != nil {
		return nil, fmt.Errorf("delegated chunking: %w", err)
	}

	cleaned := llm.StripCodeBlock(resp)
	if cleaned == "" {
		return nil, &FormatError{Raw: resp, Err: fmt.Errorf("empty response")}
	}

	var chunks []Chunk
	if err := json.Unmarshal([]byte(cleaned), &chunks); err != nil {
		return nil, &FormatError{Raw: resp, Err: err}
	}
	if len(chunks) == 0 {
		return nil, &FormatError{Raw: resp, Err: fmt.Errorf("empty chunk array")}
	}
	for i, c := range chunks {
		if c.Index != i+1 {
			return nil, &FormatError{Raw: resp, Err: fmt.Errorf("chunk_number %d at position %d, want %d", c.Index, i, i+1)}
		}
		if strings.TrimSpace(c.Content) == "" {
			return nil, &FormatError{Raw: resp, Err: fmt.Errorf("chunk %d has empty content", c.Index)}
		}
	}
	return chunks, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
