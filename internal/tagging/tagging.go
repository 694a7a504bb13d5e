// Package tagging produces structured JSON metadata for a document via a
// generative model. Tags are best-effort annotation: the pipeline records
// failures instead of persisting empty tags that would look like "no entities
// found".
package tagging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/corpusd/corpusd/internal/llm"
)

// Tags is the structured metadata extracted from a document. It is opaque to
// the retrieval pipeline and stored alongside the document.
type Tags struct {
	MainTopic     string        `json:"main_topic"`
	Keywords      []string      `json:"keywords"`
	NamedEntities NamedEntities `json:"named_entities"`
	Sentiment     string        `json:"sentiment"`
	Summary       string        `json:"summary"`
	KeyPoints     []string      `json:"key_points"`
	RelatedQs     []string      `json:"related_questions"`
	MoreInfo      []string      `json:"more_info"`
	Domains       []string      `json:"domain_specific,omitempty"`
}

type NamedEntities struct {
	People        []string `json:"people"`
	Organizations []string `json:"organizations"`
	Locations     []string `json:"locations"`
	Dates         []string `json:"dates"`
}

// FormatError reports tag output that is not the demanded strict JSON. Raw
// carries the model response for diagnosis.
type FormatError struct {
	Raw string
	Err error
}

func (e *FormatError) Error() string {
	raw := e.Raw
	if len(raw) > 200 {
		raw = raw[:200] + "..."
	}
	return fmt.Sprintf("tagging: malformed model output: %v (raw: %s)", e.Err, raw)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Completer is the generative-model capability tagging relies on.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Tagger runs the tagging prompt against a model and parses the result.
type Tagger struct {
	llm Completer
}

func NewTagger(c Completer) *Tagger {
	return &Tagger{llm: c}
}

const tagSystem = "You are an expert AI text analyzer. Your job is to parse the given text and produce structured JSON metadata."

// Tag analyzes text and returns structured metadata. A malformed model
// response is surfaced as *FormatError, never coerced into empty tags.
func (t *Tagger) Tag(ctx context.Context, text string) (*Tags, error) {
	resp, err := t.llm.Complete(ctx, tagSystem, buildPrompt(text))
	if err != nil {
		return nil, fmt.Errorf("tagging: %w", err)
	}

	cleaned := llm.StripCodeBlock(resp)
	if cleaned == "" {
		return nil, &FormatError{Raw: resp, Err: fmt.Errorf("empty response")}
	}

	var tags Tags
	if err := json.Unmarshal([]byte(cleaned), &tags); err != nil {
		return nil, &FormatError{Raw: resp, Err: err}
	}
	return &tags, nil
}

func buildPrompt(text string) string {
	var sb strings.Builder
	sb.WriteString("TEXT:\n")
	sb.WriteString(text)
	sb.WriteString(`

TASK:
Please analyze the above TEXT and return a structured JSON with these fields:

1) main_topic: A single string representing the overall topic or category of the text.
2) keywords: A list of short relevant keywords or key phrases.
3) named_entities:
   - people: A list of any people mentioned.
   - organizations: A list of any organizations mentioned.
   - locations: A list of any places or geographic references.
   - dates: A list of any specific dates or times referenced.
4) sentiment: The overall tone (e.g., positive, negative, neutral).
5) summary: A concise summary of the main point(s) from the text.
6) key_points: A list of the most important bullet-style points.
7) related_questions: Questions a reader might ask after reading.
8) more_info: Suggestions or resources that might provide additional context.
9) domain_specific: (Optional) Relevant domain(s) or subdomains (e.g., "Healthcare", "Finance", "Technology").

Return the response as valid JSON without any extra commentary or markdown. That is, only JSON, nothing else.`)
	return sb.String()
}
