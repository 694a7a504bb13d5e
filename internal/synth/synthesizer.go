// Package synth assembles a bounded context window from retrieved chunks and
// asks a generative model for the final answer.
package synth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// InsufficientContext is the fixed sentinel the model is instructed to return
// when the assembled context cannot answer the question. Callers compare
// answers against it to distinguish "no context" from a real answer.
const InsufficientContext = "not enough context to provide information"

// ErrUnavailable reports that the generative backend failed. It is never
// conflated with the insufficient-context sentinel: callers must be able to
// tell "no context" from "backend down".
var ErrUnavailable = errors.New("synth: generative backend unavailable")

// Completer is the generative-model capability synthesis relies on.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Synthesizer builds the answer prompt and invokes the model.
type Synthesizer struct {
	llm             Completer
	maxContextBytes int
}

// New creates a Synthesizer with the given context budget in bytes. A
// non-positive budget falls back to 24 KiB.
func New(c Completer, maxContextBytes int) *Synthesizer {
	if maxContextBytes <= 0 {
		maxContextBytes = 24 << 10
	}
	return &Synthesizer{llm: c, maxContextBytes: maxContextBytes}
}

const systemInstruction = "You are a helpful assistant. Your task is to answer the question using only the given context. " +
	"If the data is not sufficient to provide an answer, strictly reply with \"" + InsufficientContext + "\" and nothing else."

// Synthesize answers the question from the ordered context chunks. An empty
// context short-circuits to the sentinel without a model call. A backend
// failure is reported as ErrUnavailable.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, contextChunks []string) (string, error) {
	assembled := s.assemble(contextChunks)
	if assembled == "" {
		return InsufficientContext, nil
	}

	var sb strings.Builder
	sb.WriteString("question: ")
	sb.WriteString(question)
	sb.WriteString("\n\ndata:\n")
	sb.WriteString(assembled)

	answer, err := s.llm.Complete(ctx, systemInstruction, sb.String())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return strings.TrimSpace(answer), nil
}

// IsInsufficient reports whether an answer is the insufficient-context
// sentinel.
func IsInsufficient(answer string) bool {
	return strings.EqualFold(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(answer), ".")), InsufficientContext)
}

// assemble joins non-empty chunks in order, stopping at the byte budget.
// Chunks are separated by blank lines so the model sees unit boundaries.
func (s *Synthesizer) assemble(chunks []string) string {
	var sb strings.Builder
	for _, c := range chunks {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if sb.Len() > 0 && sb.Len()+len(c)+3 > s.maxContextBytes {
			break
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n\n")
		}
		sb.WriteString(c)
	}
	return sb.String()
}
