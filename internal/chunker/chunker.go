// Package chunker splits normalized document text into ordered, 1-indexed
// chunks, either by fixed-size windowing or by delegating boundaries to a
// generative model.
package chunker

import (
	"errors"
	"strings"
)

var (
	// ErrEmptyInput is returned when there is no text to chunk.
	ErrEmptyInput = errors.New("chunker: empty input")
	// ErrInvalidConfig is returned for window configurations that cannot
	// make progress, such as overlap >= size.
	ErrInvalidConfig = errors.New("chunker: invalid window configuration")
)

// Unit selects how fixed-window sizes are counted.
type Unit string

const (
	UnitWords Unit = "words"
	UnitChars Unit = "chars"
)

// FixedPolicy configures fixed-size windowing with overlap.
type FixedPolicy struct {
	Size    int  // window size in Unit
	Overlap int  // units shared between consecutive windows, must be < Size
	Unit    Unit // defaults to UnitWords
}

// Chunk is one retrievable slice of a document. Index is 1-based and
// contiguous within a document.
type Chunk struct {
	Index   int    `json:"chunk_number"`
	Content string `json:"content"`
}

// FixedWindow splits text into windows of p.Size units advancing by
// p.Size - p.Overlap. The final chunk may be shorter than p.Size. The result
// is a pure function of its inputs.
func FixedWindow(text string, p FixedPolicy) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	if p.Size <= 0 || p.Overlap < 0 || p.Overlap >= p.Size {
		return nil, ErrInvalidConfig
	}

	switch p.Unit {
	case UnitChars:
		return windowRunes(text, p.Size, p.Overlap), nil
	case UnitWords, "":
		return windowWords(text, p.Size, p.Overlap), nil
	default:
		return nil, ErrInvalidConfig
	}
}

func windowWords(text string, size, overlap int) []Chunk {
	words := strings.Fields(text)
	var chunks []Chunk
	start := 0
	for start < len(words) {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, Chunk{
			Index:   len(chunks) + 1,
			Content: strings.Join(words[start:end], " "),
		})
		// The window reaching the end of the input is the last one; backing
		// up by overlap would only re-emit material already covered.
		if end == len(words) {
			break
		}
		start = end - overlap
	}
	return chunks
}

func windowRunes(text string, size, overlap int) []Chunk {
	runes := []rune(text)
	var chunks []Chunk
	start := 0
	for start < len(runes) {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			Index:   len(chunks) + 1,
			Content: string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
		start = end - overlap
	}
	return chunks
}
