package chunker

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeCompleter struct {
	response string
	err      error
	calls    int
}

func (f *fakeCompleter) Complete(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.response, f.err
}

func TestDelegated_ValidResponse(t *testing.T) {
	fake := &fakeCompleter{response: `[
		{"chunk_number": 1, "content": "First part."},
		{"chunk_number": 2, "content": "Second part."}
	]`}
	d := NewDelegated(fake)

	chunks, err := d.Chunk(context.Background(), "First part. Second part.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Index != 1 || chunks[0].Content != "First part." {
		t.Errorf("unexpected first chunk: %+v", chunks[0])
	}
	if chunks[1].Index != 2 || chunks[1].Content != "Second part." {
		t.Errorf("unexpected second chunk: %+v", chunks[1])
	}
}

func TestDelegated_StripsCodeFence(t *testing.T) {
	fake := &fakeCompleter{response: "```json\n[{\"chunk_number\": 1, \"content\": \"Fenced.\"}]\n```"}
	d := NewDelegated(fake)

	chunks, err := d.Chunk(context.Background(), "Fenced.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Content != "Fenced." {
		t.Fatalf("unexpected chunks: %+v", chunks)
	}
}

func TestDelegated_MalformedJSONIsFormatError(t *testing.T) {
	fake := &fakeCompleter{response: "here are your chunks: 1) first 2) second"}
	d := NewDelegated(fake)

	_, err := d.Chunk(context.Background(), "some text")
	var ferr *FormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected *FormatError, got %v", err)
	}
	if !strings.Contains(ferr.Raw, "here are your chunks") {
		t.Errorf("expected raw response preserved in error, got %q", ferr.Raw)
	}
	if fake.calls != 1 {
		t.Errorf("expected exactly 1 model call (no retry on format error), got %d", fake.calls)
	}
}

func TestDelegated_NonContiguousNumbering(t *testing.T) {
	fake := &fakeCompleter{response: `[
		{"chunk_number": 1, "content": "a"},
		{"chunk_number": 3, "content": "b"}
	]`}
	d := NewDelegated(fake)

	_, err := d.Chunk(context.Background(), "a b")
	var ferr *FormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected *FormatError for gap in numbering, got %v", err)
	}
}

func TestDelegated_EmptyArray(t *testing.T) {
	fake := &fakeCompleter{response: "[]"}
	d := NewDelegated(fake)

	_, err := d.Chunk(context.Background(), "some text")
	var ferr *FormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected *FormatError for empty array, got %v", err)
	}
}

func TestDelegated_EmptyChunkContent(t *testing.T) {
	fake := &fakeCompleter{response: `[{"chunk_number": 1, "content": "  "}]`}
	d := NewDelegated(fake)

	_, err := d.Chunk(context.Background(), "some text")
	var ferr *FormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected *FormatError for blank content, got %v", err)
	}
}

func TestDelegated_EmptyInput(t *testing.T) {
	fake := &fakeCompleter{}
	d := NewDelegated(fake)

	_, err := d.Chunk(context.Background(), "  \n ")
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if fake.calls != 0 {
		t.Errorf("expected no model call for empty input, got %d", fake.calls)
	}
}

func TestDelegated_ModelErrorPassedThrough(t *testing.T) {
	wantErr := errors.New("backend down")
	fake := &fakeCompleter{err: wantErr}
	d := NewDelegated(fake)

	_, err := d.Chunk(context.Background(), "some text")
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped model error, got %v", err)
	}
	var ferr *FormatError
	if errors.As(err, &ferr) {
		t.Fatalf("model transport error must not be a FormatError")
	}
}
