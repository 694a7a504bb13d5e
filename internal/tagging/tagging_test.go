package tagging

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeCompleter struct {
	response string
	err      error
	prompt   string
}

func (f *fakeCompleter) Complete(_ context.Context, _, prompt string) (string, error) {
	f.prompt = prompt
	return f.response, f.err
}

func TestTagParsesStructuredResponse(t *testing.T) {
	fake := &fakeCompleter{response: `{
		"main_topic": "Finance",
		"keywords": ["budget", "q3"],
		"named_entities": {
			"people": ["Ada"],
			"organizations": ["Acme"],
			"locations": [],
			"dates": ["2026-03-01"]
		},
		"sentiment": "neutral",
		"summary": "Quarterly budget overview.",
		"key_points": ["spending up"],
		"related_questions": ["What changed?"],
		"more_info": [],
		"domain_specific": ["Finance"]
	}`}
	tagger := NewTagger(fake)

	tags, err := tagger.Tag(context.Background(), "the budget report text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tags.MainTopic != "Finance" {
		t.Errorf("expected main_topic Finance, got %q", tags.MainTopic)
	}
	if len(tags.NamedEntities.People) != 1 || tags.NamedEntities.People[0] != "Ada" {
		t.Errorf("unexpected people: %v", tags.NamedEntities.People)
	}
	if tags.Summary == "" {
		t.Error("expected non-empty summary")
	}
	if !strings.Contains(fake.prompt, "the budget report text") {
		t.Errorf("prompt missing document text")
	}
}

func TestTagStripsCodeFence(t *testing.T) {
	fake := &fakeCompleter{response: "```json\n{\"main_topic\": \"Tech\"}\n```"}
	tagger := NewTagger(fake)

	tags, err := tagger.Tag(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tags.MainTopic != "Tech" {
		t.Errorf("expected Tech, got %q", tags.MainTopic)
	}
}

func TestTagMalformedResponseIsFormatError(t *testing.T) {
	fake := &fakeCompleter{response: "I could not analyze this text, sorry."}
	tagger := NewTagger(fake)

	tags, err := tagger.Tag(context.Background(), "text")
	var ferr *FormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected *FormatError, got %v", err)
	}
	if tags != nil {
		t.Fatalf("malformed output must not produce tags, got %+v", tags)
	}
}

func TestTagModelErrorPassedThrough(t *testing.T) {
	wantErr := errors.New("rate limited")
	fake := &fakeCompleter{err: wantErr}
	tagger := NewTagger(fake)

	_, err := tagger.Tag(context.Background(), "text")
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped model error, got %v", err)
	}
	var ferr *FormatError
	if errors.As(err, &ferr) {
		t.Fatal("transport error must not be a FormatError")
	}
}
