package synth

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
	prompt   string
}

func (f *fakeCompleter) Complete(_ context.Context, _, prompt string) (string, error) {
	f.calls++
	f.prompt = prompt
	return f.response, f.err
}

func TestSynthesizeEmptyContextSkipsModel(t *testing.T) {
	fake := &fakeCompleter{}
	s := New(fake, 0)

	for _, chunks := range [][]string{nil, {}, {"", "  "}} {
		answer, err := s.Synthesize(context.Background(), "question?", chunks)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if answer != InsufficientContext {
			t.Errorf("expected sentinel, got %q", answer)
		}
	}
	if fake.calls != 0 {
		t.Fatalf("expected no model calls for empty context, got %d", fake.calls)
	}
}

func TestSynthesizeIncludesQuestionAndContext(t *testing.T) {
	fake := &fakeCompleter{response: "Paris."}
	s := New(fake, 0)

	answer, err := s.Synthesize(context.Background(), "capital of France?", []string{"France's capital is Paris.", "Unrelated."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Paris." {
		t.Errorf("expected model answer, got %q", answer)
	}
	if !strings.Contains(fake.prompt, "capital of France?") {
		t.Errorf("prompt missing question: %q", fake.prompt)
	}
	if !strings.Contains(fake.prompt, "France's capital is Paris.") {
		t.Errorf("prompt missing context chunk: %q", fake.prompt)
	}
}

func TestSynthesizeBackendFailureIsErrUnavailable(t *testing.T) {
	fake := &fakeCompleter{err: errors.New("connection refused")}
	s := New(fake, 0)

	_, err := s.Synthesize(context.Background(), "q", []string{"context"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSynthesizeRespectsContextBudget(t *testing.T) {
	fake := &fakeCompleter{response: "ok"}
	s := New(fake, 50)

	big := strings.Repeat("x", 40)
	_, err := s.Synthesize(context.Background(), "q", []string{big, big, big})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Only the first chunk fits in a 50-byte budget.
	if count := strings.Count(fake.prompt, big); count != 1 {
		t.Errorf("expected 1 chunk within budget, found %d", count)
	}
}

func TestIsInsufficient(t *testing.T) {
	cases := []struct {
		answer string
		want   bool
	}{
		{InsufficientContext, true},
		{"Not enough context to provide information", true},
		{"  not enough context to provide information.  ", true},
		{"Paris is the capital of France.", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsInsufficient(tc.answer); got != tc.want {
			t.Errorf("IsInsufficient(%q): expected %v, got %v", tc.answer, tc.want, got)
		}
	}
}
