package reranker

import (
	"context"
	"testing"
)

func Test_Lexical_Score(t *testing.T) {
	t.Parallel()
	r := NewLexical()
	ctx := context.Background()

	cases := []struct {
		name      string
		query     string
		candidate string
		want      float32
	}{
		{"full overlap", "termination notice", "Termination requires thirty days notice.", 1.0},
		{"half overlap", "termination penalty", "Termination requires thirty days notice.", 0.5},
		{"no overlap", "maritime salvage", "Termination requires thirty days notice.", 0.0},
		{"stopwords ignored", "the and for", "anything at all", 0.0},
		{"empty candidate", "termination", "", 0.0},
		{"case insensitive", "TERMINATION", "termination clause", 1.0},
	}
	for _, tc := range cases {
		got, err := r.Score(ctx, tc.query, tc.candidate)
		if err != nil {
			t.Errorf("%s: Score: %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: Score = %f, want %f", tc.name, got, tc.want)
		}
	}
}

func Test_Lexical_RepeatedQueryTerms(t *testing.T) {
	t.Parallel()
	r := NewLexical()

	// Duplicate query terms must not inflate the score.
	got, err := r.Score(context.Background(), "notice notice notice", "a notice was given")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got != 1.0 {
		t.Errorf("Score = %f, want 1.0", got)
	}
}

func Test_Lexical_CancelledContext(t *testing.T) {
	t.Parallel()
	r := NewLexical()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Score(ctx, "query", "candidate"); err == nil {
		t.Fatal("Score with cancelled context succeeded, want error")
	}
}
