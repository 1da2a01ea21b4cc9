package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/AniketAslaliya/crewmate-go/internal/rag"
)

// fakeCompleter records the last prompt pair and returns a canned response.
type fakeCompleter struct {
	resp       string
	err        error
	calls      int
	lastSystem string
	lastUser   string
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string) (string, error) {
	f.calls++
	f.lastSystem = system
	f.lastUser = user
	return f.resp, f.err
}

// seedStore fills a namespace with chunk records carrying preview text.
func seedStore(t *testing.T, store rag.VectorStore, namespace string, previews ...string) {
	t.Helper()
	records := make([]rag.Record, len(previews))
	for i, p := range previews {
		records[i] = rag.Record{
			ID:     namespace + "-" + string(rune('a'+i)),
			Vector: make([]float32, 8),
			Metadata: rag.Metadata{
				SourceDocument: "lease.txt",
				PreviewText:    p,
			},
		}
	}
	if _, err := store.Upsert(context.Background(), namespace, records); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
}

func newTestAnalyzer(t *testing.T, store rag.VectorStore, c Completer) *Analyzer {
	t.Helper()
	a, err := New(store, 8, c)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func Test_QuickAnalyze_SummarizesStoredChunks(t *testing.T) {
	t.Parallel()
	store := rag.NewMemoryStore()
	seedStore(t, store, "alice::t1",
		"This agreement binds both parties. Termination requires notice to either party.",
		"The parties accept liability limits and the governing law of this jurisdiction.",
	)
	c := &fakeCompleter{resp: "  A lease agreement between two parties.  "}
	a := newTestAnalyzer(t, store, c)

	rep, err := a.QuickAnalyze(context.Background(), "alice::t1")
	if err != nil {
		t.Fatalf("QuickAnalyze: %v", err)
	}
	if !rep.Success {
		t.Fatalf("Success = false: %s", rep.Message)
	}
	if rep.Body != "A lease agreement between two parties." {
		t.Errorf("Body = %q, want trimmed completer response", rep.Body)
	}
	if !rep.LegalLike {
		t.Error("LegalLike = false for a text full of legal markers")
	}
	if len(rep.Keywords) == 0 {
		t.Error("no keywords extracted")
	}
	if !strings.Contains(c.lastUser, "Document excerpts:") {
		t.Errorf("user prompt %q does not carry the excerpts", c.lastUser)
	}
	if !strings.Contains(c.lastUser, "binds both parties") {
		t.Error("user prompt does not include the stored chunk text")
	}
}

func Test_QuickAnalyze_EmptyNamespace(t *testing.T) {
	t.Parallel()
	c := &fakeCompleter{resp: "unused"}
	a := newTestAnalyzer(t, rag.NewMemoryStore(), c)

	rep, err := a.QuickAnalyze(context.Background(), "alice::empty")
	if err != nil {
		t.Fatalf("QuickAnalyze: %v", err)
	}
	if rep.Success {
		t.Error("Success = true for an empty namespace")
	}
	if rep.Message == "" {
		t.Error("empty namespace needs an explanatory message")
	}
	if c.calls != 0 {
		t.Errorf("completer called %d times for an empty namespace", c.calls)
	}
}

func Test_GenerateFAQ_UsesStrictExcerptPrompt(t *testing.T) {
	t.Parallel()
	store := rag.NewMemoryStore()
	seedStore(t, store, "alice::t1", "Rent is due on the first of each month.")
	c := &fakeCompleter{resp: "### Q: When is rent due?\nA: On the first of each month."}
	a := newTestAnalyzer(t, store, c)

	rep, err := a.GenerateFAQ(context.Background(), "alice::t1")
	if err != nil {
		t.Fatalf("GenerateFAQ: %v", err)
	}
	if !rep.Success {
		t.Fatalf("Success = false: %s", rep.Message)
	}
	if !strings.HasPrefix(rep.Body, "### Q:") {
		t.Errorf("Body = %q, want the completer's markdown", rep.Body)
	}
	if !strings.Contains(c.lastSystem, "FAQ") {
		t.Errorf("system prompt %q is not the FAQ prompt", c.lastSystem)
	}
	if !strings.Contains(c.lastSystem, "Not stated in document.") {
		t.Error("FAQ prompt lost the unanswerable sentinel")
	}
}

func Test_GenerateStudyGuide_GroundedInExcerpts(t *testing.T) {
	t.Parallel()
	store := rag.NewMemoryStore()
	seedStore(t, store, "alice::t1", "The deposit equals one month of rent.")
	c := &fakeCompleter{resp: "A rental policy. It sets the deposit at one month of rent."}
	a := newTestAnalyzer(t, store, c)

	rep, err := a.GenerateStudyGuide(context.Background(), "alice::t1")
	if err != nil {
		t.Fatalf("GenerateStudyGuide: %v", err)
	}
	if !rep.Success {
		t.Fatalf("Success = false: %s", rep.Message)
	}
	if !strings.Contains(c.lastUser, "deposit equals one month") {
		t.Error("user prompt does not include the stored chunk text")
	}
	if rep.Keywords != nil {
		t.Error("study guide should not carry quick-summary keywords")
	}
}

func Test_Analyzer_CompleterFailurePropagates(t *testing.T) {
	t.Parallel()
	store := rag.NewMemoryStore()
	seedStore(t, store, "alice::t1", "Some document text here.")
	c := &fakeCompleter{err: errors.New("model unavailable")}
	a := newTestAnalyzer(t, store, c)

	if _, err := a.QuickAnalyze(context.Background(), "alice::t1"); err == nil {
		t.Error("QuickAnalyze: expected error from failing completer")
	}
	if _, err := a.GenerateFAQ(context.Background(), "alice::t1"); err == nil {
		t.Error("GenerateFAQ: expected error from failing completer")
	}
}

func Test_DetectLegalLike(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		text string
		want bool
	}{
		{
			"contract text",
			"This agreement is between the parties. Termination for breach. Governing law of India.",
			true,
		},
		{
			"recipe",
			"Whisk the eggs, fold in the flour, and bake for thirty minutes.",
			false,
		},
		{
			"two markers only",
			"The agreement names one party.",
			false,
		},
		{"empty", "", false},
	}
	for _, tc := range cases {
		if got := DetectLegalLike(tc.text); got != tc.want {
			t.Errorf("%s: DetectLegalLike = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func Test_Keywords(t *testing.T) {
	t.Parallel()
	text := "Tenant tenant tenant landlord landlord deposit shall shall section rent"

	got := Keywords(text, 2)
	if len(got) != 2 {
		t.Fatalf("Keywords returned %d words, want 2", len(got))
	}
	if got[0] != "tenant" || got[1] != "landlord" {
		t.Errorf("Keywords = %v, want [tenant landlord] by frequency", got)
	}

	for _, w := range Keywords(text, 10) {
		if w == "shall" || w == "section" {
			t.Errorf("stop-like token %q leaked into keywords", w)
		}
		if w == "rent" {
			t.Errorf("short token %q below the length floor leaked into keywords", w)
		}
	}
}
