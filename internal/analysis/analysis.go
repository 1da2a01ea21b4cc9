// Package analysis derives secondary views of an ingested document from the
// chunks stored under its thread namespace: a quick summary, an FAQ, and a
// study guide. Every view is grounded only in the stored excerpts.
package analysis

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/AniketAslaliya/crewmate-go/internal/rag"
)

// maxSnippetChars caps each stored excerpt before it enters a prompt.
const maxSnippetChars = 2000

// quickSnippets is how many stored chunks feed the quick summary.
const quickSnippets = 50

// guideSnippets is how many stored chunks feed the FAQ and study guide.
const guideSnippets = 8

// Completer is the language model call the analyzer needs: a system prompt,
// a user message, one text response. provider.Completer satisfies it.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Report is the outcome of one analysis operation. A namespace holding no
// document yields Success false with a Message and a nil error; errors are
// reserved for model and store failures.
type Report struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`

	// Body is the model-written view: summary, FAQ markdown, or study guide.
	Body string `json:"body,omitempty"`

	// Keywords are the most frequent substantive tokens of the document.
	// Only the quick summary fills this.
	Keywords []string `json:"keywords,omitempty"`

	// LegalLike reports whether the document reads like a legal text.
	// Only the quick summary fills this.
	LegalLike bool `json:"legal_like"`
}

// Analyzer runs document analyses over a namespace's stored chunks.
type Analyzer struct {
	store     rag.VectorStore
	dimension int
	completer Completer
}

// New constructs an Analyzer. dimension must match the store's embedding
// dimension so snippet queries are well-formed.
func New(store rag.VectorStore, dimension int, completer Completer) (*Analyzer, error) {
	if store == nil {
		return nil, fmt.Errorf("analysis: store must not be nil")
	}
	if completer == nil {
		return nil, fmt.Errorf("analysis: completer must not be nil")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("analysis: dimension must be positive, got %d", dimension)
	}
	return &Analyzer{store: store, dimension: dimension, completer: completer}, nil
}

// snippets pulls up to k stored excerpts from the namespace. The zero query
// vector makes the store return whatever it holds instead of ranking against
// a real question.
func (a *Analyzer) snippets(ctx context.Context, namespace string, k int) ([]string, error) {
	results, err := a.store.QueryTopK(ctx, namespace, make([]float32, a.dimension), k)
	if err != nil {
		return nil, fmt.Errorf("analysis: reading stored chunks: %w", err)
	}
	out := make([]string, 0, len(results))
	for _, r := range results {
		text := strings.TrimSpace(r.Metadata.PreviewText)
		if text == "" {
			continue
		}
		if runes := []rune(text); len(runes) > maxSnippetChars {
			text = string(runes[:maxSnippetChars])
		}
		out = append(out, text)
	}
	return out, nil
}

// QuickAnalyze produces a short plain-English summary of the document, plus
// keyword and legal-likeness heuristics computed without the model.
func (a *Analyzer) QuickAnalyze(ctx context.Context, namespace string) (*Report, error) {
	snippets, err := a.snippets(ctx, namespace, quickSnippets)
	if err != nil {
		return nil, err
	}
	if len(snippets) == 0 {
		return &Report{Message: "No ingested document for this thread."}, nil
	}

	text := strings.Join(snippets, " ")
	sample := text
	if runes := []rune(sample); len(runes) > maxSampleChars {
		sample = string(runes[:maxSampleChars])
	}

	body, err := a.completer.Complete(ctx, quickAnalyzeSystemPrompt, BuildExcerptPrompt(sample))
	if err != nil {
		return nil, fmt.Errorf("analysis: quick summary failed: %w", err)
	}

	return &Report{
		Success:   true,
		Body:      strings.TrimSpace(body),
		Keywords:  Keywords(text, maxKeywords),
		LegalLike: DetectLegalLike(text),
	}, nil
}

// GenerateFAQ writes a markdown FAQ answered strictly from the stored
// excerpts.
func (a *Analyzer) GenerateFAQ(ctx context.Context, namespace string) (*Report, error) {
	return a.generate(ctx, namespace, faqSystemPrompt, "FAQ")
}

// GenerateStudyGuide writes a long-form plain-English study guide of the
// document.
func (a *Analyzer) GenerateStudyGuide(ctx context.Context, namespace string) (*Report, error) {
	return a.generate(ctx, namespace, studyGuideSystemPrompt, "study guide")
}

// generate runs one excerpt-grounded generation with the given system prompt.
func (a *Analyzer) generate(ctx context.Context, namespace, system, label string) (*Report, error) {
	snippets, err := a.snippets(ctx, namespace, guideSnippets)
	if err != nil {
		return nil, err
	}
	if len(snippets) == 0 {
		return &Report{Message: "No ingested document for this thread."}, nil
	}

	excerpts := strings.Join(snippets, "\n\n---\n\n")
	body, err := a.completer.Complete(ctx, system, BuildExcerptPrompt(excerpts))
	if err != nil {
		return nil, fmt.Errorf("analysis: %s generation failed: %w", label, err)
	}
	return &Report{Success: true, Body: strings.TrimSpace(body)}, nil
}

// legalKeywords are the phrase markers the legal-likeness heuristic counts.
var legalKeywords = []string{
	"agreement", "party", "parties", "indemnify", "indemnity", "warranty",
	"liability", "governing law", "jurisdiction", "termination", "clause",
	"herein", "hereby", "force majeure", "arbitration", "confidentiality",
	"non-disclosure", "nda",
}

// legalThreshold is how many distinct markers make a text legal-like.
const legalThreshold = 3

// DetectLegalLike reports whether the text reads like a legal document,
// judged by how many distinct legal phrase markers it contains.
func DetectLegalLike(text string) bool {
	low := strings.ToLower(text)
	count := 0
	for _, kw := range legalKeywords {
		if strings.Contains(low, kw) {
			count++
		}
	}
	return count >= legalThreshold
}

// maxKeywords bounds the keyword list on a quick summary.
const maxKeywords = 15

// minKeywordLen filters out short function words.
const minKeywordLen = 5

// stopLike are frequent document-boilerplate tokens excluded from keywords.
var stopLike = map[string]bool{
	"section": true, "shall": true, "including": true,
	"included": true, "thereof": true, "hereby": true,
}

var tokenRe = regexp.MustCompile(`\b[A-Za-z\-']+\b`)

// Keywords returns up to n of the most frequent substantive tokens in the
// text, lowercased, most frequent first. Ties break alphabetically so the
// result is deterministic.
func Keywords(text string, n int) []string {
	counts := make(map[string]int)
	for _, tok := range tokenRe.FindAllString(text, -1) {
		tok = strings.ToLower(tok)
		if len(tok) < minKeywordLen || stopLike[tok] {
			continue
		}
		counts[tok]++
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}
