// Package reranker rescores retrieval candidates against a query.
//
// The lexical implementation measures term overlap between the query and a
// candidate's text. It runs in-process with no model dependency, which keeps
// the rerank stage cheap enough to apply on every retrieval when enabled.
package reranker

import (
	"context"
	"strings"
)

// Lexical scores candidates by the fraction of query terms that appear in
// the candidate text, after lowercasing and stopword removal. Scores range
// from 0 to 1.
type Lexical struct{}

// NewLexical creates a lexical overlap reranker.
func NewLexical() *Lexical {
	return &Lexical{}
}

// Score returns the ratio of distinct query terms found in candidate.
// A query with no scorable terms yields 0.
func (r *Lexical) Score(ctx context.Context, query, candidate string) (float32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return 0, nil
	}

	candidateSet := make(map[string]struct{})
	for _, t := range tokenize(candidate) {
		candidateSet[t] = struct{}{}
	}

	matched := make(map[string]struct{})
	for _, t := range queryTokens {
		if _, ok := candidateSet[t]; ok {
			matched[t] = struct{}{}
		}
	}

	unique := make(map[string]struct{})
	for _, t := range queryTokens {
		unique[t] = struct{}{}
	}

	return float32(len(matched)) / float32(len(unique)), nil
}

// tokenize lowercases text and splits it into terms, dropping stopwords and
// tokens shorter than three characters.
func tokenize(text string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	})

	filtered := tokens[:0]
	for _, t := range tokens {
		if len(t) > 2 && !stopwords[t] {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_'
}

var stopwords = map[string]bool{
	"the": true, "and": true, "but": true, "for": true, "with": true,
	"from": true, "was": true, "are": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "does": true, "did": true,
	"will": true, "would": true, "could": true, "should": true, "may": true,
	"might": true, "can": true, "this": true, "that": true, "these": true,
	"those": true, "you": true, "she": true, "they": true, "what": true,
	"which": true, "who": true, "when": true, "where": true, "why": true,
	"how": true, "not": true,
}
