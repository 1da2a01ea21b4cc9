// Package budget bounds what goes into a model prompt. Because crewmate
// supports multiple LLM backends with different tokenizers, estimation uses
// a conservative character-based heuristic: 1 token ≈ 4 characters (English
// prose). This deliberately under-estimates token counts to leave headroom
// for model-specific overhead.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English prose; using 3
	// would be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// truncationMarker replaces the elided middle of an oversized context.
	truncationMarker = "\n\n...[TRUNCATED]...\n\n"
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// TruncateMiddle caps s at roughly maxChars characters by keeping the head
// and tail halves and replacing the middle with a truncation marker. Chunk
// context front-loads the best matches and documents often put key clauses
// near the end, so both ends are worth more than the middle.
func TruncateMiddle(s string, maxChars int) string {
	if maxChars <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	half := maxChars / 2
	return string(runes[:half]) + truncationMarker + string(runes[len(runes)-half:])
}
