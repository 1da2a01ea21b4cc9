// Package chunker splits document text into retrieval-sized chunks.
//
// The splitter is heading-aware: a paragraph consisting of only a section
// heading is merged with the paragraph that follows it, so a clause never
// gets separated from its title. Oversized blocks fall back to sentence
// splitting and, as a last resort, a fixed-stride sliding window, which
// bounds every chunk's size and guarantees termination on pathological
// input with no paragraph structure.
package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Default chunking parameters, in characters.
const (
	DefaultTargetSize = 1000
	DefaultOverlap    = 200
)

// Chunk is one piece of a split document.
type Chunk struct {
	// ID is a freshly generated UUID, unique per call.
	ID string

	// Text is the chunk content.
	Text string
}

var (
	paragraphSep   = regexp.MustCompile(`\n{2,}`)
	sectionKeyword = regexp.MustCompile(`(?i)^(section|article|chapter|clause)\b`)
	numberedSect   = regexp.MustCompile(`^\d+(\.\d+)\s[-:]?`)
	sentenceEnd    = regexp.MustCompile(`([.?!])\s+`)
)

// Split divides text into chunks of at most targetSize characters, with
// consecutive sliding-window chunks sharing overlap characters. Empty or
// whitespace-only input yields an empty slice. targetSize must exceed
// overlap, and overlap must be non-negative.
func Split(text string, targetSize, overlap int) ([]Chunk, error) {
	if overlap < 0 {
		return nil, fmt.Errorf("chunker: overlap must be non-negative, got %d", overlap)
	}
	if targetSize <= overlap {
		return nil, fmt.Errorf("chunker: target size %d must exceed overlap %d", targetSize, overlap)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	blocks := splitBlocks(text)

	// Degenerate case: a long document with almost no paragraph structure.
	// Slide a fixed window over the raw text instead of merging blocks.
	if len(blocks) <= 2 && runeLen(text) > targetSize*3/2 {
		return attachIDs(slidingWindow(text, targetSize, overlap)), nil
	}

	merged := mergeBlocks(blocks, targetSize)

	// Any merged chunk still over budget gets the window treatment.
	var pieces []string
	for _, m := range merged {
		if runeLen(m) <= targetSize {
			pieces = append(pieces, m)
		} else {
			pieces = append(pieces, slidingWindow(m, targetSize, overlap)...)
		}
	}

	return attachIDs(dedupeByPrefix(pieces)), nil
}

// splitBlocks breaks normalized text into paragraph blocks, merging each
// heading-only paragraph with the paragraph after it.
func splitBlocks(text string) []string {
	var paras []string
	for _, p := range paragraphSep.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paras = append(paras, p)
		}
	}

	var blocks []string
	for i := 0; i < len(paras); i++ {
		p := paras[i]
		if isHeading(p) && !strings.Contains(p, "\n") && i+1 < len(paras) {
			blocks = append(blocks, p+"\n\n"+paras[i+1])
			i++
			continue
		}
		blocks = append(blocks, p)
	}
	return blocks
}

// isHeading reports whether line looks like a section heading: a legal
// section keyword, a numbered section like "1.2 -", or a short line in
// full upper case.
func isHeading(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if sectionKeyword.MatchString(line) {
		return true
	}
	if numberedSect.MatchString(line) {
		return true
	}
	if isUpper(line) {
		if n := len(strings.Fields(line)); n >= 1 && n <= 8 {
			return true
		}
	}
	return false
}

// isUpper reports whether s contains at least one letter and no lower-case
// letters.
func isUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

// mergeBlocks greedily packs consecutive blocks into chunks of at most
// targetSize characters. A single block over 1.5x the budget is first split
// at sentence boundaries and the fragments re-packed under the same budget.
func mergeBlocks(blocks []string, targetSize int) []string {
	var merged []string
	current := ""

	flush := func() {
		if c := strings.TrimSpace(current); c != "" {
			merged = append(merged, c)
		}
		current = ""
	}

	appendFragment := func(frag, sep string) {
		switch {
		case current == "":
			current = frag
		case runeLen(current)+runeLen(frag)+len(sep) <= targetSize:
			current = current + sep + frag
		default:
			flush()
			current = frag
		}
	}

	for _, b := range blocks {
		if runeLen(b) > targetSize*3/2 {
			flush()
			for _, s := range splitSentences(b) {
				appendFragment(s, " ")
			}
			flush()
			continue
		}
		appendFragment(b, "\n\n")
	}
	flush()
	return merged
}

// splitSentences splits text after sentence-ending punctuation followed by
// whitespace, keeping the punctuation with the preceding sentence.
func splitSentences(text string) []string {
	marked := sentenceEnd.ReplaceAllString(text, "$1\x00")
	var out []string
	for _, s := range strings.Split(marked, "\x00") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// slidingWindow slices text into windowSize-character pieces advancing by
// windowSize-overlap each step, so consecutive pieces share overlap
// characters.
func slidingWindow(text string, windowSize, overlap int) []string {
	runes := []rune(text)
	stride := windowSize - overlap
	if stride < 1 {
		stride = 1
	}

	var out []string
	for idx := 0; idx < len(runes); idx += stride {
		end := idx + windowSize
		if end > len(runes) {
			end = len(runes)
		}
		if piece := strings.TrimSpace(string(runes[idx:end])); piece != "" {
			out = append(out, piece)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

// dedupeByPrefix drops chunks whose first 300 characters repeat an earlier
// chunk's prefix. Overlapping windows over repetitive text produce such
// duplicates.
func dedupeByPrefix(pieces []string) []string {
	seen := make(map[string]struct{}, len(pieces))
	out := pieces[:0]
	for _, p := range pieces {
		key := p
		if runes := []rune(p); len(runes) > 300 {
			key = string(runes[:300])
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

func attachIDs(pieces []string) []Chunk {
	chunks := make([]Chunk, 0, len(pieces))
	for _, p := range pieces {
		chunks = append(chunks, Chunk{ID: uuid.NewString(), Text: p})
	}
	return chunks
}

func runeLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}
