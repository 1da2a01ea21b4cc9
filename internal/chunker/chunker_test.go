package chunker

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func Test_Split_TwoSections(t *testing.T) {
	t.Parallel()
	text := "SECTION 1\nParty A agrees to pay Party B.\n\nSECTION 2\nTermination requires 30 days notice."

	chunks, err := Split(text, 60, 10)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if !strings.HasPrefix(chunks[0].Text, "SECTION 1") {
		t.Errorf("chunk 0 starts with %q, want SECTION 1 prefix", firstLine(chunks[0].Text))
	}
	if !strings.HasPrefix(chunks[1].Text, "SECTION 2") {
		t.Errorf("chunk 1 starts with %q, want SECTION 2 prefix", firstLine(chunks[1].Text))
	}
}

func Test_Split_EmptyInput(t *testing.T) {
	t.Parallel()
	for _, text := range []string{"", "   ", "\n\n\t\n"} {
		chunks, err := Split(text, 100, 20)
		if err != nil {
			t.Errorf("Split(%q): %v", text, err)
		}
		if len(chunks) != 0 {
			t.Errorf("Split(%q) = %d chunks, want 0", text, len(chunks))
		}
	}
}

func Test_Split_InvalidParams(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		target  int
		overlap int
	}{
		{"negative overlap", 100, -1},
		{"overlap equals target", 100, 100},
		{"overlap exceeds target", 50, 100},
		{"zero target", 0, 0},
	}
	for _, tc := range cases {
		if _, err := Split("some text", tc.target, tc.overlap); err == nil {
			t.Errorf("%s: Split succeeded, want error", tc.name)
		}
	}
}

func Test_Split_SlidingWindowFallback(t *testing.T) {
	t.Parallel()
	// 200 characters, no paragraph breaks at all.
	text := strings.Repeat("abcdefghij", 20)

	chunks, err := Split(text, 50, 10)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 5 {
		t.Fatalf("got %d chunks, want 5", len(chunks))
	}
	if chunks[0].Text != text[:50] {
		t.Errorf("chunk 0 = %q, want first 50 chars", chunks[0].Text)
	}
	for i, c := range chunks {
		if len(c.Text) > 50 {
			t.Errorf("chunk %d has %d chars, want <= 50", i, len(c.Text))
		}
	}
	// Consecutive windows share the overlap region.
	if chunks[0].Text[40:50] != chunks[1].Text[:10] {
		t.Errorf("chunks 0 and 1 do not overlap: %q vs %q", chunks[0].Text[40:50], chunks[1].Text[:10])
	}
}

func Test_Split_HeadingMergedWithBody(t *testing.T) {
	t.Parallel()
	text := "ARTICLE 7\n\nThe tenant shall maintain the premises in good repair."

	chunks, err := Split(text, DefaultTargetSize, DefaultOverlap)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if !strings.HasPrefix(chunks[0].Text, "ARTICLE 7") {
		t.Errorf("chunk = %q, want ARTICLE 7 prefix", firstLine(chunks[0].Text))
	}
	if !strings.Contains(chunks[0].Text, "good repair") {
		t.Error("heading chunk lost its body paragraph")
	}
}

func Test_Split_OversizedBlockSplitsAtSentences(t *testing.T) {
	t.Parallel()
	sentence := "The party of the first part waives claims. "
	text := strings.TrimSpace(strings.Repeat(sentence, 6)) +
		"\n\nShort tail one.\n\nShort tail two."

	chunks, err := Split(text, 100, 20)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(chunks))
	}
	for i, c := range chunks {
		if len(c.Text) > 100 {
			t.Errorf("chunk %d has %d chars, want <= 100", i, len(c.Text))
		}
		if !strings.HasSuffix(c.Text, ".") {
			t.Errorf("chunk %d does not end at a sentence boundary: %q", i, c.Text)
		}
	}
}

func Test_Split_SizeBound(t *testing.T) {
	t.Parallel()
	inputs := []string{
		"short",
		strings.Repeat("no breaks here ", 100),
		"A.\n\nB.\n\nC.\n\n" + strings.Repeat("word ", 300),
		"SECTION 1\n" + strings.Repeat("clause text. ", 50) + "\n\nSECTION 2\nshort tail.",
	}
	const target = 120
	for _, text := range inputs {
		chunks, err := Split(text, target, 30)
		if err != nil {
			t.Fatalf("Split: %v", err)
		}
		if len(chunks) == 0 {
			t.Errorf("non-empty input produced no chunks: %q", firstLine(text))
		}
		for i, c := range chunks {
			if n := len([]rune(c.Text)); n > target*3/2 {
				t.Errorf("chunk %d has %d chars, want <= %d", i, n, target*3/2)
			}
		}
	}
}

func Test_Split_Idempotent(t *testing.T) {
	t.Parallel()
	text := "SECTION 1\nFirst clause text here.\n\nSECTION 2\nSecond clause text here.\n\n" +
		strings.Repeat("Filler sentence for bulk. ", 20)

	first, err := Split(text, 150, 30)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	second, err := Split(text, 150, 30)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("runs disagree on chunk count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Text != second[i].Text {
			t.Errorf("chunk %d text differs between runs", i)
		}
	}
}

func Test_Split_IDsAreUniqueUUIDs(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("abcdefghij", 30)

	chunks, err := Split(text, 50, 10)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	seen := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		if _, err := uuid.Parse(c.ID); err != nil {
			t.Errorf("chunk ID %q is not a UUID: %v", c.ID, err)
		}
		if _, dup := seen[c.ID]; dup {
			t.Errorf("duplicate chunk ID %q", c.ID)
		}
		seen[c.ID] = struct{}{}
	}
}

func Test_Split_DeduplicatesRepeatedParagraphs(t *testing.T) {
	t.Parallel()
	para := "This exact paragraph appears twice in the document."
	text := para + "\n\n" + "Middle filler paragraph with different words entirely, padding the block count up." + "\n\n" + para

	chunks, err := Split(text, 60, 10)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	counts := make(map[string]int)
	for _, c := range chunks {
		counts[c.Text]++
	}
	for text, n := range counts {
		if n > 1 {
			t.Errorf("chunk %q appears %d times, want 1", firstLine(text), n)
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
