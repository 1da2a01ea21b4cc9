package ingestion

import "unicode"

// InferLanguage returns a best-effort BCP 47 language tag for text by
// counting letters per Unicode script. Explicit caller-supplied metadata
// takes precedence over this; it only fills the gap when a document arrives
// untagged. Latin-script languages other than English are not told apart,
// which matches how the metadata is used downstream (a display hint, not a
// translation decision).
func InferLanguage(text string) string {
	counts := map[string]int{}
	total := 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		total++
		switch {
		case unicode.Is(unicode.Devanagari, r):
			counts["hi"]++
		case unicode.Is(unicode.Han, r):
			counts["zh"]++
		case unicode.Is(unicode.Arabic, r):
			counts["ar"]++
		case unicode.Is(unicode.Cyrillic, r):
			counts["ru"]++
		case unicode.Is(unicode.Hangul, r):
			counts["ko"]++
		case unicode.Is(unicode.Hiragana, r), unicode.Is(unicode.Katakana, r):
			counts["ja"]++
		case unicode.Is(unicode.Latin, r):
			counts["en"]++
		}
		// Sampling the head of the document is enough to call the script.
		if total >= 4000 {
			break
		}
	}
	if total == 0 {
		return "en"
	}

	best, bestCount := "en", 0
	for lang, n := range counts {
		if n > bestCount {
			best, bestCount = lang, n
		}
	}
	// Han characters inside Japanese text: kana presence wins.
	if best == "zh" && counts["ja"] > 0 {
		best = "ja"
	}
	return best
}
