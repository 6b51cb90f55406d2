// internal/bot/assist/lang.go
package assist

import "unicode"

// DetectLang guesses the language of a text from its dominant script.
// Heuristic only: Latin-script languages all come back as "en", which is
// good enough to decide whether a translation pass is needed.
func DetectLang(text string) string {
	counts := map[string]int{}
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			counts["zh"]++
		case unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			counts["ja"]++
		case unicode.Is(unicode.Hangul, r):
			counts["ko"]++
		case unicode.Is(unicode.Cyrillic, r):
			counts["ru"]++
		case unicode.Is(unicode.Arabic, r):
			counts["ar"]++
		case unicode.Is(unicode.Devanagari, r):
			counts["hi"]++
		case unicode.Is(unicode.Latin, r):
			counts["en"]++
		}
	}

	best, bestCount := "en", 0
	for lang, count := range counts {
		if count > bestCount {
			best, bestCount = lang, count
		}
	}
	return best
}
