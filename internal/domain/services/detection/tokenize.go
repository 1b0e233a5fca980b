package detection

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// lowerGerman lower-cases with German rules. A Caser carries state, so a
// fresh one is built per call.
func lowerGerman(s string) string {
	return cases.Lower(language.German).String(s)
}

// tokenize splits text into word tokens. Hyphens inside a word are kept so
// compounds like "vorher-nachher" stay one token; punctuation is dropped.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_'
	})

	tokens := fields[:0]
	for _, f := range fields {
		if f = strings.Trim(f, "-"); f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// clip cuts text to at most max bytes on a rune boundary. max <= 0 disables it.
func clip(text string, max int) (string, bool) {
	if max <= 0 || len(text) <= max {
		return text, false
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut], true
}
