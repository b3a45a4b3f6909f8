package usecase

import (
	"strings"
	"unicode"
)

// extractTerms lowercases the query and splits it into alphanumeric terms,
// dropping single-character noise.
func extractTerms(s string) []string {
	if s == "" {
		return nil
	}
	terms := make([]string, 0, 16)
	var b strings.Builder
	flush := func() {
		if b.Len() > 1 {
			terms = append(terms, b.String())
		}
		b.Reset()
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		flush()
	}
	flush()
	return terms
}

// highlightTerms wraps case-insensitive whole-word matches of the query
// terms in the neutral highlight markers.
func highlightTerms(text string, terms []string) string {
	if text == "" || len(terms) == 0 {
		return text
	}
	termSet := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		termSet[t] = struct{}{}
	}

	var out strings.Builder
	out.Grow(len(text) + 16)
	var word strings.Builder

	flushWord := func() {
		if word.Len() == 0 {
			return
		}
		w := word.String()
		if _, hit := termSet[strings.ToLower(w)]; hit {
			out.WriteString(HighlightOpen)
			out.WriteString(w)
			out.WriteString(HighlightClose)
		} else {
			out.WriteString(w)
		}
		word.Reset()
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			word.WriteRune(r)
			continue
		}
		flushWord()
		out.WriteRune(r)
	}
	flushWord()
	return out.String()
}
