// Package textnorm turns raw message text into the token stream used for
// word counting.
package textnorm

import (
	"strings"
	"unicode"
)

// Normalizer lowercases text, keeps only ASCII letters and whitespace and
// removes stopwords. It is safe for concurrent use.
type Normalizer struct {
	stopwords StopwordSet
}

func New(stopwords StopwordSet) *Normalizer {
	if stopwords == nil {
		stopwords = StopwordSet{}
	}
	return &Normalizer{stopwords: stopwords}
}

// Normalize returns the space-joined tokens of text that survive filtering.
// Non-Latin scripts are dropped entirely.
func (n *Normalizer) Normalize(text string) string {
	return strings.Join(n.Tokens(text), " ")
}

// Tokens is Normalize without the final join.
func (n *Normalizer) Tokens(text string) []string {
	letters := strings.Map(keepLetterOrSpace, text)
	fields := strings.Fields(strings.ToLower(letters))
	tokens := fields[:0]
	for _, f := range fields {
		if n.stopwords.Contains(f) {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func keepLetterOrSpace(r rune) rune {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return r
	case unicode.IsSpace(r):
		return r
	}
	return -1
}
