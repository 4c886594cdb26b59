// Package normalize tokenizes and cleans strings for comparison.
// It is the leaf dependency of affiliation matching: lowercase, strip
// punctuation, drop generic stopwords, split on whitespace, return a set.
package normalize

import (
	"strings"
	"unicode"
)

// DefaultStopwords are generic words that carry no identity signal in
// institution names. The list is configuration, not algorithm; callers can
// replace it wholesale via NewNormalizer.
var DefaultStopwords = []string{
	"a", "an", "and", "at", "de", "for", "in", "of", "the",
	"center", "centre", "co", "college", "company", "corp", "corporation",
	"department", "dept", "faculty", "foundation", "gmbh", "group", "inc",
	"institute", "international", "lab", "laboratory", "llc", "ltd",
	"school", "society", "university",
}

// Normalizer turns free text into a set of substantive tokens.
// The zero value is not usable; construct with NewNormalizer.
type Normalizer struct {
	stopwords map[string]bool
}

// NewNormalizer builds a Normalizer with the given stopword list.
// A nil or empty list means no stopword filtering.
func NewNormalizer(stopwords []string) *Normalizer {
	set := make(map[string]bool, len(stopwords))
	for _, w := range stopwords {
		set[strings.ToLower(w)] = true
	}
	return &Normalizer{stopwords: set}
}

// Default returns a Normalizer with the built-in stopword list.
func Default() *Normalizer {
	return NewNormalizer(DefaultStopwords)
}

// Tokens normalizes text into a set of lowercase, punctuation-free,
// non-stopword tokens. Empty or all-stopword input yields an empty set;
// there are no error conditions.
func (n *Normalizer) Tokens(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, word := range splitWords(text) {
		if word == "" || n.stopwords[word] {
			continue
		}
		tokens[word] = true
	}
	return tokens
}

// Key produces a canonical single-string form of text: the normalization
// applied without stopword removal, tokens joined by single spaces. Used
// for case-insensitive name bucketing where "J. Smith" and "j smith" must
// land in the same bucket.
func (n *Normalizer) Key(text string) string {
	return strings.Join(splitWords(text), " ")
}

// splitWords lowercases text, strips punctuation, and splits on whitespace.
// Punctuation inside a word ("O'Brien", "e-mail") is dropped rather than
// treated as a separator, so "O'Brien" yields "obrien".
func splitWords(text string) []string {
	var words []string
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			if b.Len() > 0 {
				words = append(words, b.String())
				b.Reset()
			}
		}
		// Punctuation and symbols are dropped.
	}
	if b.Len() > 0 {
		words = append(words, b.String())
	}
	return words
}
