// Package identity implements speaker identity resolution: affiliation
// matching, mention-to-speaker resolution, and the periodic merge sweep.
package identity

import (
	"github.com/podium-hq/podium/internal/normalize"
)

// Matcher decides whether two affiliation strings plausibly refer to the
// same institution. Affiliations are entered inconsistently across events
// ("NYU" vs. "New York University" vs. "New York University School of
// Law"), so the test is token overlap after stopword removal and
// configurable abbreviation expansion. Full abbreviation inference is out
// of scope; unknown abbreviations are a configuration problem, not a code
// problem.
type Matcher struct {
	norm     *normalize.Normalizer
	synonyms map[string][]string
}

// NewMatcher builds a Matcher from a stopword list and a synonym map.
// The synonym map expands whole tokens ("nyu" -> [new, york, university])
// before comparison; expansion tokens pass through the same stoplist as
// everything else.
func NewMatcher(stopwords []string, synonyms map[string][]string) *Matcher {
	return &Matcher{
		norm:     normalize.NewNormalizer(stopwords),
		synonyms: synonyms,
	}
}

// Overlaps reports whether the substantive tokens of the two affiliations
// intersect after synonym expansion. Either side being empty (or reducing
// to nothing but stopwords) means no overlap.
func (m *Matcher) Overlaps(affA, affB string) bool {
	a := m.expand(m.norm.Tokens(affA))
	if len(a) == 0 {
		return false
	}
	b := m.expand(m.norm.Tokens(affB))

	for token := range b {
		if a[token] {
			return true
		}
	}
	return false
}

// Tokens exposes the matcher's normalized, synonym-expanded token set for
// an affiliation. The merge sweep unions these per speaker and clusters
// same-named speakers by set intersection.
func (m *Matcher) Tokens(aff string) map[string]bool {
	return m.expand(m.norm.Tokens(aff))
}

// NameKey returns the canonical bucket key for a display name. Name keys
// never go through the stoplist — "University" in a person's name would be
// odd, but losing name words to an affiliation stoplist would be worse.
func (m *Matcher) NameKey(name string) string {
	return m.norm.Key(name)
}

// expand applies the synonym map to a token set: each token with a known
// expansion contributes its expansion tokens (stoplist-filtered) alongside
// the original.
func (m *Matcher) expand(tokens map[string]bool) map[string]bool {
	expanded := make(map[string]bool, len(tokens))
	for token := range tokens {
		expanded[token] = true
		for _, word := range m.synonyms[token] {
			for t := range m.norm.Tokens(word) {
				expanded[t] = true
			}
		}
	}
	return expanded
}
