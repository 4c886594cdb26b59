package types

import (
	"errors"
	"fmt"
)

// DefaultRequestedCount is used when a query does not say how many
// speakers it wants.
const DefaultRequestedCount = 10

// Requirement is a hard, binding search criterion. Hard requirements shape
// the candidate pool during retrieval; they are never re-scored by the
// ranking engine.
type Requirement struct {
	Type  AttributeKind `json:"type"`
	Value string        `json:"value"`
}

// Preference is a weighted, non-binding search criterion
// (e.g. "ideally women", weight 0.7).
type Preference struct {
	Type   AttributeKind `json:"type"`
	Value  string        `json:"value"`
	Weight float64       `json:"weight"` // always in (0,1]
}

// Query is the structured form of a natural-language speaker search,
// produced by the external query parser.
type Query struct {
	// Text is the original query text, used for semantic retrieval.
	Text string `json:"text"`

	// RequestedCount is the number of speakers the caller wants.
	// Zero means DefaultRequestedCount.
	RequestedCount int `json:"requested_count"`

	HardRequirements []Requirement `json:"hard_requirements,omitempty"`
	SoftPreferences  []Preference  `json:"soft_preferences,omitempty"`
}

// ErrInvalidQuery is returned by Validate for structurally malformed
// queries. Data-quality problems (unknown preference types, empty
// preference lists) are not errors.
var ErrInvalidQuery = errors.New("invalid query")

// Validate checks structural soundness: a non-negative requested count and
// preference weights in (0,1]. This is the one place in the core where bad
// input fails loudly rather than degrading.
func (q *Query) Validate() error {
	if q.RequestedCount < 0 {
		return fmt.Errorf("%w: requested_count must be >= 0, got %d", ErrInvalidQuery, q.RequestedCount)
	}
	for i, p := range q.SoftPreferences {
		if p.Weight <= 0 || p.Weight > 1 {
			return fmt.Errorf("%w: soft_preferences[%d] weight %g outside (0,1]", ErrInvalidQuery, i, p.Weight)
		}
	}
	return nil
}

// Limit returns the effective result count for the query.
func (q *Query) Limit() int {
	if q.RequestedCount <= 0 {
		return DefaultRequestedCount
	}
	return q.RequestedCount
}

// ScoredCandidate is one ranked result: a speaker with its score breakdown
// and human-readable explanations suitable for direct display.
type ScoredCandidate struct {
	SpeakerID string `json:"speaker_id"`

	// SemanticScore is the externally supplied similarity in [0,1].
	SemanticScore float64 `json:"semantic_score"`

	// PreferenceScore is the soft-preference match score in [0,1].
	PreferenceScore float64 `json:"preference_score"`

	// QualityMultiplier is the profile-completeness amplifier in [1.0,1.5].
	QualityMultiplier float64 `json:"quality_multiplier"`

	// FinalScore = (semantic*0.6 + preference*0.4) * quality.
	FinalScore float64 `json:"final_score"`

	// Explanation lists, in preference order, why the candidate scored the
	// way it did.
	Explanation []string `json:"explanation,omitempty"`
}
