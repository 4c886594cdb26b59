package types

import (
	"strings"
	"time"
)

// AttributeKind discriminates the variants of a speaker attribute.
// Demographics, locations, and languages have different matching semantics
// but share a common confidence/source envelope.
type AttributeKind string

// Supported attribute kinds.
const (
	AttrDemographic AttributeKind = "demographic"
	AttrLocation    AttributeKind = "location"
	AttrLanguage    AttributeKind = "language"
)

// KnownAttributeKind reports whether k is one of the supported kinds.
// Unknown kinds are tolerated everywhere (forward compatibility with new
// preference types added upstream) but score as no-ops.
func KnownAttributeKind(k AttributeKind) bool {
	switch k {
	case AttrDemographic, AttrLocation, AttrLanguage:
		return true
	}
	return false
}

// Attribute is a single tagged attribute value for a speaker.
// Multiple values per kind are allowed; at most one per kind is primary.
// Attributes below the configured confidence threshold are never persisted.
type Attribute struct {
	SpeakerID string        `json:"speaker_id"`
	Kind      AttributeKind `json:"kind"`
	Value     string        `json:"value"`

	// Region is the declared region for location attributes (e.g. a
	// "Berlin" location may declare region "europe"). Preference matching
	// treats a location preference as matched when it equals either the
	// value or the region. Empty for non-location kinds.
	Region string `json:"region,omitempty"`

	// Confidence is the extraction confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// Source names where the attribute came from (e.g. "bio_extraction").
	Source string `json:"source,omitempty"`

	IsPrimary bool      `json:"is_primary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Matches reports whether the attribute satisfies a preference value.
// Comparison is case-insensitive on Value; location attributes also match
// on their declared region.
func (a *Attribute) Matches(value string) bool {
	if strings.EqualFold(a.Value, value) {
		return true
	}
	if a.Kind == AttrLocation && a.Region != "" && strings.EqualFold(a.Region, value) {
		return true
	}
	return false
}
