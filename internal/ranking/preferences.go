// Package ranking turns a candidate shortlist into a deterministic,
// explainable ordered result list. It combines externally supplied semantic
// similarity with soft-preference scoring and a profile-completeness
// multiplier.
package ranking

import (
	"fmt"

	"github.com/podium-hq/podium/pkg/types"
)

// neutralScore is the preference score when nothing is decidable: a query
// with no soft preferences, or a speaker with no weighable attributes, must
// never bias ranking in either direction.
const neutralScore = 0.5

// ScorePreferences computes a normalized [0,1] match score for the soft
// preferences against a speaker's attributes, plus one explanation line per
// decidable preference, in preference order.
//
// Each preference contributes its weight to a running total; matched
// preferences also contribute to the matched sum. A preference with no
// recorded attribute of its type contributes only half its weight to the
// total: absence of information is weaker negative evidence than a
// confirmed mismatch. Unknown preference types contribute nothing, which
// keeps the scorer forward-compatible with new types added upstream.
func ScorePreferences(attrs []types.Attribute, prefs []types.Preference) (float64, []string) {
	var matchedWeight, totalWeight float64
	var explanations []string
	decidable := false

	for _, pref := range prefs {
		if !types.KnownAttributeKind(pref.Type) {
			continue
		}

		matched, value, known := lookupAttribute(attrs, pref)
		switch {
		case matched:
			decidable = true
			matchedWeight += pref.Weight
			totalWeight += pref.Weight
			explanations = append(explanations,
				fmt.Sprintf("✓ %s: %s (weight %.2f)", pref.Type, value, pref.Weight))
		case known:
			decidable = true
			totalWeight += pref.Weight
			explanations = append(explanations,
				fmt.Sprintf("✗ %s: wanted %s, has %s (weight %.2f)", pref.Type, pref.Value, value, pref.Weight))
		default:
			totalWeight += pref.Weight / 2
			explanations = append(explanations,
				fmt.Sprintf("? %s: wanted %s, no data", pref.Type, pref.Value))
		}
	}

	// Perfectly neutral when there is nothing to weigh at all OR when the
	// speaker has no decidable attribute for any preference: absence of
	// information must never bias ranking on its own.
	if totalWeight == 0 || !decidable {
		return neutralScore, explanations
	}
	return matchedWeight / totalWeight, explanations
}

// lookupAttribute finds how a preference fares against the speaker's
// attributes of its kind. It returns whether any attribute matched, the
// value to show in the explanation (the matched value, or the primary /
// first recorded value on a mismatch), and whether any attribute of the
// kind exists at all.
func lookupAttribute(attrs []types.Attribute, pref types.Preference) (matched bool, value string, known bool) {
	var fallback string
	for i := range attrs {
		a := &attrs[i]
		if a.Kind != pref.Type {
			continue
		}
		known = true
		if a.Matches(pref.Value) {
			return true, a.Value, true
		}
		if fallback == "" || a.IsPrimary {
			fallback = a.Value
		}
	}
	return false, fallback, known
}
