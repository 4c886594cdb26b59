package ranking

import (
	"math"
	"strings"
	"testing"

	"github.com/podium-hq/podium/pkg/types"
)

func attr(kind types.AttributeKind, value string) types.Attribute {
	return types.Attribute{Kind: kind, Value: value, Confidence: 0.9}
}

func pref(kind types.AttributeKind, value string, weight float64) types.Preference {
	return types.Preference{Type: kind, Value: value, Weight: weight}
}

func TestScorePreferences_NoPreferencesIsNeutral(t *testing.T) {
	score, explanations := ScorePreferences([]types.Attribute{attr(types.AttrLanguage, "english")}, nil)
	if score != 0.5 {
		t.Errorf("score = %g, want exactly 0.5", score)
	}
	if len(explanations) != 0 {
		t.Errorf("explanations = %v, want none", explanations)
	}
}

func TestScorePreferences_AllMatched(t *testing.T) {
	attrs := []types.Attribute{
		attr(types.AttrDemographic, "female"),
		attr(types.AttrLocation, "europe"),
	}
	prefs := []types.Preference{
		pref(types.AttrDemographic, "female", 0.7),
		pref(types.AttrLocation, "europe", 0.7),
	}

	score, explanations := ScorePreferences(attrs, prefs)
	if score != 1.0 {
		t.Errorf("score = %g, want 1.0", score)
	}
	if len(explanations) != 2 {
		t.Fatalf("explanations = %v, want 2", explanations)
	}
	for _, e := range explanations {
		if !strings.HasPrefix(e, "✓") {
			t.Errorf("explanation %q should be a match mark", e)
		}
	}
}

func TestScorePreferences_AllUnknownIsNeutral(t *testing.T) {
	prefs := []types.Preference{
		pref(types.AttrDemographic, "female", 0.7),
		pref(types.AttrLocation, "europe", 0.7),
	}

	// A speaker with no decidable attributes must be perfectly neutral:
	// missing data alone never biases ranking.
	score, explanations := ScorePreferences(nil, prefs)
	if score != 0.5 {
		t.Errorf("score = %g, want neutral 0.5", score)
	}
	for _, e := range explanations {
		if !strings.Contains(e, "no data") {
			t.Errorf("explanation %q should note missing data", e)
		}
	}
}

func TestScorePreferences_UnknownWeighsHalfOfMismatch(t *testing.T) {
	// One matched (0.6) plus one unknown (0.4): 0.6 / (0.6 + 0.2) = 0.75.
	unknownCase, _ := ScorePreferences(
		[]types.Attribute{attr(types.AttrDemographic, "female")},
		[]types.Preference{
			pref(types.AttrDemographic, "female", 0.6),
			pref(types.AttrLocation, "europe", 0.4),
		},
	)
	if math.Abs(unknownCase-0.75) > 1e-9 {
		t.Errorf("unknown case score = %g, want 0.75", unknownCase)
	}

	// Same but a confirmed mismatch: 0.6 / (0.6 + 0.4) = 0.6.
	mismatchCase, _ := ScorePreferences(
		[]types.Attribute{
			attr(types.AttrDemographic, "female"),
			attr(types.AttrLocation, "north america"),
		},
		[]types.Preference{
			pref(types.AttrDemographic, "female", 0.6),
			pref(types.AttrLocation, "europe", 0.4),
		},
	)
	if math.Abs(mismatchCase-0.6) > 1e-9 {
		t.Errorf("mismatch case score = %g, want 0.6", mismatchCase)
	}

	if unknownCase <= mismatchCase {
		t.Error("unknown data must penalize less than a confirmed mismatch")
	}
}

func TestScorePreferences_MismatchExplanationShowsActualValue(t *testing.T) {
	_, explanations := ScorePreferences(
		[]types.Attribute{attr(types.AttrLocation, "north america")},
		[]types.Preference{pref(types.AttrLocation, "europe", 0.5)},
	)
	if len(explanations) != 1 {
		t.Fatalf("explanations = %v, want 1", explanations)
	}
	if !strings.HasPrefix(explanations[0], "✗") || !strings.Contains(explanations[0], "north america") {
		t.Errorf("explanation %q should show the actual value with a mismatch mark", explanations[0])
	}
}

func TestScorePreferences_RegionMatchForLocation(t *testing.T) {
	attrs := []types.Attribute{{
		Kind:       types.AttrLocation,
		Value:      "Berlin",
		Region:     "europe",
		Confidence: 0.9,
	}}

	score, _ := ScorePreferences(attrs, []types.Preference{pref(types.AttrLocation, "europe", 0.5)})
	if score != 1.0 {
		t.Errorf("score = %g, want 1.0 for same-region location", score)
	}
}

func TestScorePreferences_UnknownTypeIsNoOp(t *testing.T) {
	prefs := []types.Preference{
		{Type: "zodiac_sign", Value: "libra", Weight: 0.9},
	}

	score, explanations := ScorePreferences(nil, prefs)
	if score != 0.5 {
		t.Errorf("score = %g, want neutral 0.5 when only unknown types given", score)
	}
	if len(explanations) != 0 {
		t.Errorf("explanations = %v, want none for unknown preference type", explanations)
	}
}
