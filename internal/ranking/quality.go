package ranking

import "github.com/podium-hq/podium/pkg/types"

// Quality multiplier bounds and bonuses. The multiplier rewards profile
// completeness and is never a penalty: an empty profile scores exactly 1.0.
const (
	qualityFloor = 1.0
	qualityCeil  = 1.5

	bonusConfidentAttribute = 0.15 // any attribute with confidence > 0.8
	bonusAttributeCount     = 0.10 // 5 or more attributes
	bonusBioLength          = 0.10 // bio longer than 200 characters
	bonusEventCount         = 0.15 // appeared at 5 or more events
)

// QualityMultiplier computes the bounded score amplifier for a speaker from
// profile-completeness signals. The result is always within [1.0, 1.5].
func QualityMultiplier(speaker *types.Speaker, attrs []types.Attribute, eventCount int) float64 {
	m := qualityFloor

	for i := range attrs {
		if attrs[i].Confidence > 0.8 {
			m += bonusConfidentAttribute
			break
		}
	}
	if len(attrs) >= 5 {
		m += bonusAttributeCount
	}
	if speaker != nil && len(speaker.Bio) > 200 {
		m += bonusBioLength
	}
	if eventCount >= 5 {
		m += bonusEventCount
	}

	if m > qualityCeil {
		m = qualityCeil
	}
	return m
}
