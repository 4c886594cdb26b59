package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/podium-hq/podium/pkg/types"
)

// rawMention mirrors the JSON shape the extraction prompt asks for.
type rawMention struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Affiliation string `json:"affiliation"`
	Bio         string `json:"bio"`
}

// rawQuery mirrors the JSON shape the query prompt asks for.
type rawQuery struct {
	RequestedCount   int `json:"requested_count"`
	HardRequirements []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"hard_requirements"`
	SoftPreferences []struct {
		Type   string  `json:"type"`
		Value  string  `json:"value"`
		Weight float64 `json:"weight"`
	} `json:"soft_preferences"`
}

// parseMentionsResponse parses the LLM extraction response into candidate
// mentions. Mentions with neither name nor affiliation are dropped; they
// carry no resolvable signal. An empty array is a valid response.
func parseMentionsResponse(response, eventID string) ([]types.CandidateMention, error) {
	payload, err := extractJSON(response, '[')
	if err != nil {
		return nil, fmt.Errorf("llm: mentions response: %w", err)
	}

	var raws []rawMention
	if err := json.Unmarshal([]byte(payload), &raws); err != nil {
		return nil, fmt.Errorf("llm: parse mentions JSON: %w", err)
	}

	mentions := make([]types.CandidateMention, 0, len(raws))
	for _, r := range raws {
		if strings.TrimSpace(r.Name) == "" && strings.TrimSpace(r.Affiliation) == "" {
			continue
		}
		mentions = append(mentions, types.CandidateMention{
			RawName:        strings.TrimSpace(r.Name),
			RawTitle:       strings.TrimSpace(r.Title),
			RawAffiliation: strings.TrimSpace(r.Affiliation),
			RawBio:         strings.TrimSpace(r.Bio),
			SourceEventID:  eventID,
		})
	}
	return mentions, nil
}

// parseQueryResponse parses the LLM query-parsing response into a Query.
// Out-of-range weights are repaired rather than rejected: weights above 1
// clamp to 1, weights at or below 0 drop the preference. The original
// query text is preserved for semantic retrieval.
func parseQueryResponse(response, originalText string) (*types.Query, error) {
	payload, err := extractJSON(response, '{')
	if err != nil {
		return nil, fmt.Errorf("llm: query response: %w", err)
	}

	var raw rawQuery
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("llm: parse query JSON: %w", err)
	}

	query := &types.Query{
		Text:           originalText,
		RequestedCount: raw.RequestedCount,
	}
	if query.RequestedCount < 0 {
		query.RequestedCount = 0
	}
	for _, h := range raw.HardRequirements {
		if h.Value == "" {
			continue
		}
		query.HardRequirements = append(query.HardRequirements, types.Requirement{
			Type:  types.AttributeKind(strings.ToLower(h.Type)),
			Value: h.Value,
		})
	}
	for _, s := range raw.SoftPreferences {
		if s.Value == "" || s.Weight <= 0 {
			continue
		}
		weight := s.Weight
		if weight > 1 {
			weight = 1
		}
		query.SoftPreferences = append(query.SoftPreferences, types.Preference{
			Type:   types.AttributeKind(strings.ToLower(s.Type)),
			Value:  s.Value,
			Weight: weight,
		})
	}
	return query, nil
}

// extractJSON pulls the first JSON value opening with the given delimiter
// out of an LLM response, tolerating markdown code fences and surrounding
// prose. It matches the closing delimiter by depth, respecting strings.
func extractJSON(response string, open byte) (string, error) {
	text := strings.TrimSpace(response)

	start := strings.IndexByte(text, open)
	if start < 0 {
		return "", fmt.Errorf("no JSON %q found in response", string(open))
	}

	var closer byte = '}'
	if open == '[' {
		closer = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// characters inside strings don't affect depth
		case c == open:
			depth++
		case c == closer:
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unterminated JSON in response")
}
