package handlers

import (
	"github.com/podium-hq/podium/pkg/types"
)

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// IngestRequest is the request format for POST /api/events.
// Either Text (raw event page text, sent through extraction) or Mentions
// (pre-extracted) must be set. When both are set, Mentions wins.
type IngestRequest struct {
	EventID  string                   `json:"event_id"`
	Text     string                   `json:"text,omitempty"`
	Mentions []types.CandidateMention `json:"mentions,omitempty"`
}

// SearchResponse is the response format for GET /api/search.
type SearchResponse struct {
	Query      *types.Query            `json:"query"`
	Candidates []types.ScoredCandidate `json:"candidates"`
	Total      int                     `json:"total"`
}

// SpeakerProfileResponse is the response format for GET /api/speakers/{id}:
// the canonical record plus its attributes and event history.
type SpeakerProfileResponse struct {
	Speaker        *types.Speaker             `json:"speaker"`
	Attributes     []types.Attribute          `json:"attributes"`
	Participations []types.EventParticipation `json:"participations"`
}

// AttributeRequest is the request format for POST /api/speakers/{id}/attributes.
type AttributeRequest struct {
	Kind       string  `json:"kind"`
	Value      string  `json:"value"`
	Region     string  `json:"region,omitempty"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source,omitempty"`
	IsPrimary  bool    `json:"is_primary,omitempty"`
}

// AttributeResponse reports whether the attribute cleared the confidence
// threshold and was persisted.
type AttributeResponse struct {
	Stored bool `json:"stored"`
}

// ResolveAuditRequest is the request format for POST /api/audit/{id}/resolve.
type ResolveAuditRequest struct {
	Notes string `json:"notes"`
}

// SweepResponse is the response format for POST /api/sweep.
type SweepResponse struct {
	Merges []SweepMerge `json:"merges"`
	Total  int          `json:"total"`
}

// SweepMerge is one merge performed by the sweep.
type SweepMerge struct {
	SurvivingID string `json:"surviving_id"`
	AbsorbedID  string `json:"absorbed_id"`
}
