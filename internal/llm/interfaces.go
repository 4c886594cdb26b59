// Package llm provides the external-collaborator contracts of the core:
// mention extraction, query parsing, and embedding generation. The
// collaborators are inherently non-deterministic, so the rest of the
// system depends only on these interfaces and is tested with
// hand-constructed inputs rather than live calls.
package llm

import (
	"context"

	"github.com/podium-hq/podium/pkg/types"
)

// MentionExtractor extracts candidate speaker mentions from raw event text,
// stamping each with the source event ID. An event with no recognizable
// people yields an empty list, not an error.
type MentionExtractor interface {
	ExtractMentions(ctx context.Context, eventText, eventID string) ([]types.CandidateMention, error)
}

// QueryParser turns a natural-language speaker search into a structured
// Query with hard requirements and weighted soft preferences.
type QueryParser interface {
	ParseQuery(ctx context.Context, text string) (*types.Query, error)
}

// Embedder generates vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}
