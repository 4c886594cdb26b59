package ranking

import (
	"context"
	"fmt"
	"sort"

	"github.com/podium-hq/podium/internal/storage"
	"github.com/podium-hq/podium/pkg/types"
)

// Scoring weights. The fixed 60/40 split guarantees soft preferences always
// contribute a bounded, predictable share of the score regardless of
// semantic-score spread. An earlier multiplicative-bonus formulation let a
// 0.2–0.4 bonus be dwarfed by semantic variance, so preferences barely
// moved rankings; do not reintroduce it.
const (
	semanticWeight   = 0.6
	preferenceWeight = 0.4
)

// Candidate is one entry of the shortlist handed to the engine: a speaker
// and its externally computed semantic similarity.
type Candidate struct {
	SpeakerID     string
	SemanticScore float64
}

// Engine ranks candidates against a query. It reads speaker attributes and
// participation counts from the store but never mutates anything, so
// independent queries may rank in parallel.
type Engine struct {
	store storage.Store
}

// NewEngine creates a ranking engine backed by the given store.
func NewEngine(store storage.Store) *Engine {
	return &Engine{store: store}
}

// Rank scores every candidate against the query and returns an ordered,
// truncated result list.
//
// final = (semantic*0.6 + preference*0.4) * quality. Sorting is fully
// deterministic: final score descending, then semantic score descending,
// then speaker ID ascending. An empty candidate pool returns an empty
// list, not an error. Hard requirements are not scored here — they shaped
// the pool during retrieval.
func (e *Engine) Rank(ctx context.Context, query *types.Query, candidates []Candidate) ([]types.ScoredCandidate, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []types.ScoredCandidate{}, nil
	}

	scored := make([]types.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		sc, err := e.score(ctx, query, c)
		if err != nil {
			return nil, err
		}
		scored = append(scored, *sc)
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].FinalScore != scored[j].FinalScore {
			return scored[i].FinalScore > scored[j].FinalScore
		}
		if scored[i].SemanticScore != scored[j].SemanticScore {
			return scored[i].SemanticScore > scored[j].SemanticScore
		}
		return scored[i].SpeakerID < scored[j].SpeakerID
	})

	if limit := query.Limit(); len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// score computes the full breakdown for one candidate.
func (e *Engine) score(ctx context.Context, query *types.Query, c Candidate) (*types.ScoredCandidate, error) {
	speaker, err := e.store.GetSpeaker(ctx, c.SpeakerID)
	if err != nil {
		return nil, fmt.Errorf("ranking: load speaker %s: %w", c.SpeakerID, err)
	}
	attrs, err := e.store.GetAttributes(ctx, c.SpeakerID)
	if err != nil {
		return nil, fmt.Errorf("ranking: load attributes %s: %w", c.SpeakerID, err)
	}
	eventCount, err := e.store.CountParticipations(ctx, c.SpeakerID)
	if err != nil {
		return nil, fmt.Errorf("ranking: count events %s: %w", c.SpeakerID, err)
	}

	semantic := clamp01(c.SemanticScore)
	preference, explanations := ScorePreferences(attrs, query.SoftPreferences)
	quality := QualityMultiplier(speaker, attrs, eventCount)

	base := semantic*semanticWeight + preference*preferenceWeight

	return &types.ScoredCandidate{
		SpeakerID:         c.SpeakerID,
		SemanticScore:     semantic,
		PreferenceScore:   preference,
		QualityMultiplier: quality,
		FinalScore:        base * quality,
		Explanation:       explanations,
	}, nil
}

// clamp01 bounds externally supplied similarity scores to [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
