package engine

import (
	"context"
	"fmt"

	"github.com/podium-hq/podium/internal/llm"
	"github.com/podium-hq/podium/internal/ranking"
	"github.com/podium-hq/podium/internal/storage"
	"github.com/podium-hq/podium/pkg/types"
)

// defaultShortlistSize is how many candidates the vector retrieval step
// hands to the ranking engine when not configured otherwise.
const defaultShortlistSize = 50

// DiscoveryResult is a fully answered speaker search.
type DiscoveryResult struct {
	Query      *types.Query            `json:"query"`
	Candidates []types.ScoredCandidate `json:"candidates"`
}

// Discovery answers natural-language speaker searches: parse the query,
// embed it, shortlist by vector similarity with hard requirements as
// retrieval filters, then rank the shortlist with explanations. It is
// read-only and safe for concurrent use.
type Discovery struct {
	store     storage.Store
	parser    llm.QueryParser
	embedder  llm.Embedder
	ranker    *ranking.Engine
	shortlist int
}

// DiscoveryConfig bundles the Discovery engine's collaborators.
type DiscoveryConfig struct {
	Store    storage.Store
	Parser   llm.QueryParser
	Embedder llm.Embedder

	// ShortlistSize defaults to 50 when zero.
	ShortlistSize int
}

// NewDiscovery creates a discovery engine.
func NewDiscovery(cfg DiscoveryConfig) (*Discovery, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("engine: store is required")
	}
	if cfg.Parser == nil || cfg.Embedder == nil {
		return nil, fmt.Errorf("engine: query parser and embedder are required")
	}
	shortlist := cfg.ShortlistSize
	if shortlist <= 0 {
		shortlist = defaultShortlistSize
	}
	return &Discovery{
		store:     cfg.Store,
		parser:    cfg.Parser,
		embedder:  cfg.Embedder,
		ranker:    ranking.NewEngine(cfg.Store),
		shortlist: shortlist,
	}, nil
}

// Discover answers one speaker search. An empty candidate pool yields an
// empty (non-nil) result list, never an error.
func (d *Discovery) Discover(ctx context.Context, queryText string) (*DiscoveryResult, error) {
	query, err := d.parser.ParseQuery(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("engine: query parsing failed: %w", err)
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}
	return d.DiscoverParsed(ctx, query)
}

// DiscoverParsed answers a search for an already-parsed query.
func (d *Discovery) DiscoverParsed(ctx context.Context, query *types.Query) (*DiscoveryResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	vector, err := d.embedder.Embed(ctx, query.Text)
	if err != nil {
		return nil, fmt.Errorf("engine: query embedding failed: %w", err)
	}

	matches, err := d.store.SimilaritySearch(ctx, vector, query.HardRequirements, d.shortlist)
	if err != nil {
		return nil, fmt.Errorf("engine: similarity search failed: %w", err)
	}

	candidates := make([]ranking.Candidate, len(matches))
	for i, m := range matches {
		candidates[i] = ranking.Candidate{SpeakerID: m.SpeakerID, SemanticScore: m.Score}
	}

	ranked, err := d.ranker.Rank(ctx, query, candidates)
	if err != nil {
		return nil, err
	}
	return &DiscoveryResult{Query: query, Candidates: ranked}, nil
}
