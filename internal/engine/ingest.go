// Package engine orchestrates the two halves of Podium: ingestion (event
// text in, canonical speakers out) and discovery (natural-language query
// in, explained ranked speakers out). The engine owns the concurrency
// policy; the identity and ranking packages underneath are synchronous.
package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/podium-hq/podium/internal/identity"
	"github.com/podium-hq/podium/internal/llm"
	"github.com/podium-hq/podium/internal/storage"
	"github.com/podium-hq/podium/pkg/types"
)

// ActivityEvent is a single item on the live activity feed.
type ActivityEvent struct {
	Type       string    `json:"type"` // speaker_created, mention_merged, ambiguous_merge, sweep_merge
	SpeakerID  string    `json:"speaker_id"`
	EventID    string    `json:"event_id,omitempty"`
	Name       string    `json:"name,omitempty"`
	MergedFrom string    `json:"merged_from,omitempty"` // sweep_merge only: the absorbed speaker
	Timestamp  time.Time `json:"timestamp"`
}

// Activity event types.
const (
	ActivitySpeakerCreated = "speaker_created"
	ActivityMentionMerged  = "mention_merged"
	ActivityAmbiguousMerge = "ambiguous_merge"
	ActivitySweepMerge     = "sweep_merge"
)

// IngestResult summarizes what one event ingestion did.
type IngestResult struct {
	EventID    string   `json:"event_id"`
	Mentions   int      `json:"mentions"`
	SpeakerIDs []string `json:"speaker_ids"`
	Created    int      `json:"created"`
	Merged     int      `json:"merged"`
	Ambiguous  int      `json:"ambiguous"`
}

// Ingestor drives extract -> resolve for whole events. Resolution for the
// same normalized name is serialized with a per-bucket lock so concurrent
// scrape workers cannot race to create duplicate speakers, while distinct
// names proceed in parallel. The sweep takes the write side of the gate,
// which excludes it from running during active ingestion.
type Ingestor struct {
	store     storage.Store
	extractor llm.MentionExtractor
	embedder  llm.Embedder // nil disables profile embeddings
	resolver  *identity.Resolver
	matcher   *identity.Matcher
	sweeper   *identity.Sweeper

	// attributeThreshold is the minimum confidence for persisting an
	// attribute.
	attributeThreshold float64

	// gate: ingestion holds the read side, Sweep the write side.
	gate sync.RWMutex

	// bucketMu guards buckets; each bucket mutex serializes one name key.
	bucketMu sync.Mutex
	buckets  map[string]*sync.Mutex

	// onActivity, when set, receives every activity event. Called
	// synchronously; the websocket hub fans out on its own goroutines.
	activityMu sync.RWMutex
	onActivity func(ActivityEvent)
}

// IngestorConfig bundles the Ingestor's collaborators.
type IngestorConfig struct {
	Store     storage.Store
	Extractor llm.MentionExtractor
	Embedder  llm.Embedder
	Matcher   *identity.Matcher

	// AttributeConfidenceThreshold defaults to 0.5 when zero.
	AttributeConfidenceThreshold float64
}

// NewIngestor creates an ingestion engine.
func NewIngestor(cfg IngestorConfig) (*Ingestor, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("engine: store is required")
	}
	if cfg.Matcher == nil {
		return nil, fmt.Errorf("engine: matcher is required")
	}
	threshold := cfg.AttributeConfidenceThreshold
	if threshold == 0 {
		threshold = 0.5
	}
	return &Ingestor{
		store:              cfg.Store,
		extractor:          cfg.Extractor,
		embedder:           cfg.Embedder,
		resolver:           identity.NewResolver(cfg.Store, cfg.Matcher),
		matcher:            cfg.Matcher,
		sweeper:            identity.NewSweeper(cfg.Store, cfg.Matcher),
		attributeThreshold: threshold,
		buckets:            make(map[string]*sync.Mutex),
	}, nil
}

// SetActivityCallback registers the activity feed callback.
func (in *Ingestor) SetActivityCallback(fn func(ActivityEvent)) {
	in.activityMu.Lock()
	in.onActivity = fn
	in.activityMu.Unlock()
}

func (in *Ingestor) emit(event ActivityEvent) {
	in.activityMu.RLock()
	fn := in.onActivity
	in.activityMu.RUnlock()
	if fn != nil {
		event.Timestamp = time.Now().UTC()
		fn(event)
	}
}

// IngestEvent extracts mentions from raw event text and resolves each one
// against the canonical speaker store. Extraction failure is the only
// fatal error; per-mention data quality never aborts the event.
func (in *Ingestor) IngestEvent(ctx context.Context, eventID, eventText string) (*IngestResult, error) {
	if eventID == "" {
		return nil, fmt.Errorf("engine: event ID is required")
	}
	if in.extractor == nil {
		return nil, fmt.Errorf("engine: no mention extractor configured")
	}

	mentions, err := in.extractor.ExtractMentions(ctx, eventText, eventID)
	if err != nil {
		return nil, fmt.Errorf("engine: mention extraction failed: %w", err)
	}

	return in.IngestMentions(ctx, eventID, mentions)
}

// IngestMentions resolves pre-extracted mentions for an event. It is the
// entry point for callers that bypass LLM extraction (bulk imports, tests).
func (in *Ingestor) IngestMentions(ctx context.Context, eventID string, mentions []types.CandidateMention) (*IngestResult, error) {
	in.gate.RLock()
	defer in.gate.RUnlock()

	result := &IngestResult{EventID: eventID, Mentions: len(mentions)}
	for _, mention := range mentions {
		if mention.SourceEventID == "" {
			mention.SourceEventID = eventID
		}

		outcome, err := in.resolveSerialized(ctx, mention)
		if err != nil {
			// Storage failures are real errors, unlike data quality.
			return result, fmt.Errorf("engine: resolving %q: %w", mention.RawName, err)
		}

		result.SpeakerIDs = append(result.SpeakerIDs, outcome.SpeakerID)
		switch {
		case outcome.Created:
			result.Created++
			in.emit(ActivityEvent{Type: ActivitySpeakerCreated, SpeakerID: outcome.SpeakerID, EventID: eventID, Name: mention.RawName})
		case outcome.Ambiguous:
			result.Ambiguous++
			in.emit(ActivityEvent{Type: ActivityAmbiguousMerge, SpeakerID: outcome.SpeakerID, EventID: eventID, Name: mention.RawName})
		default:
			result.Merged++
			in.emit(ActivityEvent{Type: ActivityMentionMerged, SpeakerID: outcome.SpeakerID, EventID: eventID, Name: mention.RawName})
		}

		in.embedProfile(ctx, outcome.SpeakerID)
	}
	return result, nil
}

// resolveSerialized runs one resolution under the lock for its name bucket.
func (in *Ingestor) resolveSerialized(ctx context.Context, mention types.CandidateMention) (*identity.Outcome, error) {
	lock := in.bucketLock(in.matcher.NameKey(mention.RawName))
	lock.Lock()
	defer lock.Unlock()
	return in.resolver.Resolve(ctx, mention)
}

func (in *Ingestor) bucketLock(key string) *sync.Mutex {
	in.bucketMu.Lock()
	defer in.bucketMu.Unlock()
	lock, ok := in.buckets[key]
	if !ok {
		lock = &sync.Mutex{}
		in.buckets[key] = lock
	}
	return lock
}

// embedProfile refreshes the speaker's profile embedding. Embedding is a
// retrieval quality concern, not a correctness one, so failures only log.
func (in *Ingestor) embedProfile(ctx context.Context, speakerID string) {
	if in.embedder == nil {
		return
	}

	speaker, err := in.store.GetSpeaker(ctx, speakerID)
	if err != nil {
		log.Printf("engine: failed to load speaker %s for embedding: %v", speakerID, err)
		return
	}

	vector, err := in.embedder.Embed(ctx, profileText(speaker))
	if err != nil {
		log.Printf("engine: failed to embed speaker %s: %v", speakerID, err)
		return
	}
	if err := in.store.StoreEmbedding(ctx, speakerID, vector, in.embedder.Model()); err != nil {
		log.Printf("engine: failed to store embedding for speaker %s: %v", speakerID, err)
	}
}

// profileText builds the text a speaker is embedded under.
func profileText(speaker *types.Speaker) string {
	parts := []string{speaker.DisplayName}
	if speaker.Title != "" {
		parts = append(parts, speaker.Title)
	}
	if len(speaker.Affiliations) > 0 {
		parts = append(parts, strings.Join(speaker.Affiliations, ", "))
	}
	if speaker.Bio != "" {
		parts = append(parts, speaker.Bio)
	}
	return strings.Join(parts, "\n")
}

// RecordAttribute persists a speaker attribute, applying the confidence
// threshold. Returns true when the attribute was stored, false when it was
// dropped for low confidence.
func (in *Ingestor) RecordAttribute(ctx context.Context, attr *types.Attribute) (bool, error) {
	if attr == nil {
		return false, fmt.Errorf("%w: attribute is required", storage.ErrInvalidInput)
	}
	if attr.Confidence < in.attributeThreshold {
		log.Printf("engine: dropping %s attribute %q for speaker %s (confidence %.2f below threshold %.2f)",
			attr.Kind, attr.Value, attr.SpeakerID, attr.Confidence, in.attributeThreshold)
		return false, nil
	}
	if err := in.store.PutAttribute(ctx, attr); err != nil {
		return false, err
	}
	return true, nil
}

// Sweep runs the merge sweep with exclusive access: it waits for in-flight
// ingestion to drain and blocks new ingestion until the sweep completes.
func (in *Ingestor) Sweep(ctx context.Context) ([]identity.MergeAction, error) {
	in.gate.Lock()
	defer in.gate.Unlock()

	actions, err := in.sweeper.Sweep(ctx)
	if err != nil {
		return nil, err
	}
	for _, action := range actions {
		in.emit(ActivityEvent{Type: ActivitySweepMerge, SpeakerID: action.SurvivingID, MergedFrom: action.AbsorbedID})
	}
	return actions, nil
}
