package identity

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/podium-hq/podium/internal/storage"
	"github.com/podium-hq/podium/pkg/types"
)

// Resolver merges candidate mentions into canonical speakers.
//
// The matching rule is deliberately conservative: names must be equal
// (case-insensitively; no phonetic or fuzzy matching) AND affiliations must
// overlap. A false-positive merge of two distinct people is worse than a
// missed merge, so anything short of that bar creates a new speaker.
type Resolver struct {
	store   storage.Store
	matcher *Matcher
}

// NewResolver creates a resolver backed by the given store and matcher.
func NewResolver(store storage.Store, matcher *Matcher) *Resolver {
	return &Resolver{store: store, matcher: matcher}
}

// Outcome describes what Resolve did with a mention.
type Outcome struct {
	// SpeakerID is the canonical speaker the mention resolved to.
	SpeakerID string

	// Created is true when a new canonical speaker was created.
	Created bool

	// Ambiguous is true when more than one existing speaker matched and
	// the mention was merged into the earliest-created one.
	Ambiguous bool

	// AuditID is the audit entry recorded for an ambiguous merge.
	AuditID string
}

// Resolve decides whether the mention refers to an existing canonical
// speaker or is new, merging or creating accordingly, and links the source
// event to the resolved speaker.
//
// Resolution never fails for data-quality reasons: an empty or garbage name
// simply creates a new speaker, and ambiguity is settled deterministically
// with an audit side effect. Only storage errors propagate. Re-resolving
// the same (event, mention) pair is idempotent.
func (r *Resolver) Resolve(ctx context.Context, mention types.CandidateMention) (*Outcome, error) {
	survivors, err := r.matchCandidates(ctx, mention)
	if err != nil {
		return nil, err
	}

	var outcome *Outcome
	switch len(survivors) {
	case 0:
		outcome, err = r.createSpeaker(ctx, mention)
	case 1:
		outcome, err = r.mergeInto(ctx, survivors[0], mention)
	default:
		outcome, err = r.mergeAmbiguous(ctx, survivors, mention)
	}
	if err != nil {
		return nil, err
	}

	// Link the source event. Upsert semantics in the store make this safe
	// to repeat.
	if mention.SourceEventID != "" {
		participation := &types.EventParticipation{
			EventID:   mention.SourceEventID,
			SpeakerID: outcome.SpeakerID,
			Role:      strings.TrimSpace(mention.RawTitle),
			CreatedAt: time.Now().UTC(),
		}
		if err := r.store.AddParticipation(ctx, participation); err != nil {
			return nil, fmt.Errorf("identity: link event %s: %w", mention.SourceEventID, err)
		}
	}

	return outcome, nil
}

// matchCandidates returns existing speakers that pass both gates: equal
// name key and overlapping affiliation. Result is ordered by ID ascending.
func (r *Resolver) matchCandidates(ctx context.Context, mention types.CandidateMention) ([]*types.Speaker, error) {
	nameKey := r.matcher.NameKey(mention.RawName)
	if nameKey == "" {
		// Unnamed mentions are never merged with each other.
		return nil, nil
	}

	candidates, err := r.store.FindSpeakersByNameKey(ctx, nameKey)
	if err != nil {
		return nil, fmt.Errorf("identity: find by name %q: %w", mention.RawName, err)
	}

	var survivors []*types.Speaker
	for _, sp := range candidates {
		if r.affiliationMatches(mention.RawAffiliation, sp) {
			survivors = append(survivors, sp)
		}
	}

	sort.Slice(survivors, func(i, j int) bool { return survivors[i].ID < survivors[j].ID })
	return survivors, nil
}

// affiliationMatches reports whether the mention's affiliation overlaps the
// speaker's primary affiliation or any entry of the affiliation list.
func (r *Resolver) affiliationMatches(aff string, sp *types.Speaker) bool {
	if r.matcher.Overlaps(aff, sp.PrimaryAffiliation) {
		return true
	}
	for _, existing := range sp.Affiliations {
		if r.matcher.Overlaps(aff, existing) {
			return true
		}
	}
	return false
}

// createSpeaker seeds a new canonical speaker from the mention.
func (r *Resolver) createSpeaker(ctx context.Context, mention types.CandidateMention) (*Outcome, error) {
	now := time.Now().UTC()
	speaker := &types.Speaker{
		ID:          NewID(),
		DisplayName: strings.TrimSpace(mention.RawName),
		Title:       strings.TrimSpace(mention.RawTitle),
		Bio:         strings.TrimSpace(mention.RawBio),
		FirstSeen:   now,
		LastUpdated: now,
	}
	if aff := strings.TrimSpace(mention.RawAffiliation); aff != "" {
		speaker.PrimaryAffiliation = aff
		speaker.Affiliations = []string{aff}
	}

	if err := r.store.CreateSpeaker(ctx, speaker); err != nil {
		return nil, fmt.Errorf("identity: create speaker %q: %w", mention.RawName, err)
	}
	return &Outcome{SpeakerID: speaker.ID, Created: true}, nil
}

// mergeInto folds the mention into an existing speaker: the affiliation is
// appended if novel, and title/bio are filled only when currently empty
// (first writer wins).
func (r *Resolver) mergeInto(ctx context.Context, speaker *types.Speaker, mention types.CandidateMention) (*Outcome, error) {
	changed := false

	if aff := strings.TrimSpace(mention.RawAffiliation); aff != "" && !hasAffiliationFold(speaker, aff) {
		speaker.Affiliations = append(speaker.Affiliations, aff)
		if speaker.PrimaryAffiliation == "" {
			speaker.PrimaryAffiliation = aff
		}
		changed = true
	}
	if title := strings.TrimSpace(mention.RawTitle); title != "" && speaker.Title == "" {
		speaker.Title = title
		changed = true
	}
	if bio := strings.TrimSpace(mention.RawBio); bio != "" && speaker.Bio == "" {
		speaker.Bio = bio
		changed = true
	}

	if changed {
		speaker.LastUpdated = time.Now().UTC()
		if err := r.store.UpdateSpeaker(ctx, speaker); err != nil {
			return nil, fmt.Errorf("identity: merge into speaker %s: %w", speaker.ID, err)
		}
	}

	return &Outcome{SpeakerID: speaker.ID}, nil
}

// mergeAmbiguous handles the multiple-survivor case: merge into the
// earliest-created speaker (lowest ID; IDs are UUIDv7 so order follows
// creation time) and record the decision for review. Ingestion never
// blocks on ambiguity.
func (r *Resolver) mergeAmbiguous(ctx context.Context, survivors []*types.Speaker, mention types.CandidateMention) (*Outcome, error) {
	chosen := survivors[0] // already sorted by ID ascending

	outcome, err := r.mergeInto(ctx, chosen, mention)
	if err != nil {
		return nil, err
	}

	candidateIDs := make([]string, len(survivors))
	for i, sp := range survivors {
		candidateIDs[i] = sp.ID
	}

	entry := &types.AuditEntry{
		ID:           NewID(),
		EventID:      mention.SourceEventID,
		MentionName:  strings.TrimSpace(mention.RawName),
		ChosenID:     chosen.ID,
		CandidateIDs: candidateIDs,
		Status:       types.AuditPendingReview,
		CreatedAt:    time.Now().UTC(),
	}
	if err := r.store.AppendAudit(ctx, entry); err != nil {
		// The merge itself succeeded; losing the audit entry is worth a
		// loud log but must not fail ingestion.
		log.Printf("identity: failed to record ambiguous merge audit for %q: %v", mention.RawName, err)
		return outcome, nil
	}

	outcome.Ambiguous = true
	outcome.AuditID = entry.ID
	return outcome, nil
}

// hasAffiliationFold reports whether the speaker already lists aff,
// compared case-insensitively. Novelty here is string-level; token-level
// overlap is deliberately not enough to suppress a new spelling.
func hasAffiliationFold(sp *types.Speaker, aff string) bool {
	for _, a := range sp.Affiliations {
		if strings.EqualFold(a, aff) {
			return true
		}
	}
	return false
}

// NewID returns a new UUIDv7 identifier. V7 IDs sort by creation time,
// which is what makes "lowest ID wins" mean "earliest created wins".
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
