package identity

import (
	"context"
	"testing"

	"github.com/podium-hq/podium/internal/normalize"
	"github.com/podium-hq/podium/internal/storage/memory"
	"github.com/podium-hq/podium/pkg/types"
)

// TestSweep_MergesSpeakersSplitBeforeSynonymConfigured reproduces the
// motivating case: mentions processed before a synonym existed created two
// speakers, and the sweep reconciles them once the synonym is in place.
func TestSweep_MergesSpeakersSplitBeforeSynonymConfigured(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	// No synonyms at ingestion time: NYU and its expansion don't overlap.
	bare := NewMatcher(normalize.DefaultStopwords, nil)
	r := NewResolver(store, bare)

	a, err := r.Resolve(ctx, mention("Ada King", "Professor", "NYU", "evt-1"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	b, err := r.Resolve(ctx, mention("Ada King", "", "New York University", "evt-2"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if a.SpeakerID == b.SpeakerID {
		t.Fatal("setup broken: speakers should start distinct")
	}

	// Sweep with the synonym now configured.
	sweeper := NewSweeper(store, newTestMatcher(t))
	actions, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if len(actions) != 1 {
		t.Fatalf("actions = %d, want 1", len(actions))
	}
	if actions[0].SurvivingID != a.SpeakerID || actions[0].AbsorbedID != b.SpeakerID {
		t.Errorf("action = %+v, want %s absorbed into %s", actions[0], b.SpeakerID, a.SpeakerID)
	}

	// Absorbed speaker is tombstoned, never deleted.
	absorbed, err := store.GetSpeaker(ctx, b.SpeakerID)
	if err != nil {
		t.Fatalf("tombstoned speaker should still be readable: %v", err)
	}
	if absorbed.MergedInto != a.SpeakerID {
		t.Errorf("MergedInto = %q, want %s", absorbed.MergedInto, a.SpeakerID)
	}

	// Participations repointed to the survivor.
	parts, err := store.ListParticipations(ctx, a.SpeakerID)
	if err != nil {
		t.Fatalf("ListParticipations failed: %v", err)
	}
	if len(parts) != 2 {
		t.Errorf("survivor participations = %d, want 2", len(parts))
	}

	// Survivor gained the novel affiliation spelling.
	survivor, _ := store.GetSpeaker(ctx, a.SpeakerID)
	if !survivor.HasAffiliation("New York University") {
		t.Errorf("survivor affiliations = %v, want absorbed spelling appended", survivor.Affiliations)
	}
}

func TestSweep_SecondRunIsFixedPoint(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	bare := NewMatcher(normalize.DefaultStopwords, nil)
	r := NewResolver(store, bare)
	if _, err := r.Resolve(ctx, mention("Ada King", "", "NYU", "evt-1")); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if _, err := r.Resolve(ctx, mention("Ada King", "", "New York University", "evt-2")); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	sweeper := NewSweeper(store, newTestMatcher(t))
	first, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("first Sweep failed: %v", err)
	}
	if len(first) == 0 {
		t.Fatal("first sweep should merge")
	}

	second, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("second Sweep failed: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second sweep actions = %v, want none", second)
	}
}

func TestSweep_DistinctAffiliationsUntouched(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	r := NewResolver(store, newTestMatcher(t))
	if _, err := r.Resolve(ctx, mention("John Smith", "", "MIT", "evt-1")); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if _, err := r.Resolve(ctx, mention("John Smith", "", "Oxford", "evt-2")); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	sweeper := NewSweeper(store, newTestMatcher(t))
	actions, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if len(actions) != 0 {
		t.Errorf("actions = %v, want none for disjoint affiliations", actions)
	}
}

func TestSweep_TransitiveClusterMergesIntoEarliest(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	// Three same-named speakers where the third affiliation bridges the
	// first two into one cluster.
	bare := NewMatcher(normalize.DefaultStopwords, nil)
	r := NewResolver(store, bare)
	a, _ := r.Resolve(ctx, mention("Jane Doe", "", "Columbia University", "evt-1"))
	b, _ := r.Resolve(ctx, mention("Jane Doe", "", "Oxford", "evt-2"))
	if a.SpeakerID == b.SpeakerID {
		t.Fatal("setup broken")
	}
	// Insert the bridge directly so it doesn't trigger ambiguous resolution.
	bridge := &types.Speaker{
		ID:                 NewID(),
		DisplayName:        "Jane Doe",
		PrimaryAffiliation: "Columbia Oxford Joint Program",
		Affiliations:       []string{"Columbia Oxford Joint Program"},
	}
	if err := store.CreateSpeaker(ctx, bridge); err != nil {
		t.Fatalf("CreateSpeaker failed: %v", err)
	}

	sweeper := NewSweeper(store, newTestMatcher(t))
	actions, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("actions = %v, want the whole cluster absorbed", actions)
	}
	for _, act := range actions {
		if act.SurvivingID != a.SpeakerID {
			t.Errorf("survivor = %s, want earliest-created %s", act.SurvivingID, a.SpeakerID)
		}
	}
}

// Same-named speakers without affiliations carry empty token sets, and an
// empty set overlaps nothing, including another empty set.
func TestSweep_NoAffiliationSpeakersStayDistinct(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		sp := &types.Speaker{
			ID:          NewID(),
			DisplayName: "John Smith",
		}
		if err := store.CreateSpeaker(ctx, sp); err != nil {
			t.Fatalf("CreateSpeaker %d failed: %v", i, err)
		}
	}

	sweeper := NewSweeper(store, newTestMatcher(t))
	actions, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if len(actions) != 0 {
		t.Errorf("actions = %v, want none for affiliation-less speakers", actions)
	}
}
