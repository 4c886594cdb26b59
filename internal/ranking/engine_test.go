package ranking

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/podium-hq/podium/internal/storage/memory"
	"github.com/podium-hq/podium/pkg/types"
)

func seedSpeaker(t *testing.T, store *memory.Store, id string, attrs ...types.Attribute) {
	t.Helper()
	ctx := context.Background()
	if err := store.CreateSpeaker(ctx, &types.Speaker{ID: id, DisplayName: "Speaker " + id}); err != nil {
		t.Fatalf("CreateSpeaker failed: %v", err)
	}
	for i := range attrs {
		attrs[i].SpeakerID = id
		if err := store.PutAttribute(ctx, &attrs[i]); err != nil {
			t.Fatalf("PutAttribute failed: %v", err)
		}
	}
}

// TestRank_PreferencesOutweighSemanticSpread verifies the central property
// of the 60/40 split: a strong preference match lifts a weaker semantic
// candidate over a stronger one whose attributes are all unknown.
func TestRank_PreferencesOutweighSemanticSpread(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	// Candidate A: high semantic, nothing known about its attributes.
	seedSpeaker(t, store, "speaker-a")
	// Candidate B: lower semantic, matches both soft preferences.
	seedSpeaker(t, store, "speaker-b",
		types.Attribute{Kind: types.AttrDemographic, Value: "female", Confidence: 0.7},
		types.Attribute{Kind: types.AttrLocation, Value: "europe", Confidence: 0.7},
	)

	query := &types.Query{
		RequestedCount: 10,
		SoftPreferences: []types.Preference{
			{Type: types.AttrDemographic, Value: "female", Weight: 0.7},
			{Type: types.AttrLocation, Value: "europe", Weight: 0.7},
		},
	}

	results, err := NewEngine(store).Rank(ctx, query, []Candidate{
		{SpeakerID: "speaker-a", SemanticScore: 0.9},
		{SpeakerID: "speaker-b", SemanticScore: 0.6},
	})
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}

	if results[0].SpeakerID != "speaker-b" {
		t.Fatalf("winner = %s, want speaker-b", results[0].SpeakerID)
	}

	b, a := results[0], results[1]
	if b.PreferenceScore != 1.0 {
		t.Errorf("B preference score = %g, want 1.0", b.PreferenceScore)
	}
	if a.PreferenceScore != 0.5 {
		t.Errorf("A preference score = %g, want neutral 0.5", a.PreferenceScore)
	}
	// base_B = 0.6*0.6 + 1.0*0.4 = 0.76; base_A = 0.9*0.6 + 0.5*0.4 = 0.74.
	// Quality multipliers are equal (1.0) so the bases are the finals.
	if math.Abs(b.FinalScore-0.76) > 1e-9 {
		t.Errorf("B final = %g, want 0.76", b.FinalScore)
	}
	if math.Abs(a.FinalScore-0.74) > 1e-9 {
		t.Errorf("A final = %g, want 0.74", a.FinalScore)
	}
}

func TestRank_DeterministicTieBreaks(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	for _, id := range []string{"s3", "s1", "s2"} {
		seedSpeaker(t, store, id)
	}

	query := &types.Query{RequestedCount: 10}

	// Identical scores all around: order must fall back to ID ascending.
	results, err := NewEngine(store).Rank(ctx, query, []Candidate{
		{SpeakerID: "s3", SemanticScore: 0.8},
		{SpeakerID: "s1", SemanticScore: 0.8},
		{SpeakerID: "s2", SemanticScore: 0.8},
	})
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	for i, want := range []string{"s1", "s2", "s3"} {
		if results[i].SpeakerID != want {
			t.Errorf("results[%d] = %s, want %s", i, results[i].SpeakerID, want)
		}
	}
}

func TestRank_ClampsOutOfRangeSemanticScores(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	seedSpeaker(t, store, "s-clamped")
	seedSpeaker(t, store, "s-exact")

	results, err := NewEngine(store).Rank(ctx, &types.Query{}, []Candidate{
		{SpeakerID: "s-exact", SemanticScore: 1.0},
		{SpeakerID: "s-clamped", SemanticScore: 1.7}, // clamps to 1.0
	})
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	// Clamping makes the two fully tied; ID ascending decides.
	if results[0].SpeakerID != "s-clamped" || results[0].SemanticScore != 1.0 {
		t.Errorf("clamped candidate should tie at 1.0 and sort by ID, got %+v", results[0])
	}
}

func TestRank_SortedNonIncreasingAndTruncated(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	candidates := make([]Candidate, 0, 15)
	for i := 0; i < 15; i++ {
		id := string(rune('a'+i)) + "-speaker"
		seedSpeaker(t, store, id)
		candidates = append(candidates, Candidate{
			SpeakerID:     id,
			SemanticScore: float64(i) / 15.0,
		})
	}

	results, err := NewEngine(store).Rank(ctx, &types.Query{}, candidates)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if len(results) != types.DefaultRequestedCount {
		t.Errorf("results = %d, want default count %d", len(results), types.DefaultRequestedCount)
	}
	for i := 1; i < len(results); i++ {
		if results[i].FinalScore > results[i-1].FinalScore {
			t.Errorf("results not sorted at %d: %g > %g", i, results[i].FinalScore, results[i-1].FinalScore)
		}
	}
}

func TestRank_EmptyPoolReturnsEmptyList(t *testing.T) {
	store := memory.NewStore()

	results, err := NewEngine(store).Rank(context.Background(), &types.Query{}, nil)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("results = %v, want empty non-nil list", results)
	}
}

func TestRank_MalformedQueryFailsLoudly(t *testing.T) {
	store := memory.NewStore()
	query := &types.Query{
		SoftPreferences: []types.Preference{{Type: types.AttrLocation, Value: "europe", Weight: 1.5}},
	}

	_, err := NewEngine(store).Rank(context.Background(), query, nil)
	if !errors.Is(err, types.ErrInvalidQuery) {
		t.Errorf("err = %v, want ErrInvalidQuery", err)
	}
}

func TestRank_QualityMultiplierAmplifies(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	seedSpeaker(t, store, "plain")
	seedSpeaker(t, store, "complete",
		types.Attribute{Kind: types.AttrLanguage, Value: "english", Confidence: 0.9},
	)

	results, err := NewEngine(store).Rank(ctx, &types.Query{}, []Candidate{
		{SpeakerID: "plain", SemanticScore: 0.5},
		{SpeakerID: "complete", SemanticScore: 0.5},
	})
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	if results[0].SpeakerID != "complete" {
		t.Fatalf("winner = %s, want the more complete profile", results[0].SpeakerID)
	}
	// base = 0.5*0.6 + 0.5*0.4 = 0.5; quality 1.15 → 0.575.
	if math.Abs(results[0].FinalScore-0.575) > 1e-9 {
		t.Errorf("final = %g, want 0.575", results[0].FinalScore)
	}
	if results[0].QualityMultiplier != 1.15 {
		t.Errorf("quality = %g, want 1.15", results[0].QualityMultiplier)
	}
}
