package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podium-hq/podium/internal/config"
	"github.com/podium-hq/podium/internal/engine"
	"github.com/podium-hq/podium/internal/identity"
	"github.com/podium-hq/podium/internal/storage/memory"
	"github.com/podium-hq/podium/pkg/types"
	"github.com/podium-hq/podium/web/handlers"
)

// fakeExtractor returns canned mentions keyed by event text.
type fakeExtractor struct {
	mentions map[string][]types.CandidateMention
}

func (f *fakeExtractor) ExtractMentions(ctx context.Context, eventText, eventID string) ([]types.CandidateMention, error) {
	mentions := f.mentions[eventText]
	out := make([]types.CandidateMention, len(mentions))
	for i, m := range mentions {
		m.SourceEventID = eventID
		out[i] = m
	}
	return out, nil
}

type fakeEmbedder struct{}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) Model() string { return "fake-embed" }

// fakeParser produces a plain semantic query with no structured criteria.
type fakeParser struct{}

func (f *fakeParser) ParseQuery(ctx context.Context, text string) (*types.Query, error) {
	return &types.Query{Text: text}, nil
}

type testEnv struct {
	store    *memory.Store
	handlers *handlers.APIHandlers
	mux      *http.ServeMux
}

func newTestEnv(t *testing.T, extractor *fakeExtractor) *testEnv {
	t.Helper()

	store := memory.NewStore()
	t.Cleanup(func() { _ = store.Close() })

	mc, err := config.LoadMatcherConfig("")
	require.NoError(t, err)

	ingestor, err := engine.NewIngestor(engine.IngestorConfig{
		Store:     store,
		Extractor: extractor,
		Embedder:  &fakeEmbedder{},
		Matcher:   identity.NewMatcher(mc.Stopwords, mc.Synonyms),
	})
	require.NoError(t, err)

	discovery, err := engine.NewDiscovery(engine.DiscoveryConfig{
		Store:    store,
		Parser:   &fakeParser{},
		Embedder: &fakeEmbedder{},
	})
	require.NoError(t, err)

	cfg := &config.Config{}
	api := handlers.NewAPIHandlers(ingestor, discovery, store, cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/events", api.PostEvent)
	mux.HandleFunc("GET /api/search", api.Search)
	mux.HandleFunc("GET /api/speakers", api.ListSpeakers)
	mux.HandleFunc("GET /api/speakers/{id}", api.GetSpeaker)
	mux.HandleFunc("POST /api/speakers/{id}/attributes", api.PostAttribute)
	mux.HandleFunc("GET /api/audit", api.ListAudit)
	mux.HandleFunc("POST /api/audit/{id}/resolve", api.ResolveAudit)
	mux.HandleFunc("POST /api/sweep", api.PostSweep)

	return &testEnv{store: store, handlers: api, mux: mux}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

func TestPostEvent_IngestsText(t *testing.T) {
	env := newTestEnv(t, &fakeExtractor{mentions: map[string][]types.CandidateMention{
		"keynote lineup": {
			{RawName: "Jane Doe", RawTitle: "CTO", RawAffiliation: "Acme Corp"},
			{RawName: "John Smith", RawAffiliation: "MIT"},
		},
	}})

	w := env.do(t, "POST", "/api/events", handlers.IngestRequest{
		EventID: "evt-1",
		Text:    "keynote lineup",
	})

	require.Equal(t, http.StatusOK, w.Code)

	var result engine.IngestResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "evt-1", result.EventID)
	assert.Equal(t, 2, result.Mentions)
	assert.Equal(t, 2, result.Created)
	assert.Len(t, result.SpeakerIDs, 2)
}

func TestPostEvent_IngestsPreExtractedMentions(t *testing.T) {
	env := newTestEnv(t, &fakeExtractor{})

	w := env.do(t, "POST", "/api/events", handlers.IngestRequest{
		EventID: "evt-9",
		Mentions: []types.CandidateMention{
			{RawName: "Ada Lovelace", RawAffiliation: "Analytical Engines Ltd"},
		},
	})

	require.Equal(t, http.StatusOK, w.Code)

	var result engine.IngestResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Created)
}

func TestPostEvent_RejectsEmptyBody(t *testing.T) {
	env := newTestEnv(t, &fakeExtractor{})

	w := env.do(t, "POST", "/api/events", handlers.IngestRequest{EventID: "evt-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "POST", "/api/events", handlers.IngestRequest{Text: "no event id"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSpeaker_ProfileAndNotFound(t *testing.T) {
	env := newTestEnv(t, &fakeExtractor{mentions: map[string][]types.CandidateMention{
		"solo": {{RawName: "Grace Hopper", RawTitle: "Rear Admiral", RawAffiliation: "US Navy"}},
	}})

	w := env.do(t, "POST", "/api/events", handlers.IngestRequest{EventID: "evt-1", Text: "solo"})
	require.Equal(t, http.StatusOK, w.Code)

	var ingest engine.IngestResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ingest))
	require.Len(t, ingest.SpeakerIDs, 1)
	id := ingest.SpeakerIDs[0]

	w = env.do(t, "GET", "/api/speakers/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var profile handlers.SpeakerProfileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	assert.Equal(t, "Grace Hopper", profile.Speaker.DisplayName)
	assert.Len(t, profile.Participations, 1)
	assert.Equal(t, "evt-1", profile.Participations[0].EventID)

	w = env.do(t, "GET", "/api/speakers/no-such-speaker", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListSpeakers_Paginates(t *testing.T) {
	env := newTestEnv(t, &fakeExtractor{})

	mentions := []types.CandidateMention{
		{RawName: "Speaker One", RawAffiliation: "Org One"},
		{RawName: "Speaker Two", RawAffiliation: "Org Two"},
		{RawName: "Speaker Three", RawAffiliation: "Org Three"},
	}
	w := env.do(t, "POST", "/api/events", handlers.IngestRequest{EventID: "evt-1", Mentions: mentions})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "GET", "/api/speakers?page=1&limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page struct {
		Items   []types.Speaker
		Total   int
		HasMore bool
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)
}

func TestPostAttribute_ThresholdGate(t *testing.T) {
	env := newTestEnv(t, &fakeExtractor{})

	w := env.do(t, "POST", "/api/events", handlers.IngestRequest{
		EventID:  "evt-1",
		Mentions: []types.CandidateMention{{RawName: "Jane Doe", RawAffiliation: "Acme"}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var ingest engine.IngestResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ingest))
	id := ingest.SpeakerIDs[0]

	// Above threshold: stored.
	w = env.do(t, "POST", "/api/speakers/"+id+"/attributes", handlers.AttributeRequest{
		Kind:       "language",
		Value:      "english",
		Confidence: 0.9,
		Source:     "bio_extraction",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var resp handlers.AttributeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Stored)

	// Below threshold: acknowledged but dropped.
	w = env.do(t, "POST", "/api/speakers/"+id+"/attributes", handlers.AttributeRequest{
		Kind:       "location",
		Value:      "Berlin",
		Confidence: 0.2,
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Stored)

	// Unknown speaker: 404.
	w = env.do(t, "POST", "/api/speakers/nope/attributes", handlers.AttributeRequest{
		Kind: "language", Value: "english", Confidence: 0.9,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuditFlow(t *testing.T) {
	env := newTestEnv(t, &fakeExtractor{})
	ctx := context.Background()

	entry := &types.AuditEntry{
		ID:           "audit-1",
		EventID:      "evt-1",
		MentionName:  "Jane Doe",
		ChosenID:     "spk-a",
		CandidateIDs: []string{"spk-a", "spk-b"},
		Status:       types.AuditPendingReview,
	}
	require.NoError(t, env.store.AppendAudit(ctx, entry))

	w := env.do(t, "GET", "/api/audit?status=pending_review", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "audit-1")

	w = env.do(t, "POST", "/api/audit/audit-1/resolve", handlers.ResolveAuditRequest{Notes: "same person"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "GET", "/api/audit?status=pending_review", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "audit-1")

	w = env.do(t, "POST", "/api/audit/no-such-entry/resolve", handlers.ResolveAuditRequest{})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearch_RequiresQuery(t *testing.T) {
	env := newTestEnv(t, &fakeExtractor{})

	w := env.do(t, "GET", "/api/search", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearch_ReturnsRankedCandidates(t *testing.T) {
	env := newTestEnv(t, &fakeExtractor{})

	w := env.do(t, "POST", "/api/events", handlers.IngestRequest{
		EventID: "evt-1",
		Mentions: []types.CandidateMention{
			{RawName: "Jane Doe", RawAffiliation: "Acme", RawBio: "Distributed systems researcher"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "GET", "/api/search?q=distributed+systems+keynote", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp handlers.SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.NotEmpty(t, resp.Candidates[0].SpeakerID)
	assert.InDelta(t, 1.0, resp.Candidates[0].SemanticScore, 1e-9)
}

func TestPostSweep_MergesDuplicates(t *testing.T) {
	env := newTestEnv(t, &fakeExtractor{})
	ctx := context.Background()

	// Two same-named speakers with overlapping affiliations, created
	// directly so the resolver never saw them together.
	for _, sp := range []*types.Speaker{
		{ID: "spk-a", DisplayName: "Jane Doe", PrimaryAffiliation: "Acme Corp", Affiliations: []string{"Acme Corp"}},
		{ID: "spk-b", DisplayName: "Jane Doe", PrimaryAffiliation: "Acme Corporation", Affiliations: []string{"Acme Corporation"}},
	} {
		require.NoError(t, env.store.CreateSpeaker(ctx, sp))
	}

	w := env.do(t, "POST", "/api/sweep", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp handlers.SweepResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "spk-a", resp.Merges[0].SurvivingID)
	assert.Equal(t, "spk-b", resp.Merges[0].AbsorbedID)
}
