package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podium-hq/podium/internal/config"
	"github.com/podium-hq/podium/internal/engine"
	"github.com/podium-hq/podium/internal/identity"
	"github.com/podium-hq/podium/internal/server"
	"github.com/podium-hq/podium/internal/storage/memory"
	"github.com/podium-hq/podium/pkg/types"
)

type staticExtractor struct {
	mentions []types.CandidateMention
}

func (e *staticExtractor) ExtractMentions(ctx context.Context, eventText, eventID string) ([]types.CandidateMention, error) {
	out := make([]types.CandidateMention, len(e.mentions))
	for i, m := range e.mentions {
		m.SourceEventID = eventID
		out[i] = m
	}
	return out, nil
}

type staticEmbedder struct{}

func (e *staticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (e *staticEmbedder) Model() string { return "static-embed" }

type staticParser struct{}

func (p *staticParser) ParseQuery(ctx context.Context, text string) (*types.Query, error) {
	return &types.Query{Text: text}, nil
}

// startTestServer starts a server on a random port over an in-memory store
// and returns the base URL. Cleanup is registered with t.Cleanup.
func startTestServer(t *testing.T, cfg *config.Config) string {
	t.Helper()

	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	cfg.Server.Port = 0

	store := memory.NewStore()

	mc, err := config.LoadMatcherConfig("")
	require.NoError(t, err)

	ingestor, err := engine.NewIngestor(engine.IngestorConfig{
		Store: store,
		Extractor: &staticExtractor{mentions: []types.CandidateMention{
			{RawName: "Jane Doe", RawTitle: "CTO", RawAffiliation: "Acme Corp"},
		}},
		Embedder: &staticEmbedder{},
		Matcher:  identity.NewMatcher(mc.Stopwords, mc.Synonyms),
	})
	require.NoError(t, err)

	discovery, err := engine.NewDiscovery(engine.DiscoveryConfig{
		Store:    store,
		Parser:   &staticParser{},
		Embedder: &staticEmbedder{},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	addrChan := make(chan string, 1)
	go func() {
		addr, _ := server.Start(ctx, cfg, store, ingestor, discovery)
		addrChan <- addr
	}()

	var addr string
	select {
	case addr = <-addrChan:
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("server did not start within timeout")
	}

	time.Sleep(100 * time.Millisecond)

	t.Cleanup(func() {
		cancel()
		time.Sleep(100 * time.Millisecond)
		_ = store.Close()
	})

	return "http://" + addr
}

func devConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1"},
		Security: config.SecurityConfig{
			SecurityMode: "development",
		},
	}
}

func TestHealthEndpoint(t *testing.T) {
	base := startTestServer(t, devConfig())

	resp, err := http.Get(base + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestIngestThenSearch(t *testing.T) {
	base := startTestServer(t, devConfig())

	body, err := json.Marshal(map[string]string{
		"event_id": "evt-1",
		"text":     "conference lineup",
	})
	require.NoError(t, err)

	resp, err := http.Post(base+"/api/events", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base + "/api/search?q=cloud+keynote")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var search struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&search))
	assert.Equal(t, 1, search.Total)
}

func TestProductionModeRequiresAuth(t *testing.T) {
	cfg := devConfig()
	cfg.Security.SecurityMode = "production"
	cfg.Security.APIToken = "test-token"
	base := startTestServer(t, cfg)

	// No token: rejected.
	resp, err := http.Get(base + "/api/speakers")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Health stays open.
	resp, err = http.Get(base + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Valid token: accepted.
	req, err := http.NewRequest("GET", base+"/api/speakers", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer test-token")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
