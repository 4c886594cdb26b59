// Command podium-server runs the Podium API: event ingestion, speaker
// discovery, and the live activity feed.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/podium-hq/podium/internal/config"
	"github.com/podium-hq/podium/internal/engine"
	"github.com/podium-hq/podium/internal/identity"
	"github.com/podium-hq/podium/internal/llm"
	"github.com/podium-hq/podium/internal/server"
	"github.com/podium-hq/podium/internal/storage"
	"github.com/podium-hq/podium/internal/storage/memory"
	"github.com/podium-hq/podium/internal/storage/postgres"
	"github.com/podium-hq/podium/internal/storage/sqlite"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	ollama := llm.NewOllamaClient(llm.OllamaConfig{
		BaseURL:        cfg.LLM.OllamaURL,
		Model:          cfg.LLM.OllamaModel,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
	})

	mc, err := config.LoadMatcherConfig(cfg.Resolver.MatcherConfigPath)
	if err != nil {
		log.Fatalf("Failed to load matcher config: %v", err)
	}
	matcher := identity.NewMatcher(mc.Stopwords, mc.Synonyms)

	ingestor, err := engine.NewIngestor(engine.IngestorConfig{
		Store:                        store,
		Extractor:                    ollama,
		Embedder:                     ollama,
		Matcher:                      matcher,
		AttributeConfidenceThreshold: cfg.Resolver.AttributeConfidenceThreshold,
	})
	if err != nil {
		log.Fatalf("Failed to initialize ingestor: %v", err)
	}

	discovery, err := engine.NewDiscovery(engine.DiscoveryConfig{
		Store:         store,
		Parser:        ollama,
		Embedder:      ollama,
		ShortlistSize: cfg.Ranking.ShortlistSize,
	})
	if err != nil {
		log.Fatalf("Failed to initialize discovery: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, _ := server.Start(ctx, cfg, store, ingestor, discovery)
	log.Printf("Podium API running at http://%s", addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
	time.Sleep(1 * time.Second) // Give time for connections to close
}

// openStore builds the configured storage backend.
func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.StorageEngine {
	case "postgres":
		return postgres.NewStore(cfg.Storage.PostgresDSN)
	case "memory":
		return memory.NewStore(), nil
	default:
		return sqlite.NewStore(cfg.Storage.DataPath + "/podium.db")
	}
}
