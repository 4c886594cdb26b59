// Command podium-sweep runs the offline merge sweep: it re-applies the
// identity matching rule across all canonical speakers and merges
// duplicates that accumulated through out-of-order ingestion.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/podium-hq/podium/internal/config"
	"github.com/podium-hq/podium/internal/identity"
	"github.com/podium-hq/podium/internal/storage"
	"github.com/podium-hq/podium/internal/storage/postgres"
	"github.com/podium-hq/podium/internal/storage/sqlite"
)

var (
	dryRun  = flag.Bool("dry-run", false, "Report merges without applying them")
	timeout = flag.Duration("timeout", 10*time.Minute, "Maximum sweep duration")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	mc, err := config.LoadMatcherConfig(cfg.Resolver.MatcherConfigPath)
	if err != nil {
		log.Fatalf("Failed to load matcher config: %v", err)
	}
	matcher := identity.NewMatcher(mc.Stopwords, mc.Synonyms)
	sweeper := identity.NewSweeper(store, matcher)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *dryRun {
		actions, err := sweeper.Plan(ctx)
		if err != nil {
			log.Fatalf("Sweep planning failed: %v", err)
		}
		for _, a := range actions {
			fmt.Printf("would merge %s into %s\n", a.AbsorbedID, a.SurvivingID)
		}
		fmt.Printf("%d merges planned\n", len(actions))
		return
	}

	start := time.Now()
	actions, err := sweeper.Sweep(ctx)
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}

	for _, a := range actions {
		fmt.Printf("merged %s into %s\n", a.AbsorbedID, a.SurvivingID)
	}
	fmt.Printf("%d merges applied in %s\n", len(actions), time.Since(start).Round(time.Millisecond))
	os.Exit(0)
}

// openStore builds the configured storage backend. The in-memory engine is
// pointless for an offline sweep, so only the durable backends are offered.
func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.StorageEngine {
	case "postgres":
		return postgres.NewStore(cfg.Storage.PostgresDSN)
	default:
		return sqlite.NewStore(cfg.Storage.DataPath + "/podium.db")
	}
}
