package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/showscout/outreach/internal/config"
	"github.com/showscout/outreach/internal/discovery"
	"github.com/showscout/outreach/internal/pkg/httpretry"
	"github.com/showscout/outreach/internal/repository/postgres"
)

// discover runs the provider search → dedupe/merge → prospect upsert
// pipeline once for a query and exits. Scheduling repeated runs is an
// operator concern (cron the binary).
func main() {
	query := flag.String("query", "", "search term (or a feed URL for the rss provider)")
	limit := flag.Int("limit", 25, "max results per provider")
	flag.Parse()

	if *query == "" {
		log.Fatal("-query is required")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("database.url is required")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	client := httpretry.New(&http.Client{Timeout: 30 * time.Second}, 2)
	providers := []discovery.Provider{discovery.NewRSSProvider(client)}
	if cfg.Discovery.PodcastIndexKey != "" && cfg.Discovery.PodcastIndexSecret != "" {
		providers = append(providers,
			discovery.NewPodcastIndexProvider(client, cfg.Discovery.PodcastIndexKey, cfg.Discovery.PodcastIndexSecret))
	}
	if cfg.Discovery.ListenNotesKey != "" {
		providers = append(providers,
			discovery.NewListenNotesProvider(client, cfg.Discovery.ListenNotesKey))
	}
	log.Printf("Running discovery with %d providers", len(providers))

	ingestor := discovery.NewIngestor(providers, postgres.NewProspectRepo(db))
	res, err := ingestor.Run(ctx, *query, *limit)
	if err != nil {
		log.Fatalf("Discovery run failed: %v", err)
	}
	log.Printf("Discovery complete: found=%d merged=%d created=%d existing=%d strengthened=%d",
		res.Found, res.Merged, res.Created, res.Existing, res.Strengthened)
}
