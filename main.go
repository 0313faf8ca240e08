package main

import (
	"log"

	"github.com/modulr-studio/modulr/internal/config"
	"github.com/modulr-studio/modulr/internal/database"
	"github.com/modulr-studio/modulr/internal/enrich"
	"github.com/modulr-studio/modulr/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var db database.Store
	if cfg.DatabaseURL != "" {
		db, err = database.NewPostgres(cfg.DatabaseURL)
	} else {
		db, err = database.New(cfg.DBPath)
	}
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// The default publisher is seeded explicitly at startup; manual
	// analysis submissions attach their episodes to it.
	defaultPublisherID, created, err := db.GetOrCreatePublisher(cfg.DefaultPublisher)
	if err != nil {
		log.Fatalf("seed default publisher: %v", err)
	}
	if created {
		log.Printf("Seeded default publisher %q (id %d)", cfg.DefaultPublisher, defaultPublisherID)
	}

	analyzer := enrich.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel)

	srv := server.New(db, analyzer, cfg.PrebidServerURL, defaultPublisherID)
	if cfg.PollEnabled {
		srv.StartPoller()
		defer srv.Stop()
	}

	if err := srv.Start(cfg.ServerAddr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
