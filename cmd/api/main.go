package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/tmanole/chatgate/internal/adapter"
	"github.com/tmanole/chatgate/internal/app"
	"github.com/tmanole/chatgate/internal/catalog"
	"github.com/tmanole/chatgate/internal/config"
	"github.com/tmanole/chatgate/internal/ledger"
	"github.com/tmanole/chatgate/internal/orchestrator"
	"github.com/tmanole/chatgate/internal/provider/mediagen"
	"github.com/tmanole/chatgate/internal/provider/openrouter"
	"github.com/tmanole/chatgate/internal/storage"
	"github.com/tmanole/chatgate/internal/tokenizer"
	"github.com/tmanole/chatgate/internal/transport/http/handler"
	"github.com/tmanole/chatgate/internal/transport/http/middleware/auth"
)

func main() {
	// Local overrides; absence is fine.
	_ = godotenv.Load()

	logger := setupLogger()

	if err := config.EnsureDataDir(); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}
	if err := config.EnsureConfigFile(); err != nil {
		logger.Warn("could not write example config", "error", err)
	}
	cfg := config.Load()

	store, err := storage.NewSQLiteStore(config.DBPath())
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer store.Close()

	if err := ensureAdminPassword(store); err != nil {
		log.Fatalf("admin setup failed: %v", err)
	}
	ensureJWTSecret(cfg, logger)

	cat := catalog.New(catalogEntries(cfg.Models))
	led := ledger.New(store, cfg.DefaultBalance, logger)
	chat := openrouter.New(cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL)
	images := mediagen.New(cfg.MediaAPIKey, cfg.MediaBaseURL)
	tok := tokenizer.New()

	orc := orchestrator.New(cat, adapter.New(), led, chat, orchestrator.Config{
		Rates:           ledger.Rates{InputPerMillion: cfg.InputRate, OutputPerMillion: cfg.OutputRate},
		PreflightFloor:  cfg.PreflightFloor,
		MaxMessages:     cfg.MaxMessages,
		MaxMessageChars: cfg.MaxMessageChars,
	}, logger)

	keyCache, err := auth.NewKeyCache()
	if err != nil {
		log.Fatalf("failed to create key cache: %v", err)
	}

	repo := handler.NewRepo(orc, images, led, cat, store, tok, cfg, logger)
	router := app.NewRouter(repo, &app.RouterOptions{
		Logger:         logger,
		Storage:        store,
		APIKeyCache:    keyCache,
		AdminJWTSecret: cfg.AdminJWTSecret,
	})

	printStartupBanner(cfg)

	srv := app.NewServer(cfg, router)
	if err := srv.Start(); err != nil {
		log.Fatal(err)
	}
}

// catalogEntries converts config model entries into catalog models.
func catalogEntries(entries []config.ModelEntry) []catalog.Model {
	out := make([]catalog.Model, 0, len(entries))
	for _, e := range entries {
		out = append(out, catalog.Model{
			ID:         e.ID,
			Name:       e.Name,
			Tier:       catalog.Tier(e.Tier),
			Multiplier: e.Multiplier,
			Provider:   e.Provider,
			Fallbacks:  e.Fallbacks,
		})
	}
	return out
}
