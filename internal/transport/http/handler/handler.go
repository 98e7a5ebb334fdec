// Package handler implements the HTTP endpoints.
package handler

import (
	"log/slog"
	"time"

	"github.com/tmanole/chatgate/internal/catalog"
	"github.com/tmanole/chatgate/internal/config"
	"github.com/tmanole/chatgate/internal/ledger"
	"github.com/tmanole/chatgate/internal/orchestrator"
	"github.com/tmanole/chatgate/internal/provider"
	"github.com/tmanole/chatgate/internal/storage"
	"github.com/tmanole/chatgate/internal/tokenizer"
)

// Version is reported on the health and root endpoints.
const Version = "0.4.2"

// Repo holds the dependencies for HTTP handlers.
type Repo struct {
	Orchestrator *orchestrator.Orchestrator
	Images       provider.ImageGenerator
	Ledger       *ledger.Ledger
	Catalog      *catalog.Catalog
	Store        storage.Store
	Tokenizer    tokenizer.Tokenizer
	Config       *config.Config
	Logger       *slog.Logger

	startTime time.Time
}

// NewRepo creates a new instance of the handler repository.
func NewRepo(orc *orchestrator.Orchestrator, images provider.ImageGenerator, led *ledger.Ledger, cat *catalog.Catalog, store storage.Store, tok tokenizer.Tokenizer, cfg *config.Config, logger *slog.Logger) *Repo {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repo{
		Orchestrator: orc,
		Images:       images,
		Ledger:       led,
		Catalog:      cat,
		Store:        store,
		Tokenizer:    tok,
		Config:       cfg,
		Logger:       logger,
		startTime:    time.Now(),
	}
}
