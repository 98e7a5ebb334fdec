// Package app wires the HTTP router and server.
package app

import (
	"log/slog"
	"net/http"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/tmanole/chatgate/internal/storage"
	"github.com/tmanole/chatgate/internal/transport/http/handler"
	"github.com/tmanole/chatgate/internal/transport/http/middleware"
	"github.com/tmanole/chatgate/internal/transport/http/middleware/auth"
)

// RouterOptions configures the HTTP router behavior.
type RouterOptions struct {
	Logger         *slog.Logger
	Storage        storage.Store
	APIKeyCache    *ristretto.Cache[string, *auth.CachedAPIKey]
	AdminJWTSecret string
}

// NewRouter creates and configures the HTTP router with all application
// routes, with the middleware chain applied.
func NewRouter(repo *handler.Repo, opts *RouterOptions) http.Handler {
	mux := http.NewServeMux()

	// Public routes (no auth)
	mux.HandleFunc("GET /", repo.RootStatus)
	mux.HandleFunc("GET /api/health", repo.HealthCheck)
	mux.HandleFunc("POST /api/admin/login", repo.AdminLogin)

	// Client routes (require API key auth)
	apiKeyAuth := auth.APIKeyAuth(opts.Storage, opts.APIKeyCache)
	mux.Handle("POST /v1/chat/stream", apiKeyAuth(http.HandlerFunc(repo.ChatStream)))
	mux.Handle("POST /v1/images/generations", apiKeyAuth(http.HandlerFunc(repo.ImagesGenerations)))
	mux.Handle("GET /v1/models", apiKeyAuth(http.HandlerFunc(repo.ListModels)))
	mux.Handle("GET /v1/credits", apiKeyAuth(http.HandlerFunc(repo.GetCredits)))

	// Admin routes (require admin session token)
	adminAuth := auth.AdminAuth(opts.AdminJWTSecret)
	mux.Handle("POST /api/admin/credits/grant", adminAuth(http.HandlerFunc(repo.GrantCredits)))
	mux.Handle("POST /api/admin/apikeys", adminAuth(http.HandlerFunc(repo.CreateAPIKey)))
	mux.Handle("GET /api/admin/usage", adminAuth(http.HandlerFunc(repo.GetUsageStats)))
	mux.Handle("GET /api/admin/logs", adminAuth(http.HandlerFunc(repo.GetRequestLogs)))

	// Apply middleware chain (order: outer to inner)
	var h http.Handler = mux
	if opts.Logger != nil {
		h = middleware.RequestLogger(opts.Logger)(h)
	}
	h = middleware.RequestID(h)
	h = middleware.CORS(h)

	return h
}
