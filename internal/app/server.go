package app

import (
	"log"
	"net/http"
	"time"

	"github.com/tmanole/chatgate/internal/config"
)

// Server wraps the HTTP server with its configuration.
type Server struct {
	httpServer *http.Server
	config     *config.Config
}

// NewServer creates a new configured HTTP server instance.
func NewServer(cfg *config.Config, handler http.Handler) *Server {
	srv := &http.Server{
		Addr:    cfg.ServerPort,
		Handler: handler,
		// Long streams need generous timeouts; a 120s upstream attempt plus
		// two fallbacks must fit inside the write window.
		ReadTimeout:  300 * time.Second,
		WriteTimeout: 600 * time.Second,
	}

	return &Server{
		httpServer: srv,
		config:     cfg,
	}
}

// Start begins listening and serving HTTP requests.
func (s *Server) Start() error {
	log.Printf("chatgate server starting on http://localhost%s", s.config.ServerPort)
	return s.httpServer.ListenAndServe()
}
