package handler

import (
	"net/http"
	"time"

	"github.com/tmanole/chatgate/internal/types"
)

// RootStatus returns JSON status and version information at /.
func (h *Repo) RootStatus(w http.ResponseWriter, r *http.Request) {
	types.WriteJSON(w, http.StatusOK, map[string]any{
		"name":    "chatgate",
		"version": Version,
		"status":  "running",
		"api":     "/v1",
		"admin":   "/api/admin",
	})
}

// HealthCheck returns the application health status.
func (h *Repo) HealthCheck(w http.ResponseWriter, r *http.Request) {
	types.WriteJSON(w, http.StatusOK, map[string]any{
		"status":         "active",
		"app":            "chatgate",
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	})
}
