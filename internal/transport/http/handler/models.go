package handler

import (
	"net/http"
	"sort"

	"github.com/tmanole/chatgate/internal/types"
)

// modelInfo is one entry in the model listing.
type modelInfo struct {
	ID         string   `json:"id"`
	Name       string   `json:"name,omitempty"`
	Tier       string   `json:"tier"`
	Multiplier float64  `json:"multiplier"`
	Provider   string   `json:"provider,omitempty"`
	Fallbacks  []string `json:"fallbacks,omitempty"`
}

// ListModels returns the allowed models with their billing metadata.
func (h *Repo) ListModels(w http.ResponseWriter, r *http.Request) {
	entries := h.Catalog.List()
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	out := make([]modelInfo, 0, len(entries))
	for _, m := range entries {
		out = append(out, modelInfo{
			ID:         m.ID,
			Name:       m.Name,
			Tier:       string(m.Tier),
			Multiplier: m.Multiplier,
			Provider:   m.Provider,
			Fallbacks:  m.Fallbacks,
		})
	}

	types.WriteJSON(w, http.StatusOK, map[string]any{
		"object": "list",
		"data":   out,
	})
}
