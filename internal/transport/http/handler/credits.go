package handler

import (
	"net/http"
	"time"

	"github.com/tmanole/chatgate/internal/transport/http/middleware/auth"
	"github.com/tmanole/chatgate/internal/types"
)

// creditsResponse reports the caller's credit account.
type creditsResponse struct {
	Balance       int64     `json:"balance"`
	LifetimeUsed  int64     `json:"lifetimeUsed"`
	PeriodUsed    int64     `json:"periodUsed"`
	PeriodResetAt time.Time `json:"periodResetAt"`
}

// GetCredits returns the authenticated user's credit account state.
func (h *Repo) GetCredits(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())

	acc, err := h.Ledger.Account(userID)
	if err != nil {
		h.Logger.Error("account lookup failed", "user", userID, "error", err)
		types.WriteError(w, http.StatusInternalServerError, types.ErrServer("internal error"))
		return
	}

	types.WriteJSON(w, http.StatusOK, &creditsResponse{
		Balance:       acc.Balance,
		LifetimeUsed:  acc.LifetimeUsed,
		PeriodUsed:    acc.PeriodUsed,
		PeriodResetAt: acc.PeriodResetAt,
	})
}
