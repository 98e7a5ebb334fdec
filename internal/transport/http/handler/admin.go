package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tmanole/chatgate/internal/storage"
	"github.com/tmanole/chatgate/internal/storage/models"
	"github.com/tmanole/chatgate/internal/transport/http/middleware/auth"
	"github.com/tmanole/chatgate/internal/types"
)

// AdminLogin verifies the admin password and issues a session token.
func (h *Repo) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		types.WriteError(w, http.StatusBadRequest, types.ErrInvalidRequest("password is required"))
		return
	}

	hash, err := h.Store.GetAdminPasswordHash()
	if err != nil || hash == "" {
		types.WriteError(w, http.StatusUnauthorized, types.ErrAuthentication("admin not configured"))
		return
	}

	valid, err := storage.VerifySecret(req.Password, hash)
	if err != nil || !valid {
		types.WriteError(w, http.StatusUnauthorized, types.ErrAuthentication("invalid credentials"))
		return
	}

	token, err := auth.IssueAdminToken(h.Config.AdminJWTSecret)
	if err != nil {
		h.Logger.Error("admin token issue failed", "error", err)
		types.WriteError(w, http.StatusInternalServerError, types.ErrServer("internal error"))
		return
	}

	types.WriteJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_in": int64(auth.AdminTokenLifetime.Seconds()),
	})
}

// GrantCredits adds credits to a user's balance.
func (h *Repo) GrantCredits(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
		Amount int64  `json:"amount"`
		Note   string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		types.WriteError(w, http.StatusBadRequest, types.ErrInvalidRequest("invalid request body"))
		return
	}
	if req.UserID == "" {
		types.WriteError(w, http.StatusBadRequest, types.ErrInvalidRequest("userId is required"))
		return
	}
	if req.Amount <= 0 {
		types.WriteError(w, http.StatusBadRequest, types.ErrInvalidRequest("amount must be positive"))
		return
	}

	grantedBy := "admin"
	if req.Note != "" {
		grantedBy = "admin: " + req.Note
	}

	newBalance, err := h.Ledger.Grant(req.UserID, req.Amount, grantedBy)
	if err != nil {
		h.Logger.Error("credit grant failed", "user", req.UserID, "amount", req.Amount, "error", err)
		types.WriteError(w, http.StatusInternalServerError, types.ErrServer("internal error"))
		return
	}

	types.WriteJSON(w, http.StatusOK, map[string]any{
		"userId":     req.UserID,
		"granted":    req.Amount,
		"newBalance": newBalance,
	})
}

// CreateAPIKey issues a new client key for a user. The full key is returned
// once; only its hash is stored.
func (h *Repo) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    string     `json:"userId"`
		Name      string     `json:"name"`
		ExpiresAt *time.Time `json:"expiresAt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		types.WriteError(w, http.StatusBadRequest, types.ErrInvalidRequest("userId is required"))
		return
	}

	key, err := storage.GenerateAPIKey()
	if err != nil {
		types.WriteError(w, http.StatusInternalServerError, types.ErrServer("internal error"))
		return
	}
	hash, err := storage.HashSecret(key)
	if err != nil {
		types.WriteError(w, http.StatusInternalServerError, types.ErrServer("internal error"))
		return
	}

	record := &storage.APIKey{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Name:      req.Name,
		KeyHash:   hash,
		KeyPrefix: storage.ExtractKeyPrefix(key),
		IsActive:  true,
		CreatedAt: time.Now(),
		ExpiresAt: req.ExpiresAt,
	}
	if err := h.Store.CreateAPIKey(record); err != nil {
		h.Logger.Error("api key create failed", "user", req.UserID, "error", err)
		types.WriteError(w, http.StatusInternalServerError, types.ErrServer("internal error"))
		return
	}

	types.WriteJSON(w, http.StatusCreated, map[string]any{
		"id":        record.ID,
		"userId":    record.UserID,
		"name":      record.Name,
		"key":       key,
		"keyMasked": storage.MaskAPIKey(key),
		"createdAt": record.CreatedAt,
	})
}

// GetUsageStats returns aggregated usage, filterable by user, model, and
// date range.
func (h *Repo) GetUsageStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.StatsFilter{
		UserID: q.Get("user_id"),
		Model:  q.Get("model"),
	}
	if t, ok := parseDate(q.Get("start_date")); ok {
		filter.StartDate = &t
	}
	if t, ok := parseDate(q.Get("end_date")); ok {
		filter.EndDate = &t
	}

	stats, err := h.Store.GetUsageStats(filter)
	if err != nil {
		h.Logger.Error("usage stats query failed", "error", err)
		types.WriteError(w, http.StatusInternalServerError, types.ErrServer("internal error"))
		return
	}
	types.WriteJSON(w, http.StatusOK, stats)
}

// GetRequestLogs returns recent request logs, filterable and paginated.
func (h *Repo) GetRequestLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.LogFilter{
		UserID:    q.Get("user_id"),
		Model:     q.Get("model"),
		ErrorType: q.Get("error_type"),
	}
	if t, ok := parseDate(q.Get("start_date")); ok {
		filter.StartDate = &t
	}
	if t, ok := parseDate(q.Get("end_date")); ok {
		filter.EndDate = &t
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = n
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil {
		filter.Offset = n
	}

	logs, err := h.Store.GetRequestLogs(filter)
	if err != nil {
		h.Logger.Error("request log query failed", "error", err)
		types.WriteError(w, http.StatusInternalServerError, types.ErrServer("internal error"))
		return
	}
	types.WriteJSON(w, http.StatusOK, map[string]any{
		"logs":  logs,
		"count": len(logs),
	})
}

// parseDate accepts RFC 3339 timestamps and bare dates.
func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
