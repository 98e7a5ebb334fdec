package handler

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tmanole/chatgate/internal/classify"
	"github.com/tmanole/chatgate/internal/ledger"
	"github.com/tmanole/chatgate/internal/provider"
	"github.com/tmanole/chatgate/internal/storage"
	"github.com/tmanole/chatgate/internal/storage/models"
	"github.com/tmanole/chatgate/internal/transport/http/middleware"
	"github.com/tmanole/chatgate/internal/transport/http/middleware/auth"
	"github.com/tmanole/chatgate/internal/types"
)

// maxImagesPerRequest caps one generation call.
const maxImagesPerRequest = 4

// ImagesGenerations handles an image generation request. Unlike chat this is
// a plain request/response: cost is a flat per-image rate scaled by the
// model's multiplier, charged after generation succeeds.
func (h *Repo) ImagesGenerations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	userID := auth.GetUserID(r.Context())

	var req types.ImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		types.WriteError(w, http.StatusBadRequest, types.ErrInvalidRequest("invalid request body"))
		return
	}
	if req.Prompt == "" {
		types.WriteError(w, http.StatusBadRequest, types.ErrInvalidRequest("prompt is required"))
		return
	}
	if req.N < 0 || req.N > maxImagesPerRequest {
		types.WriteError(w, http.StatusBadRequest, types.ErrInvalidRequest("n must be between 1 and 4"))
		return
	}

	model, ok := h.Catalog.Lookup(req.Model)
	if !ok || model.Provider != "media" {
		types.WriteError(w, http.StatusBadRequest, types.ErrInvalidRequest("model is not available for image generation: "+req.Model))
		return
	}

	n := req.N
	if n == 0 {
		n = 1
	}
	cost := imageCost(h.Config.ImageRate, model.Multiplier, n)

	balance, err := h.Ledger.Balance(userID)
	if err != nil {
		types.WriteError(w, http.StatusInternalServerError, types.ErrServer("internal error"))
		return
	}
	if cost > 0 && balance <= h.Config.PreflightFloor {
		types.WriteError(w, http.StatusPaymentRequired,
			types.NewAPIError("Your credit balance is too low for this request.", types.ErrorTypeBalance))
		return
	}

	data, err := h.Images.Generate(r.Context(), &req)
	if err != nil {
		cerr := classify.Classify(provider.AsRaw(err))
		h.Logger.Warn("image generation failed", "user", userID, "model", req.Model, "kind", string(cerr.Kind), "detail", cerr.Detail)
		types.WriteError(w, cerr.Status, types.NewAPIError(cerr.Message, types.ErrorTypeServer))
		h.logImageRequest(r, userID, req.Model, &cerr, time.Since(start))
		return
	}

	newBalance := balance
	charged := int64(0)
	if cost > 0 {
		newBalance, err = h.Ledger.Deduct(userID, cost, models.ReasonImage, req.Model)
		if err != nil {
			// The images are already generated; a failed debit is a billing
			// gap, not a request failure.
			h.Logger.Error("image debit failed", "user", userID, "cost", cost, "error", err)
			if errors.Is(err, ledger.ErrInsufficientBalance) {
				newBalance = balance
			}
		} else {
			charged = cost
		}
	}

	types.WriteJSON(w, http.StatusOK, &types.ImageResponse{
		Created:        time.Now().Unix(),
		Data:           data,
		CreditsCharged: charged,
		NewBalance:     newBalance,
	})
	h.logImageRequest(r, userID, req.Model, nil, time.Since(start))
}

// imageCost prices one generation call: flat rate per image, scaled by the
// model multiplier, minimum 1 credit when metered.
func imageCost(rate int64, multiplier float64, n int) int64 {
	if multiplier <= 0 {
		return 0
	}
	cost := int64(math.Ceil(float64(rate) * multiplier * float64(n)))
	if cost < 1 {
		cost = 1
	}
	return cost
}

func (h *Repo) logImageRequest(r *http.Request, userID, model string, cerr *classify.Error, duration time.Duration) {
	statusCode := http.StatusOK
	errorType, errorMessage := "", ""
	if cerr != nil {
		statusCode = cerr.Status
		errorType = string(cerr.Kind)
		errorMessage = cerr.Detail
	}

	entry := &storage.RequestLog{
		ID:           uuid.New().String(),
		RequestID:    middleware.GetRequestID(r.Context()),
		UserID:       userID,
		Model:        model,
		Provider:     "media",
		StatusCode:   statusCode,
		ErrorType:    errorType,
		ErrorMessage: errorMessage,
		DurationMs:   duration.Milliseconds(),
		CreatedAt:    time.Now(),
	}
	if err := h.Store.LogRequest(entry); err != nil {
		h.Logger.Error("request log write failed", "request_id", entry.RequestID, "error", err)
	}
}
