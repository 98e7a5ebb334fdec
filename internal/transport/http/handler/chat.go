package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tmanole/chatgate/internal/classify"
	"github.com/tmanole/chatgate/internal/orchestrator"
	"github.com/tmanole/chatgate/internal/storage"
	"github.com/tmanole/chatgate/internal/transport/http/middleware"
	"github.com/tmanole/chatgate/internal/transport/http/middleware/auth"
	"github.com/tmanole/chatgate/internal/types"
)

// ChatStream handles a streaming chat request. Validation and the balance
// preflight answer with a plain JSON error; once they pass, the response
// commits to an SSE stream and every later problem is an in-band event.
func (h *Repo) ChatStream(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	userID := auth.GetUserID(r.Context())

	var req types.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		types.WriteError(w, http.StatusBadRequest, types.ErrInvalidRequest("invalid request body"))
		return
	}

	prepared, err := h.Orchestrator.Prepare(userID, &req)
	if err != nil {
		h.writePrepareError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		types.WriteError(w, http.StatusInternalServerError, types.ErrServer("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	emit := &sseEmitter{w: w, flusher: flusher}
	res := h.Orchestrator.Execute(r.Context(), prepared, emit)

	if res.Err == nil && !res.ClientGone {
		_, _ = w.Write([]byte(types.SSEDone))
		flusher.Flush()
	}

	go h.logChatRequest(middleware.GetRequestID(r.Context()), userID, &req, res, time.Since(start))
}

// writePrepareError maps a pre-stream failure to its JSON response.
func (h *Repo) writePrepareError(w http.ResponseWriter, err error) {
	var verr *orchestrator.ValidationError
	if errors.As(err, &verr) {
		types.WriteError(w, http.StatusBadRequest, types.ErrInvalidRequest(verr.Reason))
		return
	}

	var cerr *classify.Error
	if errors.As(err, &cerr) {
		errType := types.ErrorTypeServer
		if cerr.Kind == classify.KindInsufficientBalance {
			errType = types.ErrorTypeBalance
		}
		types.WriteError(w, cerr.Status, types.NewAPIError(cerr.Message, errType))
		return
	}

	types.WriteError(w, http.StatusInternalServerError, types.ErrServer("internal error"))
}

// logChatRequest records the request outcome. Prompt tokens fall back to a
// local estimate when the upstream reported no usage.
func (h *Repo) logChatRequest(requestID, userID string, req *types.ChatRequest, res *orchestrator.Result, duration time.Duration) {
	promptTokens, completionTokens := 0, 0
	if res.Usage != nil {
		promptTokens = res.Usage.PromptTokens
		completionTokens = res.Usage.CompletionTokens
	} else if h.Tokenizer != nil {
		if n, err := h.Tokenizer.CountMessages(req.Messages, req.Model); err == nil {
			promptTokens = n
		}
	}

	statusCode := http.StatusOK
	errorType, errorMessage := "", ""
	if res.Err != nil {
		statusCode = res.Err.Status
		errorType = string(res.Err.Kind)
		errorMessage = res.Err.Detail
	}

	entry := &storage.RequestLog{
		ID:               uuid.New().String(),
		RequestID:        requestID,
		UserID:           userID,
		Model:            res.ActualModel,
		AttemptedModels:  strings.Join(res.AttemptedModels, ","),
		Provider:         "openrouter",
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		IsStreaming:      true,
		StatusCode:       statusCode,
		ErrorType:        errorType,
		ErrorMessage:     errorMessage,
		DurationMs:       duration.Milliseconds(),
		CreatedAt:        time.Now(),
	}
	if entry.Model == "" {
		entry.Model = req.Model
	}

	if err := h.Store.LogRequest(entry); err != nil {
		h.Logger.Error("request log write failed", "request_id", requestID, "error", err)
	}
}

// sseEmitter delivers orchestrator events as server-sent events. Writes for
// non-content events are best-effort; the content path reports failures so
// the stream can stop when the caller disconnects.
type sseEmitter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (e *sseEmitter) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := e.w.Write(types.FormatSSE(data)); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}

func (e *sseEmitter) Content(fragment string) error {
	return e.send(types.ContentEvent{Content: fragment})
}

func (e *sseEmitter) Fallback(info types.FallbackInfo) {
	_ = e.send(types.FallbackEvent{Fallback: info})
}

func (e *sseEmitter) Usage(breakdown types.CostBreakdown) {
	_ = e.send(types.UsageEvent{Usage: breakdown})
}

func (e *sseEmitter) Warning(warning, detail string) {
	_ = e.send(types.WarningEvent{Warning: warning, Detail: detail})
}

func (e *sseEmitter) Error(ev types.ErrorEvent) {
	_ = e.send(ev)
}
