// Package orchestrator runs the streaming chat pipeline: validate the
// request, check the balance, then walk the model's attempt order one
// candidate at a time, relaying output as it arrives. Upstream failures are
// classified to decide between moving to the next candidate and aborting.
// Billing settles after the stream completes, against the model that
// actually served the request.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tmanole/chatgate/internal/adapter"
	"github.com/tmanole/chatgate/internal/catalog"
	"github.com/tmanole/chatgate/internal/classify"
	"github.com/tmanole/chatgate/internal/ledger"
	"github.com/tmanole/chatgate/internal/provider"
	"github.com/tmanole/chatgate/internal/storage/models"
	"github.com/tmanole/chatgate/internal/types"
)

// DefaultAttemptTimeout bounds a single upstream attempt. Each fallback
// candidate gets a fresh window.
const DefaultAttemptTimeout = 120 * time.Second

// CreditLedger is the balance surface the orchestrator needs.
type CreditLedger interface {
	Balance(userID string) (int64, error)
	Deduct(userID string, amount int64, reason, model string) (int64, error)
}

// Emitter delivers stream events to the caller. Content returning an error
// means the caller is gone and the stream must stop. The other emits are
// best-effort; a failed write after the stream is committed changes nothing.
type Emitter interface {
	Content(fragment string) error
	Fallback(info types.FallbackInfo)
	Usage(breakdown types.CostBreakdown)
	Warning(warning, detail string)
	Error(ev types.ErrorEvent)
}

// Config carries the orchestrator's tunables.
type Config struct {
	Rates           ledger.Rates
	PreflightFloor  int64
	AttemptTimeout  time.Duration
	MaxMessages     int
	MaxMessageChars int
}

// Orchestrator drives one chat request from validation to settled billing.
type Orchestrator struct {
	catalog *catalog.Catalog
	adapter *adapter.Adapter
	ledger  CreditLedger
	chat    provider.ChatStreamer
	cfg     Config
	logger  *slog.Logger
}

// New creates an orchestrator. A zero AttemptTimeout falls back to the
// default window.
func New(cat *catalog.Catalog, ad *adapter.Adapter, led CreditLedger, chat provider.ChatStreamer, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		catalog: cat,
		adapter: ad,
		ledger:  led,
		chat:    chat,
		cfg:     cfg,
		logger:  logger,
	}
}

// Request is a validated, preflight-checked chat request ready to execute.
type Request struct {
	UserID       string
	Primary      string
	Attempts     []string
	SystemPrompt string
	Messages     []types.Message

	// Balance observed at preflight; reported back to the caller when the
	// request ends up costing nothing.
	Balance int64
}

// Result summarizes one executed request for logging.
type Result struct {
	ActualModel     string
	AttemptedModels []string
	Usage           *types.Usage
	CreditsCharged  int64
	Err             *classify.Error
	ClientGone      bool
}

// Prepare validates the request and runs the preflight balance check. No
// upstream provider is contacted. A returned *ValidationError maps to a 400;
// a returned *classify.Error carries its own status.
func (o *Orchestrator) Prepare(userID string, req *types.ChatRequest) (*Request, error) {
	msgs, err := o.validate(req)
	if err != nil {
		return nil, err
	}

	balance, err := o.ledger.Balance(userID)
	if err != nil {
		return nil, err
	}

	// A metered model needs a balance above the floor before we commit the
	// stream. Unmetered models pass regardless.
	if o.catalog.CostMultiplier(req.Model) > 0 && balance <= o.cfg.PreflightFloor {
		cerr := classify.Classify(classify.RawError{Status: 402, Message: classify.BalanceMarker})
		return nil, &cerr
	}

	return &Request{
		UserID:       userID,
		Primary:      req.Model,
		Attempts:     o.catalog.AttemptOrder(req.Model),
		SystemPrompt: req.SystemPrompt,
		Messages:     msgs,
		Balance:      balance,
	}, nil
}

// Execute runs the fallback loop and settles billing. The caller must have
// committed the stream before calling; every failure from here on is
// delivered in-band through the emitter.
func (o *Orchestrator) Execute(ctx context.Context, req *Request, emit Emitter) *Result {
	res := &Result{}

	var usage *types.Usage
	var lastErr classify.Error
	succeeded := false

	for _, model := range req.Attempts {
		res.AttemptedModels = append(res.AttemptedModels, model)

		wire := o.adapter.Format(model, req.SystemPrompt, req.Messages)

		attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.AttemptTimeout)
		clientGone := false
		u, err := o.chat.StreamChat(attemptCtx, model, wire, func(fragment string) error {
			if werr := emit.Content(fragment); werr != nil {
				clientGone = true
				return werr
			}
			return nil
		})
		cancel()

		if err == nil {
			usage = u
			res.ActualModel = model
			succeeded = true
			break
		}

		// The caller disconnecting ends the request outright: nothing to
		// retry for, nobody to bill.
		if clientGone || ctx.Err() != nil {
			o.logger.Info("client disconnected mid-stream", "user", req.UserID, "model", model)
			res.ClientGone = true
			return res
		}

		lastErr = classify.Classify(provider.AsRaw(err))
		o.logger.Warn("upstream attempt failed",
			"user", req.UserID,
			"model", model,
			"kind", string(lastErr.Kind),
			"detail", lastErr.Detail,
		)

		if classify.IsTerminal(lastErr) || !classify.ShouldFallback(lastErr) {
			res.Err = &lastErr
			emit.Error(errorEvent(lastErr, res.AttemptedModels))
			return res
		}
	}

	if !succeeded {
		res.Err = &lastErr
		emit.Error(errorEvent(lastErr, res.AttemptedModels))
		return res
	}

	if res.ActualModel != req.Primary {
		emit.Fallback(types.FallbackInfo{
			Used:         true,
			PrimaryModel: req.Primary,
			ActualModel:  res.ActualModel,
			Message:      "The requested model was unavailable; an alternative answered instead.",
		})
	}

	o.settle(req, res, usage, emit)
	return res
}

// settle computes and debits the cost of a completed stream. Billing
// problems never fail the response; the content is already delivered.
func (o *Orchestrator) settle(req *Request, res *Result, usage *types.Usage, emit Emitter) {
	if usage == nil {
		emit.Warning("usage data unavailable", "the provider reported no token counts; nothing was charged")
		return
	}
	res.Usage = usage

	multiplier := o.catalog.CostMultiplier(res.ActualModel)
	cost := ledger.Cost(usage.PromptTokens, usage.CompletionTokens, multiplier, o.cfg.Rates)

	breakdown := types.CostBreakdown{
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		Multiplier:       multiplier,
		NewBalance:       req.Balance,
	}

	if cost == 0 {
		emit.Usage(breakdown)
		return
	}

	newBalance, err := o.ledger.Deduct(req.UserID, cost, models.ReasonChat, res.ActualModel)
	if err != nil {
		o.logger.Error("debit failed after successful stream",
			"user", req.UserID,
			"model", res.ActualModel,
			"cost", cost,
			"error", err,
		)
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			emit.Warning("balance exhausted", "this response exceeded your remaining credits; the overage was not charged")
		} else {
			emit.Warning("billing incomplete", "the charge for this response could not be recorded")
		}
		return
	}

	res.CreditsCharged = cost
	breakdown.CreditsCharged = cost
	breakdown.NewBalance = newBalance
	emit.Usage(breakdown)
}

func errorEvent(e classify.Error, attempted []string) types.ErrorEvent {
	return types.ErrorEvent{
		Error:           e.Message,
		Code:            e.Status,
		ErrorType:       string(e.Kind),
		AttemptedModels: attempted,
		Retryable:       e.Retryable,
	}
}
