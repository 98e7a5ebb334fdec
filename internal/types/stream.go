package types

// The chat endpoint answers with a server-sent event stream. Every event is a
// single JSON object; exactly one of the top-level keys is set, so clients can
// dispatch on the first present field. Once the stream has started, failures
// are delivered in-band as ErrorEvent, never as a transport error, so the
// client can tell "no output produced" apart from "connection broke".

// ContentEvent carries one incremental output fragment, in arrival order.
type ContentEvent struct {
	Content string `json:"content"`
}

// UsageEvent is emitted once after a successful metered completion.
type UsageEvent struct {
	Usage CostBreakdown `json:"usage"`
}

// CostBreakdown reports what a completed generation cost.
type CostBreakdown struct {
	PromptTokens     int     `json:"promptTokens"`
	CompletionTokens int     `json:"completionTokens"`
	Multiplier       float64 `json:"multiplier"`
	CreditsCharged   int64   `json:"creditsCharged"`
	NewBalance       int64   `json:"newBalance"`
}

// WarningEvent is a non-fatal notice (missing usage data, failed debit). The
// response it is attached to is still a success.
type WarningEvent struct {
	Warning string `json:"warning"`
	Detail  string `json:"detail,omitempty"`
}

// FallbackEvent is emitted once when a model other than the requested one
// served the request.
type FallbackEvent struct {
	Fallback FallbackInfo `json:"fallback"`
}

// FallbackInfo names the substitution that happened.
type FallbackInfo struct {
	Used         bool   `json:"used"`
	PrimaryModel string `json:"primaryModel"`
	ActualModel  string `json:"actualModel"`
	Message      string `json:"message"`
}

// ErrorEvent is a terminal failure and always the last event before close.
type ErrorEvent struct {
	Error           string   `json:"error"`
	Code            int      `json:"code"`
	ErrorType       string   `json:"errorType"`
	AttemptedModels []string `json:"attemptedModels,omitempty"`
	Retryable       bool     `json:"retryable"`
}

// SSE framing, shared with the upstream stream parser.
const (
	// SSEPrefix is the server-sent events data prefix.
	SSEPrefix = "data: "

	// SSEDone is the sentinel completion marker on pure success.
	SSEDone = "data: [DONE]\n\n"
)

// FormatSSE frames a JSON payload for server-sent events transmission.
func FormatSSE(data []byte) []byte {
	out := make([]byte, 0, len(SSEPrefix)+len(data)+2)
	out = append(out, SSEPrefix...)
	out = append(out, data...)
	out = append(out, '\n', '\n')
	return out
}
