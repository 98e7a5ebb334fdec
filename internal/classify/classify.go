// Package classify normalizes upstream provider failures into a closed
// taxonomy so the streaming orchestrator can decide between retrying the next
// fallback candidate and aborting the request.
//
// Classification is a pure function over a small structured view of the raw
// failure. The matching rules are an ordered list and their order is load
// bearing: a 429 that also mentions "timeout" must classify as a rate limit.
package classify

import "strings"

// Kind is the closed set of failure categories.
type Kind string

// Failure kinds.
const (
	KindRateLimit           Kind = "RATE_LIMIT"
	KindContentPolicy       Kind = "CONTENT_POLICY"
	KindUnavailable         Kind = "UNAVAILABLE"
	KindMisconfigured       Kind = "MISCONFIGURED"
	KindTimeout             Kind = "TIMEOUT"
	KindNetwork             Kind = "NETWORK"
	KindInsufficientBalance Kind = "INSUFFICIENT_BALANCE"
	KindExternalBilling     Kind = "EXTERNAL_BILLING"
	KindUnknown             Kind = "UNKNOWN"
)

// BalanceMarker tags 402 errors raised by our own ledger so they are never
// mistaken for an upstream provider's billing failure.
const BalanceMarker = "chatgate: insufficient credit balance"

// RawError is the structured view of an upstream failure that classification
// operates on, independent of the underlying error representation.
type RawError struct {
	Status   int
	Message  string
	Canceled bool
}

// Error is a classified failure.
type Error struct {
	Kind      Kind
	Status    int
	Message   string // user facing
	Detail    string // technical, logs only
	Retryable bool
}

func (e Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// User-facing messages, kept apart from the technical detail.
var userMessages = map[Kind]string{
	KindRateLimit:           "The model is receiving too many requests. Trying an alternative...",
	KindContentPolicy:       "The request was declined by the provider's content policy.",
	KindUnavailable:         "The model is temporarily unavailable. Trying an alternative...",
	KindMisconfigured:       "The service is misconfigured. Please contact support.",
	KindTimeout:             "The model took too long to respond.",
	KindNetwork:             "A network problem interrupted the request.",
	KindInsufficientBalance: "Your credit balance is too low for this request.",
	KindExternalBilling:     "The upstream provider rejected the request for billing reasons.",
	KindUnknown:             "Something went wrong while generating a response.",
}

// HTTP status surfaced to the caller per kind, used for pre-stream responses.
var statusCodes = map[Kind]int{
	KindRateLimit:           429,
	KindContentPolicy:       403,
	KindUnavailable:         503,
	KindMisconfigured:       500,
	KindTimeout:             504,
	KindNetwork:             502,
	KindInsufficientBalance: 402,
	KindExternalBilling:     402,
	KindUnknown:             500,
}

func containsAny(msg string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(msg, t) {
			return true
		}
	}
	return false
}

// rules are evaluated top to bottom; the first match wins.
var rules = []func(e RawError, msg string) (Kind, bool, bool){
	// 1. Rate limiting.
	func(e RawError, msg string) (Kind, bool, bool) {
		if e.Status == 429 || strings.Contains(msg, "rate limit") {
			return KindRateLimit, true, true
		}
		return "", false, false
	},
	// 2. 404: content policy takedowns masquerade as not-found on some
	// aggregators; anything else is a routable outage.
	func(e RawError, msg string) (Kind, bool, bool) {
		if e.Status != 404 {
			return "", false, false
		}
		if containsAny(msg, "policy", "content", "moderation") {
			return KindContentPolicy, false, true
		}
		return KindUnavailable, true, true
	},
	// 3. Credential problems are ours, not the caller's.
	func(e RawError, msg string) (Kind, bool, bool) {
		if e.Status == 401 || e.Status == 403 || containsAny(msg, "unauthorized", "forbidden", "api key", "api-key") {
			return KindMisconfigured, false, true
		}
		return "", false, false
	},
	// 4. Timeouts, including canceled in-flight calls.
	func(e RawError, msg string) (Kind, bool, bool) {
		if e.Status == 408 || e.Canceled || containsAny(msg, "timeout", "timed out") {
			return KindTimeout, true, true
		}
		return "", false, false
	},
	// 5. 402: our own ledger rejection vs the provider's billing failure.
	func(e RawError, msg string) (Kind, bool, bool) {
		if e.Status != 402 {
			return "", false, false
		}
		if strings.Contains(e.Message, BalanceMarker) {
			return KindInsufficientBalance, false, true
		}
		return KindExternalBilling, false, true
	},
	// 6. Legacy balance error shape, status independent.
	func(e RawError, msg string) (Kind, bool, bool) {
		if strings.Contains(msg, "insufficient tokens") {
			return KindInsufficientBalance, false, true
		}
		return "", false, false
	},
	// 7. Upstream outages.
	func(e RawError, msg string) (Kind, bool, bool) {
		if e.Status >= 500 || strings.Contains(msg, "internal server") {
			return KindUnavailable, true, true
		}
		return "", false, false
	},
	// 8. Connectivity.
	func(e RawError, msg string) (Kind, bool, bool) {
		if containsAny(msg, "network", "connection refused", "connection") {
			return KindNetwork, true, true
		}
		return "", false, false
	},
}

// Classify maps a raw upstream failure into the taxonomy. It is pure: the
// same input always yields the same classification.
func Classify(raw RawError) Error {
	msg := strings.ToLower(raw.Message)

	for _, r := range rules {
		kind, retryable, ok := r(raw, msg)
		if !ok {
			continue
		}
		return build(kind, raw, retryable)
	}
	return build(KindUnknown, raw, true)
}

func build(kind Kind, raw RawError, retryable bool) Error {
	return Error{
		Kind:      kind,
		Status:    statusCodes[kind],
		Message:   userMessages[kind],
		Detail:    raw.Message,
		Retryable: retryable,
	}
}

// ShouldFallback reports whether the orchestrator may move on to the next
// candidate after this failure.
func ShouldFallback(e Error) bool {
	switch e.Kind {
	case KindRateLimit, KindUnavailable, KindTimeout, KindUnknown:
		return e.Retryable
	}
	return false
}

// IsTerminal reports whether this failure must stop the fallback loop
// immediately, regardless of remaining candidates.
func IsTerminal(e Error) bool {
	switch e.Kind {
	case KindMisconfigured, KindContentPolicy, KindInsufficientBalance:
		return true
	}
	return false
}
