package ledger

import "math"

// Rates price raw token usage in credits per million tokens.
type Rates struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// DefaultRates matches the published credit pricing.
var DefaultRates = Rates{
	InputPerMillion:  30,
	OutputPerMillion: 60,
}

// Cost computes the credits charged for a chat turn:
// ceil((in/1e6*inputRate + out/1e6*outputRate) * multiplier), with a minimum
// charge of 1 for any request that produced usage. Unmetered models
// (multiplier 0) and requests with no reported usage cost nothing.
func Cost(inputTokens, outputTokens int, multiplier float64, rates Rates) int64 {
	if multiplier <= 0 {
		return 0
	}
	if inputTokens <= 0 && outputTokens <= 0 {
		return 0
	}

	raw := (float64(inputTokens)/1e6*rates.InputPerMillion +
		float64(outputTokens)/1e6*rates.OutputPerMillion) * multiplier

	cost := int64(math.Ceil(raw))
	if cost < 1 {
		cost = 1
	}
	return cost
}
