// Package adapter shapes a provider-agnostic system-prompt + history pair
// into the message list a specific upstream model family expects.
//
// Strategy selection is an explicit ordered list: exact model id match first,
// then the longest matching id prefix, then a default. This keeps the
// contract reproducible instead of leaning on map iteration order.
package adapter

import (
	"sort"

	"github.com/tmanole/chatgate/internal/types"
)

// Strategy formats one request for a model family.
type Strategy interface {
	// Format produces the wire message list sent upstream.
	Format(systemPrompt string, messages []types.Message) []types.Message
}

// Adapter selects and applies the formatting strategy for a model id.
type Adapter struct {
	exact    map[string]Strategy
	prefixes []prefixRule // sorted longest first
	fallback Strategy
}

type prefixRule struct {
	prefix   string
	strategy Strategy
}

// New creates an adapter with the built-in strategy table.
func New() *Adapter {
	noSystem := NoSystemRole{}
	return NewWithRules(
		map[string]Strategy{
			// o1-preview era models reject the system role outright.
			"openai/o1-preview": noSystem,
			"openai/o1-mini":    noSystem,
		},
		[]PrefixStrategy{
			{Prefix: "google/gemma", Strategy: noSystem},
			{Prefix: "mistralai/mistral-7b", Strategy: noSystem},
		},
		SystemRole{},
	)
}

// PrefixStrategy binds a model id prefix to a strategy.
type PrefixStrategy struct {
	Prefix   string
	Strategy Strategy
}

// NewWithRules creates an adapter with an explicit rule table.
func NewWithRules(exact map[string]Strategy, prefixes []PrefixStrategy, fallback Strategy) *Adapter {
	rules := make([]prefixRule, 0, len(prefixes))
	for _, p := range prefixes {
		rules = append(rules, prefixRule{prefix: p.Prefix, strategy: p.Strategy})
	}
	// Longest prefix wins; sort once at construction.
	sort.SliceStable(rules, func(i, j int) bool {
		return len(rules[i].prefix) > len(rules[j].prefix)
	})
	return &Adapter{exact: exact, prefixes: rules, fallback: fallback}
}

// Format shapes the request for the given model id.
func (a *Adapter) Format(modelID, systemPrompt string, messages []types.Message) []types.Message {
	return a.strategyFor(modelID).Format(systemPrompt, messages)
}

func (a *Adapter) strategyFor(modelID string) Strategy {
	if s, ok := a.exact[modelID]; ok {
		return s
	}
	for _, r := range a.prefixes {
		if len(modelID) >= len(r.prefix) && modelID[:len(r.prefix)] == r.prefix {
			return r.strategy
		}
	}
	return a.fallback
}

// SystemRole is the default strategy: a standard system-role message followed
// by the history unchanged.
type SystemRole struct{}

// Format implements Strategy.
func (SystemRole) Format(systemPrompt string, messages []types.Message) []types.Message {
	if systemPrompt == "" {
		return messages
	}
	out := make([]types.Message, 0, len(messages)+1)
	out = append(out, types.NewTextMessage(types.RoleSystem, systemPrompt))
	out = append(out, messages...)
	return out
}

// NoSystemRole serves model families that reject a system role by splicing
// the system prompt into the first user message: prepended to the text when
// the content is plain, or as an extra leading text part when multimodal.
//
// When the first message is not user-authored the system prompt is dropped
// silently. That is deliberate, long-standing behavior clients depend on;
// do not "fix" it here without a migration plan.
type NoSystemRole struct{}

// Format implements Strategy.
func (NoSystemRole) Format(systemPrompt string, messages []types.Message) []types.Message {
	if systemPrompt == "" || len(messages) == 0 {
		return messages
	}
	if messages[0].Role != types.RoleUser {
		return messages
	}

	out := make([]types.Message, len(messages))
	copy(out, messages)

	first := out[0]
	if first.Content.IsMultimodal() {
		parts := make([]types.ContentPart, 0, len(first.Content.Parts)+1)
		parts = append(parts, types.ContentPart{Type: types.ContentTypeText, Text: systemPrompt})
		parts = append(parts, first.Content.Parts...)
		first.Content = types.Content{Parts: parts}
	} else {
		first.Content = types.Content{Text: systemPrompt + "\n\n" + first.Content.Text}
	}
	out[0] = first
	return out
}
