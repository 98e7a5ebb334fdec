// Package catalog holds the static model allowlist: which models clients may
// request, what they cost, and which alternates to try when they fail. The
// catalog is built once at startup and never mutated.
package catalog

// Tier classifies a model by billing policy.
type Tier string

// Tier constants.
const (
	TierFree   Tier = "free"
	TierPaid   Tier = "paid"
	TierLegacy Tier = "legacy"
)

// DefaultMultiplier is applied when a model has no catalog entry. Lookups on
// unknown ids should not happen on validated paths, but billing must not
// silently become free if they do.
const DefaultMultiplier = 1.0

// MaxFallbacks bounds the length of any fallback chain.
const MaxFallbacks = 3

// Model describes one allowed model.
type Model struct {
	// ID is the globally unique model identifier (e.g. "openai/gpt-4o").
	ID string

	// Name is the human-readable display name.
	Name string

	// Tier is the billing classification.
	Tier Tier

	// Multiplier scales raw token cost into charged credits. Zero means
	// the model is unmetered.
	Multiplier float64

	// Provider names the upstream serving this model.
	Provider string

	// Fallbacks is the ordered chain of alternates tried on failure.
	Fallbacks []string
}

// Catalog is an immutable registry of allowed models.
type Catalog struct {
	models map[string]Model
}

// New builds a catalog from the given entries. Construction enforces the
// fallback invariants: a model never lists itself as its own fallback, and
// chains are truncated to MaxFallbacks.
func New(entries []Model) *Catalog {
	models := make(map[string]Model, len(entries))
	for _, m := range entries {
		m.Fallbacks = sanitizeChain(m.ID, m.Fallbacks)
		models[m.ID] = m
	}
	return &Catalog{models: models}
}

func sanitizeChain(id string, chain []string) []string {
	out := make([]string, 0, MaxFallbacks)
	for _, alt := range chain {
		if alt == id || alt == "" {
			continue
		}
		out = append(out, alt)
		if len(out) == MaxFallbacks {
			break
		}
	}
	return out
}

// IsAllowed reports whether the id is present in the registry.
func (c *Catalog) IsAllowed(id string) bool {
	_, ok := c.models[id]
	return ok
}

// Lookup returns the model descriptor for id.
func (c *Catalog) Lookup(id string) (Model, bool) {
	m, ok := c.models[id]
	return m, ok
}

// CostMultiplier returns the model's multiplier, or DefaultMultiplier when
// the id is unknown.
func (c *Catalog) CostMultiplier(id string) float64 {
	if m, ok := c.models[id]; ok {
		return m.Multiplier
	}
	return DefaultMultiplier
}

// Tier returns the model's tier. The second return is false for unknown ids.
func (c *Catalog) Tier(id string) (Tier, bool) {
	m, ok := c.models[id]
	if !ok {
		return "", false
	}
	return m.Tier, true
}

// List returns all models in the registry. The slice is a copy; callers may
// not mutate catalog state through it.
func (c *Catalog) List() []Model {
	out := make([]Model, 0, len(c.models))
	for _, m := range c.models {
		out = append(out, m)
	}
	return out
}
