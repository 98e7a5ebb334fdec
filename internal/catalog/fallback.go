package catalog

// ChainFor returns the ordered fallback chain for a model, already bounded
// and self-reference free by construction. Unknown ids have no chain.
func (c *Catalog) ChainFor(id string) []string {
	m, ok := c.models[id]
	if !ok {
		return nil
	}
	return m.Fallbacks
}

// AttemptOrder returns the full candidate list a request will try: the
// primary model first, then its fallback chain.
func (c *Catalog) AttemptOrder(id string) []string {
	chain := c.ChainFor(id)
	out := make([]string, 0, len(chain)+1)
	out = append(out, id)
	out = append(out, chain...)
	return out
}
