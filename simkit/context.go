package simkit

// SimContext bundles the process-wide state that would otherwise be held
// as package-level globals: the entity registry, the FNB whitelist, and a
// handle on the kernel clock. It is constructed once at simulation setup
// and passed explicitly into every entity constructor, making the
// dependency edges visible (Design Notes §9) instead of reaching for
// ambient global state.
type SimContext struct {
	Registry  *Registry
	Whitelist *Whitelist
	Kernel    Kernel
}

// NewSimContext wires a fresh Registry and Whitelist around the given
// Kernel.
func NewSimContext(k Kernel) *SimContext {
	return &SimContext{
		Registry:  NewRegistry(),
		Whitelist: NewWhitelist(),
		Kernel:    k,
	}
}

// Clock is a convenience passthrough to Kernel.Clock().
func (c *SimContext) Clock() float64 {
	return c.Kernel.Clock()
}

// Schedule is a convenience passthrough to Kernel.Schedule().
func (c *SimContext) Schedule(delay float64, ev Event) {
	c.Kernel.Schedule(delay, ev)
}
