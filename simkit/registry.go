package simkit

import "fmt"

// Registry is the process-wide entity directory: id -> Entity. Confined
// to SimContext rather than held as a package-level global so the
// dependency is visible in every entity's constructor (Design Notes §9).
type Registry struct {
	entities map[EntityID]Entity
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entities: make(map[EntityID]Entity)}
}

// Register adds an entity under its own ID. Overwrites silently if the id
// is already present (redeployment/test-reset use case).
func (r *Registry) Register(e Entity) {
	r.entities[e.ID()] = e
}

// Lookup resolves an id to its entity, or ok=false if unregistered.
func (r *Registry) Lookup(id EntityID) (Entity, bool) {
	e, ok := r.entities[id]
	return e, ok
}

// MustLookup resolves an id, panicking with a descriptive message if
// absent. Reserved for call sites where an unregistered id is a
// programming error (internal invariant violation), not a runtime
// NotFound condition (spec.md §7 distinguishes the two).
func (r *Registry) MustLookup(id EntityID) Entity {
	e, ok := r.entities[id]
	if !ok {
		panic(fmt.Sprintf("simkit: entity %q not registered", id))
	}
	return e
}

// IDs returns every registered entity id, in no particular order.
func (r *Registry) IDs() []EntityID {
	ids := make([]EntityID, 0, len(r.entities))
	for id := range r.entities {
		ids = append(ids, id)
	}
	return ids
}
