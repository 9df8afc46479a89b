package profile

import (
	"sort"

	"github.com/krfmo/gridsim/peset"
)

// PartitionMatcher decides which partition a submitted item belongs to.
// Returns ok=false when no partition matches (the job is rejected).
type PartitionMatcher func(item any) (partitionID string, ok bool)

// Partitioned wraps one Profile per partition (spec.md §4.2 Partitioned
// profile). Each partition starts with a disjoint slab of the overall PE
// set; ranges are only shared across partitions when borrowing is
// active, which callers express by querying CheckAggregateAvailability
// instead of a single partition's CheckAvailability.
type Partitioned struct {
	partitions map[string]*Profile
	order      []string
	matcher    PartitionMatcher
}

// NewPartitioned creates a Partitioned profile from a set of named,
// disjoint initial PE slabs.
func NewPartitioned(slabs map[string]peset.List, matcher PartitionMatcher) *Partitioned {
	order := make([]string, 0, len(slabs))
	partitions := make(map[string]*Profile, len(slabs))
	for id, ranges := range slabs {
		order = append(order, id)
		partitions[id] = NewFromRanges(ranges)
	}
	return &Partitioned{partitions: partitions, order: order, matcher: matcher}
}

// PartitionIDs returns the partition ids. Their order is that of Go map
// iteration over the slabs given to NewPartitioned, so it is not defined.
func (p *Partitioned) PartitionIDs() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Partition returns the given partition's own Profile, or nil if unknown.
func (p *Partitioned) Partition(id string) *Profile {
	return p.partitions[id]
}

// MatchPartition applies the configured predicate to item, returning
// ("", false) when no partition matches (spec.md §4.2 matchPartition).
func (p *Partitioned) MatchPartition(item any) (string, bool) {
	if p.matcher == nil {
		return "", false
	}
	return p.matcher(item)
}

// CheckPartAvailability restricts CheckAvailability to a single
// partition's own profile (spec.md §4.2 checkPartAvailability).
func (p *Partitioned) CheckPartAvailability(partID string, numPE int, start, duration float64) (*Entry, bool) {
	part, ok := p.partitions[partID]
	if !ok {
		return nil, false
	}
	return part.CheckAvailability(numPE, start, duration)
}

// CheckAggregateAvailability unions every partition's free ranges over
// [start,start+duration) and checks whether the union holds numPE PEs.
// Used by borrowing-enabled policies (spec.md §4.4.3).
func (p *Partitioned) CheckAggregateAvailability(numPE int, start, duration float64) (*Entry, bool) {
	var union peset.List
	for _, id := range p.order {
		entry, ok := p.partitions[id].CheckAvailability(0, start, duration)
		if !ok {
			continue
		}
		if union == nil {
			union = entry.Avail
		} else {
			union = peset.Merge(union, entry.Avail)
		}
	}
	if union.NumPE() < numPE {
		return nil, false
	}
	return &Entry{Time: start, Avail: union}, true
}

// FindStartTimeAggregate returns the earliest time across all partitions'
// boundary times at which the aggregate (union) free set holds numPE PEs.
func (p *Partitioned) FindStartTimeAggregate(numPE int, duration float64) float64 {
	candidates := make([]float64, 0)
	for _, id := range p.order {
		for _, e := range p.partitions[id].entries {
			candidates = append(candidates, e.Time)
		}
	}
	sort.Float64s(candidates)
	for _, t := range candidates {
		if _, ok := p.CheckAggregateAvailability(numPE, t, duration); ok {
			return t
		}
	}
	return candidates[len(candidates)-1]
}
