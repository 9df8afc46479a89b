package profile

import (
	"sort"

	"github.com/krfmo/gridsim/peset"
)

// Profile is the time-sorted availability record of spec.md §4.2. The
// leftmost entry always represents "right now"; entries are strictly
// increasing in time and are never mutated through aliasing — every
// public method that changes state does so by replacing the entries
// slice, never handing out a mutable Avail to a caller.
type Profile struct {
	entries []*Entry
}

// New creates a Profile whose entire PE set (total) is free starting at
// time 0.
func New(total int) *Profile {
	full := peset.List{}
	if total > 0 {
		full = peset.Of(peset.Range{From: 0, To: total - 1})
	}
	return &Profile{entries: []*Entry{{Time: 0, Avail: full}}}
}

// NewFromRanges creates a Profile whose initial free set (at time 0) is
// exactly ranges, used by partitioned profiles to seed a partition's own
// slab.
func NewFromRanges(ranges peset.List) *Profile {
	return &Profile{entries: []*Entry{{Time: 0, Avail: ranges.Clone()}}}
}

// Now returns the time of the leftmost ("current") entry.
func (p *Profile) Now() float64 {
	return p.entries[0].Time
}

// CurrentAvail returns the PE ranges free right now.
func (p *Profile) CurrentAvail() peset.List {
	return p.entries[0].Avail.Clone()
}

// Entries returns a read-only snapshot of the profile's entries, in time
// order. Used by tests and by the reservation state machine's
// alternative-slot computation.
func (p *Profile) Entries() []Entry {
	out := make([]Entry, len(p.entries))
	for i, e := range p.entries {
		out[i] = *e
	}
	return out
}

// effectiveIndex returns the index of the last entry with Time <= t
// (the entry in effect at instant t).
func (p *Profile) effectiveIndex(t float64) int {
	idx := sort.Search(len(p.entries), func(i int) bool { return p.entries[i].Time > t })
	if idx == 0 {
		return 0
	}
	return idx - 1
}

// indexAt returns the index of the entry with Time == t, or -1.
func (p *Profile) indexAt(t float64) int {
	idx := sort.Search(len(p.entries), func(i int) bool { return p.entries[i].Time >= t })
	if idx < len(p.entries) && p.entries[idx].Time == t {
		return idx
	}
	return -1
}

// ensureEntry inserts an entry at time t (cloning the Avail of the entry
// currently in effect at t) if one doesn't already exist, and returns its
// index.
func (p *Profile) ensureEntry(t float64) int {
	idx := sort.Search(len(p.entries), func(i int) bool { return p.entries[i].Time >= t })
	if idx < len(p.entries) && p.entries[idx].Time == t {
		return idx
	}
	var avail peset.List
	if idx > 0 {
		avail = p.entries[idx-1].Avail.Clone()
	} else {
		avail = peset.List{}
	}
	entry := &Entry{Time: t, Avail: avail}
	p.entries = append(p.entries, nil)
	copy(p.entries[idx+1:], p.entries[idx:])
	p.entries[idx] = entry
	return idx
}

// coalesce merges adjacent entries carrying identical free ranges,
// never dropping the leftmost ("now") entry.
func (p *Profile) coalesce() {
	out := p.entries[:1]
	for i := 1; i < len(p.entries); i++ {
		last := out[len(out)-1]
		cur := p.entries[i]
		if availEqual(last.Avail, cur.Avail) {
			last.NumRefs += cur.NumRefs
			continue
		}
		out = append(out, cur)
	}
	p.entries = out
}

func availEqual(a, b peset.List) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// CheckAvailability returns a virtual entry whose Avail is the
// intersection of every stored entry's ranges over [start, start+duration),
// or ok=false if that intersection holds fewer than numPE PEs
// (spec.md §4.2).
func (p *Profile) CheckAvailability(numPE int, start, duration float64) (*Entry, bool) {
	end := start + duration
	idx := p.effectiveIndex(start)
	avail := p.entries[idx].Avail
	for i := idx + 1; i < len(p.entries) && p.entries[i].Time < end; i++ {
		avail = peset.Intersect(avail, p.entries[i].Avail)
	}
	if avail.NumPE() < numPE {
		return nil, false
	}
	return &Entry{Time: start, Avail: avail}, true
}

// FindStartTime returns the earliest time t >= Now() at which numPE PEs
// are continuously free for duration (spec.md §4.2). Always succeeds
// given numPE <= total PE count: beyond the last recorded boundary the
// full original PE set is free.
func (p *Profile) FindStartTime(numPE int, duration float64) float64 {
	for _, e := range p.entries {
		if _, ok := p.CheckAvailability(numPE, e.Time, duration); ok {
			return e.Time
		}
	}
	return p.entries[len(p.entries)-1].Time
}

// Allocate books ranges over [start,finish): removes them from the free
// set at every boundary in that window and re-adds them at finish
// (spec.md §4.2). Returns an error if finish <= start.
func (p *Profile) Allocate(ranges peset.List, start, finish float64) error {
	if finish <= start {
		return errInvalidArg("profile: Allocate: finish (%v) must be after start (%v)", finish, start)
	}
	p.ensureEntry(finish)
	p.ensureEntry(start)
	idxStart := p.indexAt(start)
	idxFinish := p.indexAt(finish)
	for i := idxStart; i < idxFinish; i++ {
		p.entries[i].Avail = peset.Remove(p.entries[i].Avail, ranges)
	}
	p.entries[idxStart].NumRefs++
	p.entries[idxFinish].NumRefs++
	p.coalesce()
	return nil
}

// AddTimeSlot is the inverse of Allocate, used on cancellation: re-adds
// ranges to the free set over [start,finish) (spec.md §4.2).
func (p *Profile) AddTimeSlot(start, finish float64, ranges peset.List) error {
	if finish <= start {
		return errInvalidArg("profile: AddTimeSlot: finish (%v) must be after start (%v)", finish, start)
	}
	p.ensureEntry(finish)
	p.ensureEntry(start)
	idxStart := p.indexAt(start)
	idxFinish := p.indexAt(finish)
	for i := idxStart; i < idxFinish; i++ {
		p.entries[i].Avail = peset.Merge(p.entries[i].Avail, ranges)
	}
	p.entries[idxStart].NumRefs--
	p.entries[idxFinish].NumRefs--
	p.coalesce()
	return nil
}

// RemovePastEntries drops entries with Time < t, keeping one current
// entry at time t holding the PE ranges free at t (spec.md §4.2).
func (p *Profile) RemovePastEntries(t float64) {
	idx := p.effectiveIndex(t)
	avail := p.entries[idx].Avail.Clone()
	numRefs := p.entries[idx].NumRefs
	keepFrom := idx + 1
	for keepFrom < len(p.entries) && p.entries[keepFrom].Time <= t {
		keepFrom++
	}
	newEntries := make([]*Entry, 0, len(p.entries)-keepFrom+1)
	newEntries = append(newEntries, &Entry{Time: t, Avail: avail, NumRefs: numRefs})
	newEntries = append(newEntries, p.entries[keepFrom:]...)
	p.entries = newEntries
}

// GetTimeSlots enumerates the maximal half-open windows covering
// [start, start+duration), each with its free-range set (spec.md §4.2),
// for use as alternative offers to reservation requesters.
func (p *Profile) GetTimeSlots(start, duration float64) []TimeSlot {
	end := start + duration
	breakpoints := []float64{start}
	idx := p.effectiveIndex(start)
	for i := idx + 1; i < len(p.entries) && p.entries[i].Time < end; i++ {
		breakpoints = append(breakpoints, p.entries[i].Time)
	}
	breakpoints = append(breakpoints, end)
	slots := make([]TimeSlot, 0, len(breakpoints)-1)
	for i := 0; i+1 < len(breakpoints); i++ {
		s, e := breakpoints[i], breakpoints[i+1]
		eff := p.effectiveIndex(s)
		avail := p.entries[eff].Avail
		slots = append(slots, TimeSlot{Start: s, End: e, Avail: avail})
	}
	return slots
}
