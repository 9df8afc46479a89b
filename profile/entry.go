// Package profile implements the availability profile (spec.md §4.2): a
// time-sorted record of future free-PE ranges that every scheduling
// policy reads and mutates.
package profile

import "github.com/krfmo/gridsim/peset"

// Entry is a single time-indexed record in a Profile: the PE ranges free
// from Time onward, until superseded by the next entry (spec.md §3).
type Entry struct {
	Time    float64
	Avail   peset.List
	NumRefs int
}

// TimeSlot is a maximal half-open window [Start,End) with a constant free
// -range set, as returned by GetTimeSlots for alternative-offer purposes
// (spec.md §4.2, §4.5).
type TimeSlot struct {
	Start, End float64
	Avail      peset.List
}
