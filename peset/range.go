// Package peset implements the processing-element range algebra that
// every availability-profile and scheduling-policy operation is built on
// (spec.md §4.1): ordered, disjoint integer intervals of PE ids with
// union, intersection, difference, and lowest-id selection.
package peset

import "sort"

// Range is a closed integer interval [From,To] of PE ids, optionally
// tagged with the partition ("queue") that owns it. Invariant: From <= To.
type Range struct {
	From, To int
	QueueID  string // "" means unowned/unpartitioned
}

// Count returns the number of PE ids covered by r.
func (r Range) Count() int {
	return r.To - r.From + 1
}

// List is an ordered, disjoint sequence of Ranges sorted ascending by
// From. No two ranges touch or overlap. The zero value is the empty list.
type List []Range

// NumPE returns the total PE count across all ranges in l.
func (l List) NumPE() int {
	n := 0
	for _, r := range l {
		n += r.Count()
	}
	return n
}

// Clone returns a deep copy of l; all List-returning operations in this
// package are allocation-allocating and never mutate their inputs.
func (l List) Clone() List {
	out := make(List, len(l))
	copy(out, l)
	return out
}

// Of builds a normalized List from a set of possibly-unsorted,
// possibly-overlapping ranges.
func Of(ranges ...Range) List {
	return normalize(List(ranges))
}

// normalize sorts ranges by From and coalesces any that touch or overlap.
// Ranges carrying different QueueIDs are never coalesced into each other.
func normalize(l List) List {
	if len(l) == 0 {
		return List{}
	}
	sorted := l.Clone()
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].From != sorted[j].From {
			return sorted[i].From < sorted[j].From
		}
		return sorted[i].To < sorted[j].To
	})
	out := make(List, 0, len(sorted))
	cur := sorted[0]
	for _, r := range sorted[1:] {
		if r.From <= cur.To+1 && r.QueueID == cur.QueueID {
			if r.To > cur.To {
				cur.To = r.To
			}
			continue
		}
		out = append(out, cur)
		cur = r
	}
	out = append(out, cur)
	return out
}

// Select returns the List formed by taking the lowest-numbered k PEs from
// l (numerical PE id ascending, spec.md §4.1 tie-break). Returns an error
// if l holds fewer than k PEs — select never partially satisfies a
// request.
func (l List) Select(k int) (List, error) {
	if k < 0 {
		return nil, errInvalidArg("peset: Select: k must be >= 0")
	}
	if l.NumPE() < k {
		return nil, errSelect(k, l.NumPE())
	}
	if k == 0 {
		return List{}, nil
	}
	out := make(List, 0, 1)
	remaining := k
	for _, r := range l {
		if remaining == 0 {
			break
		}
		take := r.Count()
		if take > remaining {
			take = remaining
		}
		out = append(out, Range{From: r.From, To: r.From + take - 1, QueueID: r.QueueID})
		remaining -= take
	}
	return normalize(out), nil
}

// Merge returns the union of a and b, coalescing adjacent/overlapping
// intervals.
func Merge(a, b List) List {
	combined := make(List, 0, len(a)+len(b))
	combined = append(combined, a...)
	combined = append(combined, b...)
	return normalize(combined)
}

// Remove returns the set difference a \ b.
func Remove(a, b List) List {
	out := make(List, 0, len(a))
	for _, r := range a {
		pieces := List{r}
		for _, sub := range b {
			pieces = subtractOne(pieces, sub)
		}
		out = append(out, pieces...)
	}
	return normalize(out)
}

// subtractOne removes sub from every range in pieces.
func subtractOne(pieces List, sub Range) List {
	out := make(List, 0, len(pieces))
	for _, r := range pieces {
		if sub.To < r.From || sub.From > r.To {
			out = append(out, r)
			continue
		}
		if sub.From > r.From {
			out = append(out, Range{From: r.From, To: sub.From - 1, QueueID: r.QueueID})
		}
		if sub.To < r.To {
			out = append(out, Range{From: sub.To + 1, To: r.To, QueueID: r.QueueID})
		}
	}
	return out
}

// Intersect returns the intersection of a and b. Resulting ranges carry
// a's QueueID (intersection is used to test availability within a's
// partition view).
func Intersect(a, b List) List {
	out := make(List, 0, len(a))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		lo := max(a[i].From, b[j].From)
		hi := min(a[i].To, b[j].To)
		if lo <= hi {
			out = append(out, Range{From: lo, To: hi, QueueID: a[i].QueueID})
		}
		if a[i].To < b[j].To {
			i++
		} else {
			j++
		}
	}
	return normalize(out)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
