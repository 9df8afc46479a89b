package policy

import (
	"fmt"
	"sort"

	"github.com/krfmo/gridsim/job"
	"github.com/krfmo/gridsim/simkit"
)

// Comparator orders two waiting jobs; Aggressive's default is arrival
// order (SubmissionTime, then ID for determinism).
type Comparator func(a, b *job.Job) bool

func defaultComparator(a, b *job.Job) bool {
	if a.SubmissionTime != b.SubmissionTime {
		return a.SubmissionTime < b.SubmissionTime
	}
	return a.ID < b.ID
}

// Aggressive implements EASY backfilling (spec.md §4.4.1): only the
// waiting list's head — the pivot — ever holds a reservation in the
// profile. Every other waiting job starts immediately if it fits in
// currently-free PEs without disturbing the pivot's booked slot.
type Aggressive struct {
	core
	comparator Comparator
	pivotID    string
}

// NewAggressive creates an EASY-backfilling policy over totalPE uniform
// PEs at the given rating. comparator may be nil for the default arrival
// order.
func NewAggressive(id simkit.EntityID, ctx *simkit.SimContext, totalPE int, rating float64, comparator Comparator) *Aggressive {
	return &Aggressive{core: newCore(id, ctx, totalPE, rating), comparator: comparator}
}

// Submit implements Policy. The job is enqueued and a backfill pass runs
// immediately.
func (p *Aggressive) Submit(j *job.Job) error {
	if j.NumPE > p.totalPE {
		j.Status = job.StatusFailed
		return fmt.Errorf("policy: job %s requests %d PEs but resource only has %d", j.ID, j.NumPE, p.totalPE)
	}
	j.Status = job.StatusQueued
	p.waiting = append(p.waiting, j)
	p.runBackfillPass()
	return nil
}

// runBackfillPass implements spec.md §4.4.1's backfill procedure steps
// 2-3 (step 1, pivot promotion, happens via the scheduled activation
// self-event, not here).
func (p *Aggressive) runBackfillPass() {
	now := p.clock()
	cmp := p.comparator
	if cmp == nil {
		cmp = defaultComparator
	}
	ordered := make([]*job.Job, len(p.waiting))
	copy(ordered, p.waiting)
	sort.SliceStable(ordered, func(i, j int) bool { return cmp(ordered[i], ordered[j]) })

	for _, j := range ordered {
		if j.ID == p.pivotID {
			continue
		}
		runtime := job.ForecastExecutionTime(p.rating, j.Length)
		if entry, ok := p.prof.CheckAvailability(j.NumPE, now, runtime); ok {
			ranges, err := entry.Avail.Select(j.NumPE)
			if err != nil {
				continue
			}
			if err := p.prof.Allocate(ranges, now, now+runtime); err != nil {
				continue
			}
			p.releaseWaiting(j.ID)
			p.bookImmediate(j, ranges)
			continue
		}
		if p.pivotID == "" {
			start := p.prof.FindStartTime(j.NumPE, runtime)
			entry, ok := p.prof.CheckAvailability(j.NumPE, start, runtime)
			if !ok {
				continue
			}
			ranges, err := entry.Avail.Select(j.NumPE)
			if err != nil {
				continue
			}
			if err := p.prof.Allocate(ranges, start, start+runtime); err != nil {
				continue
			}
			p.releaseWaiting(j.ID)
			p.bookFuture(j, ranges, start, start+runtime)
			p.pivotID = j.ID
		}
	}
}

// Cancel implements Policy.
func (p *Aggressive) Cancel(jobID string) (*job.Job, error) {
	if j := p.findRunning(jobID); j != nil {
		now := p.clock()
		if err := p.prof.AddTimeSlot(now, j.FinishTime, j.AllocatedRanges); err != nil {
			return nil, err
		}
		delete(p.running, jobID)
		j.Status = job.StatusCancelled
		j.AllocatedRanges = nil
		p.runBackfillPass()
		return j, nil
	}
	if j, _ := p.releaseWaiting(jobID); j != nil {
		if jobID == p.pivotID {
			if err := p.prof.AddTimeSlot(j.StartTime, j.FinishTime, j.AllocatedRanges); err != nil {
				return nil, err
			}
			p.pivotID = ""
		}
		j.Status = job.StatusCancelled
		j.AllocatedRanges = nil
		p.runBackfillPass()
		return j, nil
	}
	return nil, &NotFoundError{JobID: jobID}
}

// Snapshot implements Policy.
func (p *Aggressive) Snapshot() Snapshot { return p.snapshot() }

// HandleEvent implements simkit.Entity.
func (p *Aggressive) HandleEvent(ctx *simkit.SimContext, ev simkit.Event) error {
	switch ev.Tag {
	case simkit.TagGridletSubmit:
		return p.Submit(ev.Data.(*job.Job))
	case simkit.TagGridletCancel:
		_, err := p.Cancel(ev.Data.(string))
		return err
	case simkit.TagUptSchedule:
		switch sig := ev.Data.(type) {
		case activationSignal:
			p.activate(sig.JobID, sig.Gen)
			if sig.JobID == p.pivotID {
				p.pivotID = ""
			}
			p.runBackfillPass()
		case completionSignal:
			p.complete(sig.JobID)
			p.runBackfillPass()
		}
		return nil
	case simkit.TagGridletMove, simkit.TagGridletPause, simkit.TagGridletResume:
		return p.warn(string(ev.Tag))
	default:
		return nil
	}
}
