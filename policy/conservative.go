package policy

import (
	"fmt"
	"sort"

	"github.com/krfmo/gridsim/job"
	"github.com/krfmo/gridsim/simkit"
)

// Conservative implements conservative backfilling (spec.md §4.4.2):
// every waiting job has a confirmed future start time recorded in the
// profile. Cancellation compresses the schedule so no waiting job's
// start time ever moves later (Testable Property 2).
type Conservative struct {
	core
}

// NewConservative creates a conservative-backfilling policy over totalPE
// uniform PEs at the given rating.
func NewConservative(id simkit.EntityID, ctx *simkit.SimContext, totalPE int, rating float64) *Conservative {
	return &Conservative{core: newCore(id, ctx, totalPE, rating)}
}

// Submit implements Policy.
func (p *Conservative) Submit(j *job.Job) error {
	if j.NumPE > p.totalPE {
		j.Status = job.StatusFailed
		return fmt.Errorf("policy: job %s requests %d PEs but resource only has %d", j.ID, j.NumPE, p.totalPE)
	}
	now := p.clock()
	runtime := job.ForecastExecutionTime(p.rating, j.Length)
	if entry, ok := p.prof.CheckAvailability(j.NumPE, now, runtime); ok {
		ranges, err := entry.Avail.Select(j.NumPE)
		if err != nil {
			return err
		}
		if err := p.prof.Allocate(ranges, now, now+runtime); err != nil {
			return err
		}
		p.bookImmediate(j, ranges)
		return nil
	}
	start := p.prof.FindStartTime(j.NumPE, runtime)
	entry, ok := p.prof.CheckAvailability(j.NumPE, start, runtime)
	if !ok {
		return fmt.Errorf("policy: profile invariant violated: FindStartTime(%d,%v) returned infeasible start %v", j.NumPE, runtime, start)
	}
	ranges, err := entry.Avail.Select(j.NumPE)
	if err != nil {
		return err
	}
	if err := p.prof.Allocate(ranges, start, start+runtime); err != nil {
		return err
	}
	p.bookFuture(j, ranges, start, start+runtime)
	return nil
}

// Cancel implements Policy, performing the §4.4.2 compression pass after
// releasing the cancelled job's slot.
func (p *Conservative) Cancel(jobID string) (*job.Job, error) {
	now := p.clock()
	if j := p.findRunning(jobID); j != nil {
		if err := p.prof.AddTimeSlot(now, j.FinishTime, j.AllocatedRanges); err != nil {
			return nil, err
		}
		delete(p.running, jobID)
		j.Status = job.StatusCancelled
		j.AllocatedRanges = nil
		p.compress(now)
		return j, nil
	}
	if j, _ := p.releaseWaiting(jobID); j != nil {
		if err := p.prof.AddTimeSlot(j.StartTime, j.FinishTime, j.AllocatedRanges); err != nil {
			return nil, err
		}
		j.Status = job.StatusCancelled
		j.AllocatedRanges = nil
		p.compress(now)
		return j, nil
	}
	return nil, &NotFoundError{JobID: jobID}
}

// compress iterates waiting jobs in increasing current-start-time order;
// every job whose StartTime > refTime gives back its slot and is
// re-booked via FindStartTime. Because FindStartTime always returns the
// earliest feasible time and the job's own slot was just freed, the new
// start time is never later than the one it had before this pass
// (Testable Property 2).
func (p *Conservative) compress(refTime float64) {
	ordered := make([]*job.Job, len(p.waiting))
	copy(ordered, p.waiting)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].StartTime != ordered[j].StartTime {
			return ordered[i].StartTime < ordered[j].StartTime
		}
		return ordered[i].ID < ordered[j].ID
	})
	for _, j := range ordered {
		if j.StartTime <= refTime {
			continue
		}
		runtime := j.FinishTime - j.StartTime
		prevStart := j.StartTime
		if err := p.prof.AddTimeSlot(j.StartTime, j.FinishTime, j.AllocatedRanges); err != nil {
			continue
		}
		newStart := p.prof.FindStartTime(j.NumPE, runtime)
		if newStart > prevStart {
			newStart = prevStart // profile invariant guarantees this never triggers
		}
		entry, ok := p.prof.CheckAvailability(j.NumPE, newStart, runtime)
		if !ok {
			continue
		}
		ranges, err := entry.Avail.Select(j.NumPE)
		if err != nil {
			continue
		}
		if err := p.prof.Allocate(ranges, newStart, newStart+runtime); err != nil {
			continue
		}
		p.rebookFuture(j, ranges, newStart, newStart+runtime)
	}
}

// Compress publicly exposes the compression pass so a collaborator that
// shares this policy's profile (the reservation manager, on expiry or
// user-initiated cancellation) can re-trigger it after changing the
// profile out from under the policy.
func (p *Conservative) Compress(now float64) { p.compress(now) }

// Snapshot implements Policy.
func (p *Conservative) Snapshot() Snapshot { return p.snapshot() }

// HandleEvent implements simkit.Entity.
func (p *Conservative) HandleEvent(ctx *simkit.SimContext, ev simkit.Event) error {
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
		case completionSignal:
			p.complete(sig.JobID)
		}
		return nil
	case simkit.TagGridletMove, simkit.TagGridletPause, simkit.TagGridletResume:
		return p.warn(string(ev.Tag))
	default:
		return nil
	}
}
