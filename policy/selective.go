package policy

import (
	"fmt"
	"sort"

	"github.com/krfmo/gridsim/job"
	"github.com/krfmo/gridsim/simkit"
)

// SlowdownCategory classifies a job for the per-category completed-
// slowdown statistics that drive the selective threshold (spec.md
// §4.4.4). A nil SlowdownCategory puts every job in one category.
type SlowdownCategory func(j *job.Job) string

// Selective implements selective backfilling (spec.md §4.4.4): no
// reservation is made eagerly. A waiting job that cannot start now is
// only given a future reservation once its expansion factor (xFactor)
// exceeds its category's running average completed slowdown.
type Selective struct {
	core
	category     SlowdownCategory
	sumSlowdown  map[string]float64
	numCompleted map[string]int
}

// NewSelective creates a selective-backfilling policy over totalPE
// uniform PEs at the given rating. category may be nil.
func NewSelective(id simkit.EntityID, ctx *simkit.SimContext, totalPE int, rating float64, category SlowdownCategory) *Selective {
	return &Selective{
		core:         newCore(id, ctx, totalPE, rating),
		category:     category,
		sumSlowdown:  make(map[string]float64),
		numCompleted: make(map[string]int),
	}
}

func (p *Selective) categoryOf(j *job.Job) string {
	if p.category == nil {
		return ""
	}
	return p.category(j)
}

// threshold returns max(1.0, Σslowdowns/numCompleted) for cat, 1.0 when
// the category has no completions yet.
func (p *Selective) threshold(cat string) float64 {
	n := p.numCompleted[cat]
	if n == 0 {
		return 1.0
	}
	avg := p.sumSlowdown[cat] / float64(n)
	if avg < 1.0 {
		return 1.0
	}
	return avg
}

// Submit implements Policy.
func (p *Selective) Submit(j *job.Job) error {
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
	j.Status = job.StatusQueued
	p.waiting = append(p.waiting, j)
	p.runRetryPass()
	return nil
}

// runRetryPass implements §4.4.4's retry rule for every waiting job that
// does not yet hold a reservation: try an immediate start, then check
// whether xFactor now exceeds the category threshold, reserving via
// findStartTime only if so.
func (p *Selective) runRetryPass() {
	now := p.clock()
	ordered := make([]*job.Job, len(p.waiting))
	copy(ordered, p.waiting)
	sort.SliceStable(ordered, func(i, j2 int) bool {
		if ordered[i].SubmissionTime != ordered[j2].SubmissionTime {
			return ordered[i].SubmissionTime < ordered[j2].SubmissionTime
		}
		return ordered[i].ID < ordered[j2].ID
	})

	for _, j := range ordered {
		if j.AllocatedRanges != nil {
			continue // already holds a reservation, wait for its activation
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

		waitTime := now - j.SubmissionTime
		xFactor := (waitTime + runtime) / runtime
		if xFactor <= p.threshold(p.categoryOf(j)) {
			continue
		}
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
		j.AllocatedRanges = ranges
		j.StartTime = start
		j.FinishTime = start + runtime
		p.gen[j.ID]++
		p.schedule(start-now, activationSignal{JobID: j.ID, Gen: p.gen[j.ID]})
	}
}

// onComplete records the completing job's slowdown against its category
// before releasing it, per §4.4.4.
func (p *Selective) onComplete(jobID string) {
	j := p.running[jobID]
	if j == nil {
		return
	}
	wallClock := j.FinishTime - j.SubmissionTime
	actualRun := j.FinishTime - j.StartTime
	slowdown := 1.0
	if actualRun > 0 {
		slowdown = wallClock / actualRun
	}
	if slowdown < 1.0 {
		slowdown = 1.0
	}
	cat := p.categoryOf(j)
	p.sumSlowdown[cat] += slowdown
	p.numCompleted[cat]++
	p.complete(jobID)
}

// Cancel implements Policy.
func (p *Selective) Cancel(jobID string) (*job.Job, error) {
	if j := p.findRunning(jobID); j != nil {
		now := p.clock()
		if err := p.prof.AddTimeSlot(now, j.FinishTime, j.AllocatedRanges); err != nil {
			return nil, err
		}
		delete(p.running, jobID)
		j.Status = job.StatusCancelled
		j.AllocatedRanges = nil
		p.runRetryPass()
		return j, nil
	}
	if j, _ := p.releaseWaiting(jobID); j != nil {
		if j.AllocatedRanges != nil {
			if err := p.prof.AddTimeSlot(j.StartTime, j.FinishTime, j.AllocatedRanges); err != nil {
				return nil, err
			}
		}
		j.Status = job.StatusCancelled
		j.AllocatedRanges = nil
		p.runRetryPass()
		return j, nil
	}
	return nil, &NotFoundError{JobID: jobID}
}

// Snapshot implements Policy.
func (p *Selective) Snapshot() Snapshot { return p.snapshot() }

// HandleEvent implements simkit.Entity.
func (p *Selective) HandleEvent(ctx *simkit.SimContext, ev simkit.Event) error {
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
			p.runRetryPass()
		case completionSignal:
			p.onComplete(sig.JobID)
			p.runRetryPass()
		}
		return nil
	case simkit.TagGridletMove, simkit.TagGridletPause, simkit.TagGridletResume:
		return p.warn(string(ev.Tag))
	default:
		return nil
	}
}
