package policy

import (
	"fmt"

	"github.com/krfmo/gridsim/job"
	"github.com/krfmo/gridsim/peset"
	"github.com/krfmo/gridsim/simkit"
)

// ReservationStore resolves a reservation id to its live record. The
// reservation package's manager satisfies this; policy only depends on
// the interface to avoid a import cycle with reservation's own use of
// job records.
type ReservationStore interface {
	Lookup(reservationID string) (*job.Reservation, bool)
}

// ARConservative extends Conservative (spec.md §4.4.5) with reservation
// binding: a job submitted with a ReservationID consumes PEs directly
// from that reservation's own slab instead of the shared profile, starts
// immediately, and on completion or cancellation returns its PEs to the
// reservation rather than the profile. Submit rejects binding before the
// reservation's own StartTime: the shared profile.Profile only carves out
// the reservation's slab for [StartTime, StartTime+Duration) (spec.md
// §4.5's Create), so starting a bound job any earlier would let it run on
// PEs the profile still hands out to ordinary jobs over that same
// window. Because a reservation-bound job never enters the waiting list,
// cancelling one never triggers compression — only ordinary (unreserved)
// jobs compress.
type ARConservative struct {
	Conservative
	reservations ReservationStore
	resvBound    map[string]*job.Reservation
}

// NewARConservative creates an AR-conservative policy over totalPE
// uniform PEs at the given rating, resolving reservations through store.
func NewARConservative(id simkit.EntityID, ctx *simkit.SimContext, totalPE int, rating float64, store ReservationStore) *ARConservative {
	return &ARConservative{
		Conservative: Conservative{core: newCore(id, ctx, totalPE, rating)},
		reservations: store,
		resvBound:    make(map[string]*job.Reservation),
	}
}

// Submit implements Policy. Jobs without a ReservationID fall through to
// Conservative's ordinary backfilling.
func (p *ARConservative) Submit(j *job.Job) error {
	if j.ReservationID == "" {
		return p.Conservative.Submit(j)
	}
	resv, ok := p.reservations.Lookup(j.ReservationID)
	if !ok {
		j.Status = job.StatusFailed
		return fmt.Errorf("policy: job %s names unknown reservation %q", j.ID, j.ReservationID)
	}
	now := p.clock()
	if now < resv.StartTime {
		j.Status = job.StatusFailed
		return fmt.Errorf("policy: reservation %q has not started yet (starts at %v, now %v); job %s cannot bind early", j.ReservationID, resv.StartTime, now, j.ID)
	}
	runtime := job.ForecastExecutionTime(p.rating, j.Length)
	if !resv.CanAccept(now, j.NumPE, runtime) {
		j.Status = job.StatusFailed
		return fmt.Errorf("policy: reservation %q cannot accept job %s: needs %d PEs for %v, has %d PEs for %v", j.ReservationID, j.ID, j.NumPE, runtime, resv.RemainingPE, resv.RemainingTime)
	}
	ranges, err := resv.AllocatedRanges.Select(j.NumPE)
	if err != nil {
		j.Status = job.StatusFailed
		return err
	}
	resv.AllocatedRanges = peset.Remove(resv.AllocatedRanges, ranges)
	resv.RemainingPE -= j.NumPE
	resv.BoundJobIDs = append(resv.BoundJobIDs, j.ID)

	j.AllocatedRanges = ranges
	j.StartTime = now
	j.FinishTime = now + runtime
	j.Status = job.StatusInExec
	p.running[j.ID] = j
	p.resvBound[j.ID] = resv
	p.schedule(runtime, completionSignal{JobID: j.ID})
	return nil
}

// Cancel implements Policy. A reservation-bound job returns its PEs to
// the reservation's own slab and skips compression entirely.
func (p *ARConservative) Cancel(jobID string) (*job.Job, error) {
	if resv, bound := p.resvBound[jobID]; bound {
		j, ok := p.running[jobID]
		if !ok {
			return nil, &NotFoundError{JobID: jobID}
		}
		resv.AllocatedRanges = peset.Merge(resv.AllocatedRanges, j.AllocatedRanges)
		resv.RemainingPE += j.NumPE
		delete(p.running, jobID)
		delete(p.resvBound, jobID)
		j.Status = job.StatusCancelled
		j.AllocatedRanges = nil
		return j, nil
	}
	return p.Conservative.Cancel(jobID)
}

// completeReservationBound finalizes a reservation-bound job, returning
// its PEs to the reservation instead of the shared profile.
func (p *ARConservative) completeReservationBound(jobID string) *job.Job {
	resv, ok := p.resvBound[jobID]
	if !ok {
		return nil
	}
	j, ok := p.running[jobID]
	if !ok {
		delete(p.resvBound, jobID)
		return nil
	}
	resv.AllocatedRanges = peset.Merge(resv.AllocatedRanges, j.AllocatedRanges)
	resv.RemainingPE += j.NumPE
	delete(p.running, jobID)
	delete(p.resvBound, jobID)
	j.Status = job.StatusSuccess
	j.AllocatedRanges = nil
	return j
}

// HandleEvent implements simkit.Entity, routing completions through the
// reservation-aware path before falling back to Conservative's.
func (p *ARConservative) HandleEvent(ctx *simkit.SimContext, ev simkit.Event) error {
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
			if p.completeReservationBound(sig.JobID) == nil {
				p.complete(sig.JobID)
			}
		}
		return nil
	case simkit.TagGridletMove, simkit.TagGridletPause, simkit.TagGridletResume:
		return p.warn(string(ev.Tag))
	default:
		return nil
	}
}
