package policy

import (
	"fmt"
	"sort"

	"github.com/krfmo/gridsim/job"
	"github.com/krfmo/gridsim/peset"
	"github.com/krfmo/gridsim/profile"
	"github.com/krfmo/gridsim/simkit"
)

// activationSignal is the UPT_SCHEDULE payload that promotes a QUEUED
// job to INEXEC once its booked StartTime arrives. Gen guards against a
// stale activation firing after compression (§4.4.2) has rebooked the
// job to a different start time: the handler ignores any signal whose
// Gen doesn't match the job's current generation.
type activationSignal struct {
	JobID string
	Gen   int
}

// completionSignal is the UPT_SCHEDULE payload that finishes a running
// job at its FinishTime.
type completionSignal struct{ JobID string }

// core holds the state every policy shares: id, profile, PE rating,
// waiting/running lists, and recorded PolicyUnsupported warnings. Policy
// types embed core by value and add only what differs (Design Notes §9:
// composition over a policy base type).
type core struct {
	id      simkit.EntityID
	ctx     *simkit.SimContext
	totalPE int
	rating  float64
	prof    *profile.Profile
	waiting []*job.Job
	running map[string]*job.Job
	gen      map[string]int
	warnings []string
}

func newCore(id simkit.EntityID, ctx *simkit.SimContext, totalPE int, rating float64) core {
	return core{
		id:      id,
		ctx:     ctx,
		totalPE: totalPE,
		rating:  rating,
		prof:    profile.New(totalPE),
		running: make(map[string]*job.Job),
		gen:     make(map[string]int),
	}
}

func (c *core) ID() simkit.EntityID { return c.id }

// Profile exposes the shared profile backing this policy so a
// collaborator on the same resource (the reservation manager) can book
// and release slabs against the identical instance the policy reads
// from.
func (c *core) Profile() *profile.Profile { return c.prof }

func (c *core) clock() float64 {
	if c.ctx == nil {
		return 0
	}
	return c.ctx.Clock()
}

func (c *core) schedule(delay float64, data any) {
	if c.ctx == nil {
		return
	}
	c.ctx.Schedule(delay, simkit.Event{Tag: simkit.TagUptSchedule, Dest: c.id, Data: data})
}

// bookImmediate starts j right now on ranges, forecasting its run time
// from rating and scheduling its completion self-event.
func (c *core) bookImmediate(j *job.Job, ranges peset.List) {
	now := c.clock()
	runtime := job.ForecastExecutionTime(c.rating, j.Length)
	j.AllocatedRanges = ranges
	j.StartTime = now
	j.FinishTime = now + runtime
	j.Status = job.StatusInExec
	c.running[j.ID] = j
	c.schedule(runtime, completionSignal{JobID: j.ID})
}

// bookFuture reserves ranges for j over [start,finish) and enqueues it
// QUEUED, scheduling an activation self-event for when start arrives.
func (c *core) bookFuture(j *job.Job, ranges peset.List, start, finish float64) {
	j.AllocatedRanges = ranges
	j.StartTime = start
	j.FinishTime = finish
	j.Status = job.StatusQueued
	c.waiting = append(c.waiting, j)
	c.gen[j.ID]++
	c.schedule(start-c.clock(), activationSignal{JobID: j.ID, Gen: c.gen[j.ID]})
}

// rebookFuture is bookFuture's compression-path counterpart: j is already
// on the waiting list, so it is not re-appended, only re-armed with a
// fresh generation and activation self-event at its new start time.
func (c *core) rebookFuture(j *job.Job, ranges peset.List, start, finish float64) {
	j.AllocatedRanges = ranges
	j.StartTime = start
	j.FinishTime = finish
	c.gen[j.ID]++
	c.schedule(start-c.clock(), activationSignal{JobID: j.ID, Gen: c.gen[j.ID]})
}

// activate promotes jobID from waiting to running at its booked
// StartTime, scheduling its completion self-event. Ignores a stale
// signal whose Gen no longer matches the job's current generation.
func (c *core) activate(jobID string, sigGen int) *job.Job {
	if c.gen[jobID] != sigGen {
		return nil
	}
	for i, j := range c.waiting {
		if j.ID == jobID {
			c.waiting = append(c.waiting[:i], c.waiting[i+1:]...)
			j.Status = job.StatusInExec
			c.running[j.ID] = j
			c.schedule(j.FinishTime-c.clock(), completionSignal{JobID: j.ID})
			return j
		}
	}
	return nil
}

// complete finalizes jobID as SUCCESS, releasing its running-list entry.
// The profile's own Allocate bookkeeping already re-adds the PE ranges
// at FinishTime, so no explicit AddTimeSlot is needed here.
func (c *core) complete(jobID string) *job.Job {
	j, ok := c.running[jobID]
	if !ok {
		return nil
	}
	delete(c.running, jobID)
	j.Status = job.StatusSuccess
	return j
}

// releaseWaiting removes jobID from the waiting list without touching
// the profile (caller is responsible for returning its slot).
func (c *core) releaseWaiting(jobID string) (*job.Job, int) {
	for i, j := range c.waiting {
		if j.ID == jobID {
			c.waiting = append(c.waiting[:i], c.waiting[i+1:]...)
			return j, i
		}
	}
	return nil, -1
}

func (c *core) findRunning(jobID string) *job.Job {
	return c.running[jobID]
}

func (c *core) snapshot() Snapshot {
	waiting := make([]*job.Job, len(c.waiting))
	copy(waiting, c.waiting)
	running := make([]*job.Job, 0, len(c.running))
	for _, j := range c.running {
		running = append(running, j)
	}
	sort.Slice(running, func(i, j int) bool { return running[i].ID < running[j].ID })
	return Snapshot{Waiting: waiting, Running: running}
}

func (c *core) warn(op string) error {
	c.warnings = append(c.warnings, fmt.Sprintf("%s: %s rejected (unsupported)", c.id, op))
	return &unsupportedOpError{op: op}
}

// Warnings returns every PolicyUnsupported warning recorded so far.
func (c *core) Warnings() []string {
	out := make([]string, len(c.warnings))
	copy(out, c.warnings)
	return out
}
