package policy

import (
	"fmt"
	"sort"

	"github.com/krfmo/gridsim/job"
	"github.com/krfmo/gridsim/peset"
	"github.com/krfmo/gridsim/profile"
	"github.com/krfmo/gridsim/simkit"
)

// PrioritySelector assigns a submission-time priority to a job (lower
// value outranks higher). If nil, MultiPartition falls back to the
// job's own Priority field.
type PrioritySelector func(j *job.Job) int

// MultiPartition implements aggressive multi-partition backfilling
// (spec.md §4.4.3): each partition keeps its own single pivot, jobs may
// cross partition boundaries when borrowing is enabled, and a
// higher-priority arrival may displace a lower-priority pivot.
type MultiPartition struct {
	id        simkit.EntityID
	ctx       *simkit.SimContext
	rating    float64
	prof      *profile.Partitioned
	borrowing bool
	returnJob bool
	selector  PrioritySelector

	partitionTotal map[string]int
	totalPE        int

	waiting  []*job.Job
	running  map[string]*job.Job
	gen      map[string]int
	pivots   map[string]string // partitionID -> pivot jobID
	warnings []string
}

// NewMultiPartition creates a multi-partition policy over the given named
// PE slabs. matcher assigns each submitted job to a partition; selector
// may be nil to use job.Priority directly. returnJob controls what happens
// when borrowing is disabled and a job exceeds its matched partition's
// total capacity: true (the spec.md default) fails the job immediately at
// submission; false leaves it queued indefinitely instead, so an operator
// who later reconfigures the resource (or cancels the job by hand) isn't
// told the job was rejected when it wasn't.
func NewMultiPartition(id simkit.EntityID, ctx *simkit.SimContext, slabs map[string]peset.List, rating float64, borrowing bool, returnJob bool, matcher profile.PartitionMatcher, selector PrioritySelector) *MultiPartition {
	totals := make(map[string]int, len(slabs))
	sum := 0
	for partID, ranges := range slabs {
		n := ranges.NumPE()
		totals[partID] = n
		sum += n
	}
	return &MultiPartition{
		id:             id,
		ctx:            ctx,
		rating:         rating,
		prof:           profile.NewPartitioned(slabs, matcher),
		borrowing:      borrowing,
		returnJob:      returnJob,
		selector:       selector,
		partitionTotal: totals,
		totalPE:        sum,
		running:        make(map[string]*job.Job),
		gen:            make(map[string]int),
		pivots:         make(map[string]string),
	}
}

func (p *MultiPartition) ID() simkit.EntityID { return p.id }

func (p *MultiPartition) clock() float64 {
	if p.ctx == nil {
		return 0
	}
	return p.ctx.Clock()
}

func (p *MultiPartition) schedule(delay float64, data any) {
	if p.ctx == nil {
		return
	}
	p.ctx.Schedule(delay, simkit.Event{Tag: simkit.TagUptSchedule, Dest: p.id, Data: data})
}

func (p *MultiPartition) priority(j *job.Job) int {
	if p.selector != nil {
		return p.selector(j)
	}
	return j.Priority
}

// Submit implements Policy.
func (p *MultiPartition) Submit(j *job.Job) error {
	partID, ok := p.prof.MatchPartition(j)
	if !ok {
		j.Status = job.StatusFailed
		return fmt.Errorf("policy: job %s matches no partition", j.ID)
	}
	j.PartitionID = partID
	if p.selector != nil {
		j.Priority = p.selector(j)
	}

	limit := p.partitionTotal[partID]
	if p.borrowing {
		limit = p.totalPE
	}
	if j.NumPE > limit {
		if p.returnJob {
			j.Status = job.StatusFailed
			return fmt.Errorf("policy: job %s requests %d PEs but partition %s (borrowing=%v) offers at most %d", j.ID, j.NumPE, partID, p.borrowing, limit)
		}
		p.warnings = append(p.warnings, fmt.Sprintf("%s: job %s requests %d PEs but partition %s (borrowing=%v) offers at most %d; queued instead of rejected (returnJob=false)", p.id, j.ID, j.NumPE, partID, p.borrowing, limit))
	}

	j.Status = job.StatusQueued
	p.waiting = append(p.waiting, j)
	p.runBackfillPass()
	return nil
}

func (p *MultiPartition) findWaiting(jobID string) *job.Job {
	for _, j := range p.waiting {
		if j.ID == jobID {
			return j
		}
	}
	return nil
}

func (p *MultiPartition) isPivot(jobID string) bool {
	for _, id := range p.pivots {
		if id == jobID {
			return true
		}
	}
	return false
}

func (p *MultiPartition) checkAvailability(partID string, numPE int, start, duration float64) (*profile.Entry, bool) {
	if p.borrowing {
		return p.prof.CheckAggregateAvailability(numPE, start, duration)
	}
	return p.prof.CheckPartAvailability(partID, numPE, start, duration)
}

func (p *MultiPartition) findStartTime(partID string, numPE int, duration float64) float64 {
	if p.borrowing {
		return p.prof.FindStartTimeAggregate(numPE, duration)
	}
	return p.prof.Partition(partID).FindStartTime(numPE, duration)
}

// allocateAcrossPartitions allocates ranges selected from a (possibly
// aggregate) availability check, routing each peset.Range to the
// partition Profile that owns it via its QueueID tag.
func (p *MultiPartition) allocateAcrossPartitions(ranges peset.List, start, finish float64) error {
	byPart := make(map[string]peset.List)
	for _, r := range ranges {
		byPart[r.QueueID] = append(byPart[r.QueueID], r)
	}
	for partID, rs := range byPart {
		part := p.prof.Partition(partID)
		if part == nil {
			return fmt.Errorf("policy: range tagged for unknown partition %q", partID)
		}
		if err := part.Allocate(rs, start, finish); err != nil {
			return err
		}
	}
	return nil
}

func (p *MultiPartition) releaseAcrossPartitions(ranges peset.List, start, finish float64) error {
	byPart := make(map[string]peset.List)
	for _, r := range ranges {
		byPart[r.QueueID] = append(byPart[r.QueueID], r)
	}
	for partID, rs := range byPart {
		part := p.prof.Partition(partID)
		if part == nil {
			continue
		}
		if err := part.AddTimeSlot(start, finish, rs); err != nil {
			return err
		}
	}
	return nil
}

// runBackfillPass implements spec.md §4.4.3: waiting jobs are examined in
// (priority asc, submissionTime asc, id asc) order. A job starts
// immediately if its partition (or the aggregate, when borrowing) has
// enough free PEs right now. Otherwise it claims its partition's pivot
// slot if vacant, or displaces the current pivot if it strictly outranks
// it; the displaced job loses its reservation and re-enters the pool of
// unplaced waiting jobs for this and future passes.
func (p *MultiPartition) runBackfillPass() {
	now := p.clock()
	ordered := make([]*job.Job, len(p.waiting))
	copy(ordered, p.waiting)
	sort.SliceStable(ordered, func(i, j2 int) bool {
		a, b := ordered[i], ordered[j2]
		if p.priority(a) != p.priority(b) {
			return p.priority(a) < p.priority(b)
		}
		if a.SubmissionTime != b.SubmissionTime {
			return a.SubmissionTime < b.SubmissionTime
		}
		return a.ID < b.ID
	})

	for _, j := range ordered {
		if p.isPivot(j.ID) {
			continue
		}
		runtime := job.ForecastExecutionTime(p.rating, j.Length)

		if entry, ok := p.checkAvailability(j.PartitionID, j.NumPE, now, runtime); ok {
			ranges, err := entry.Avail.Select(j.NumPE)
			if err != nil {
				continue
			}
			if err := p.allocateAcrossPartitions(ranges, now, now+runtime); err != nil {
				continue
			}
			p.releaseFromWaiting(j.ID)
			p.bookImmediate(j, ranges)
			continue
		}

		existingPivotID, hasPivot := p.pivots[j.PartitionID]
		if hasPivot {
			existing := p.findWaiting(existingPivotID)
			if existing == nil || p.priority(j) >= p.priority(existing) {
				continue
			}
			// j outranks the current pivot: displace it.
			if err := p.releaseAcrossPartitions(existing.AllocatedRanges, existing.StartTime, existing.FinishTime); err != nil {
				continue
			}
			existing.AllocatedRanges = nil
			existing.StartTime = 0
			existing.FinishTime = 0
			delete(p.pivots, j.PartitionID)
			p.gen[existing.ID]++ // invalidate its now-cancelled activation
		}

		start := p.findStartTime(j.PartitionID, j.NumPE, runtime)
		entry, ok := p.checkAvailability(j.PartitionID, j.NumPE, start, runtime)
		if !ok {
			continue
		}
		ranges, err := entry.Avail.Select(j.NumPE)
		if err != nil {
			continue
		}
		if err := p.allocateAcrossPartitions(ranges, start, start+runtime); err != nil {
			continue
		}
		j.AllocatedRanges = ranges
		j.StartTime = start
		j.FinishTime = start + runtime
		p.gen[j.ID]++
		p.schedule(start-now, activationSignal{JobID: j.ID, Gen: p.gen[j.ID]})
		p.pivots[j.PartitionID] = j.ID
	}
}

func (p *MultiPartition) bookImmediate(j *job.Job, ranges peset.List) {
	now := p.clock()
	runtime := job.ForecastExecutionTime(p.rating, j.Length)
	j.AllocatedRanges = ranges
	j.StartTime = now
	j.FinishTime = now + runtime
	j.Status = job.StatusInExec
	p.running[j.ID] = j
	p.schedule(runtime, completionSignal{JobID: j.ID})
}

func (p *MultiPartition) releaseFromWaiting(jobID string) {
	for i, j := range p.waiting {
		if j.ID == jobID {
			p.waiting = append(p.waiting[:i], p.waiting[i+1:]...)
			return
		}
	}
}

func (p *MultiPartition) activate(jobID string, sigGen int) *job.Job {
	if p.gen[jobID] != sigGen {
		return nil
	}
	for i, j := range p.waiting {
		if j.ID == jobID {
			p.waiting = append(p.waiting[:i], p.waiting[i+1:]...)
			j.Status = job.StatusInExec
			p.running[j.ID] = j
			p.schedule(j.FinishTime-p.clock(), completionSignal{JobID: j.ID})
			return j
		}
	}
	return nil
}

func (p *MultiPartition) complete(jobID string) *job.Job {
	j, ok := p.running[jobID]
	if !ok {
		return nil
	}
	delete(p.running, jobID)
	j.Status = job.StatusSuccess
	return j
}

// Cancel implements Policy.
func (p *MultiPartition) Cancel(jobID string) (*job.Job, error) {
	now := p.clock()
	if j, ok := p.running[jobID]; ok {
		if err := p.releaseAcrossPartitions(j.AllocatedRanges, now, j.FinishTime); err != nil {
			return nil, err
		}
		delete(p.running, jobID)
		j.Status = job.StatusCancelled
		j.AllocatedRanges = nil
		p.runBackfillPass()
		return j, nil
	}
	if j := p.findWaiting(jobID); j != nil {
		if p.isPivot(jobID) {
			if err := p.releaseAcrossPartitions(j.AllocatedRanges, j.StartTime, j.FinishTime); err != nil {
				return nil, err
			}
			delete(p.pivots, j.PartitionID)
		}
		p.releaseFromWaiting(jobID)
		j.Status = job.StatusCancelled
		j.AllocatedRanges = nil
		p.runBackfillPass()
		return j, nil
	}
	return nil, &NotFoundError{JobID: jobID}
}

// Snapshot implements Policy.
func (p *MultiPartition) Snapshot() Snapshot {
	waiting := make([]*job.Job, len(p.waiting))
	copy(waiting, p.waiting)
	running := make([]*job.Job, 0, len(p.running))
	for _, j := range p.running {
		running = append(running, j)
	}
	sort.Slice(running, func(i, j2 int) bool { return running[i].ID < running[j2].ID })
	return Snapshot{Waiting: waiting, Running: running}
}

// Warnings returns every warning recorded so far: rejected
// move/pause/resume operations and over-limit jobs queued because
// returnJob is false.
func (p *MultiPartition) Warnings() []string {
	out := make([]string, len(p.warnings))
	copy(out, p.warnings)
	return out
}

// HandleEvent implements simkit.Entity.
func (p *MultiPartition) HandleEvent(ctx *simkit.SimContext, ev simkit.Event) error {
	switch ev.Tag {
	case simkit.TagGridletSubmit:
		return p.Submit(ev.Data.(*job.Job))
	case simkit.TagGridletCancel:
		_, err := p.Cancel(ev.Data.(string))
		return err
	case simkit.TagUptSchedule:
		switch sig := ev.Data.(type) {
		case activationSignal:
			j := p.activate(sig.JobID, sig.Gen)
			if j != nil {
				delete(p.pivots, j.PartitionID)
			}
			p.runBackfillPass()
		case completionSignal:
			p.complete(sig.JobID)
			p.runBackfillPass()
		}
		return nil
	case simkit.TagGridletMove, simkit.TagGridletPause, simkit.TagGridletResume:
		p.warnings = append(p.warnings, fmt.Sprintf("%s: %s rejected (unsupported)", p.id, ev.Tag))
		return &unsupportedOpError{op: string(ev.Tag)}
	default:
		return nil
	}
}
