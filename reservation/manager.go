// Package reservation implements the advance-reservation state machine
// of spec.md §4.5 (C5): REQUESTED/create validation, commit, a periodic
// expiry timer, the start/finish lifecycle, and user-initiated
// cancellation, all booking their slab against the same profile.Profile
// a scheduling policy reads from.
package reservation

import (
	"fmt"
	"math"
	"sort"

	"github.com/krfmo/gridsim/job"
	"github.com/krfmo/gridsim/profile"
	"github.com/krfmo/gridsim/simkit"
)

// ScheduleCompressor is implemented by policy.Conservative and
// policy.ARConservative. When a reservation's slab is returned to the
// profile out from under a running policy (expiry, user cancel), the
// manager calls Compress so the waiting list can pull its start times
// earlier, matching Testable Property 2.
type ScheduleCompressor interface {
	Compress(now float64)
}

// NotFoundError reports an unknown reservation id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("reservation: unknown id %q", e.ID) }

type startSignal struct{ ID string }
type finishSignal struct{ ID string }

// Manager is the per-resource reservation state machine. It shares a
// profile.Profile with the resource's scheduling policy: reservations
// book and release slabs in that same instance.
type Manager struct {
	id           simkit.EntityID
	ctx          *simkit.SimContext
	prof         *profile.Profile
	commitPeriod float64
	compressor   ScheduleCompressor
	reservations map[string]*job.Reservation
}

// NewManager creates a reservation manager sharing prof with the
// resource's policy. compressor may be nil if the policy doesn't
// compress (e.g. plain Aggressive).
func NewManager(id simkit.EntityID, ctx *simkit.SimContext, prof *profile.Profile, commitPeriod float64, compressor ScheduleCompressor) *Manager {
	return &Manager{
		id:           id,
		ctx:          ctx,
		prof:         prof,
		commitPeriod: commitPeriod,
		compressor:   compressor,
		reservations: make(map[string]*job.Reservation),
	}
}

func (m *Manager) ID() simkit.EntityID { return m.id }

func (m *Manager) clock() float64 {
	if m.ctx == nil {
		return 0
	}
	return m.ctx.Clock()
}

func (m *Manager) schedule(delay float64, data any) {
	if m.ctx == nil {
		return
	}
	m.ctx.Schedule(delay, simkit.Event{Tag: simkit.TagUptSchedule, Dest: m.id, Data: data})
}

// Lookup implements policy.ReservationStore.
func (m *Manager) Lookup(id string) (*job.Reservation, bool) {
	r, ok := m.reservations[id]
	return r, ok
}

// Create validates r against the shared profile (spec.md §4.5 Create).
// On success r is booked NOT_COMMITTED (or COMMITTED if StartTime ==
// now) and tracked. On failure r.Status becomes FAILED and the returned
// slots are alternative windows read from getTimeSlots(startTime, +∞).
func (m *Manager) Create(r *job.Reservation) ([]profile.TimeSlot, error) {
	now := m.clock()
	entry, ok := m.prof.CheckAvailability(r.NumPE, r.StartTime, r.Duration)
	if !ok {
		r.Status = job.ReservationFailed
		return m.prof.GetTimeSlots(r.StartTime, math.Inf(1)), fmt.Errorf("reservation: cannot satisfy %d PEs at %v for %v", r.NumPE, r.StartTime, r.Duration)
	}
	ranges, err := entry.Avail.Select(r.NumPE)
	if err != nil {
		r.Status = job.ReservationFailed
		return nil, err
	}
	if err := m.prof.Allocate(ranges, r.StartTime, r.StartTime+r.Duration); err != nil {
		r.Status = job.ReservationFailed
		return nil, err
	}
	r.AllocatedRanges = ranges
	r.RemainingPE = r.NumPE
	r.RemainingTime = r.Duration
	r.ExpiryTime = math.Min(r.StartTime, now+m.commitPeriod)
	r.Status = job.ReservationNotCommitted
	if r.StartTime == now {
		r.Status = job.ReservationCommitted
	}
	m.reservations[r.ID] = r
	m.schedule(r.StartTime-now, startSignal{ID: r.ID})
	return nil, nil
}

// Commit transitions r from NOT_COMMITTED to COMMITTED.
func (m *Manager) Commit(id string) error {
	r, ok := m.reservations[id]
	if !ok {
		return &NotFoundError{ID: id}
	}
	if r.Status != job.ReservationNotCommitted {
		return fmt.Errorf("reservation: %s cannot commit from state %s", id, r.Status)
	}
	r.Status = job.ReservationCommitted
	return nil
}

// Query returns the reservation record for id.
func (m *Manager) Query(id string) (*job.Reservation, error) {
	r, ok := m.reservations[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return r, nil
}

// Cancel is permitted in any non-terminal state (spec.md §4.5): it
// returns the reservation's own unconsumed slab to the shared profile
// and re-triggers compression. PEs already consumed by bound jobs
// (policy.ARConservative's own bookkeeping) are released by that
// policy when those jobs finish or are themselves cancelled — Cancel
// here only ever touches the reservation's private remaining slab.
func (m *Manager) Cancel(id string) (*job.Reservation, error) {
	r, ok := m.reservations[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	if r.IsTerminal() {
		return nil, fmt.Errorf("reservation: %s is already terminal (%s)", id, r.Status)
	}
	now := m.clock()
	releaseFrom := r.StartTime
	if now > releaseFrom {
		releaseFrom = now
	}
	if err := m.prof.AddTimeSlot(releaseFrom, r.StartTime+r.Duration, r.AllocatedRanges); err != nil {
		return nil, err
	}
	r.Status = job.ReservationCancelled
	r.AllocatedRanges = nil
	if m.compressor != nil {
		m.compressor.Compress(now)
	}
	return r, nil
}

// checkExpiries handles one RES_EXPIRY_TICK event (spec.md §4.5, Testable
// Property 8): any NOT_COMMITTED reservation whose ExpiryTime has passed
// moves to CANCELLED exactly once, its slab returns to the profile, and
// the policy compresses. The manager does not schedule these ticks
// itself.
func (m *Manager) checkExpiries() {
	now := m.clock()
	ids := make([]string, 0, len(m.reservations))
	for id := range m.reservations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		r := m.reservations[id]
		if r.Status != job.ReservationNotCommitted || r.ExpiryTime > now {
			continue
		}
		if err := m.prof.AddTimeSlot(r.StartTime, r.StartTime+r.Duration, r.AllocatedRanges); err != nil {
			continue
		}
		r.Status = job.ReservationCancelled
		r.AllocatedRanges = nil
		if m.compressor != nil {
			m.compressor.Compress(now)
		}
	}
}

// start implements the Start transition: a COMMITTED reservation at its
// StartTime becomes IN_PROGRESS and schedules its own finish signal.
func (m *Manager) start(id string) {
	r, ok := m.reservations[id]
	if !ok || r.Status != job.ReservationCommitted {
		return
	}
	r.Status = job.ReservationInProgress
	m.schedule(r.Duration, finishSignal{ID: id})
}

// finish implements the Finish transition.
func (m *Manager) finish(id string) {
	r, ok := m.reservations[id]
	if !ok || r.Status != job.ReservationInProgress {
		return
	}
	r.Status = job.ReservationFinished
}

// HandleEvent implements simkit.Entity.
func (m *Manager) HandleEvent(ctx *simkit.SimContext, ev simkit.Event) error {
	switch ev.Tag {
	case simkit.TagResCreate:
		_, err := m.Create(ev.Data.(*job.Reservation))
		return err
	case simkit.TagResCommit:
		return m.Commit(ev.Data.(string))
	case simkit.TagResCancel:
		_, err := m.Cancel(ev.Data.(string))
		return err
	case simkit.TagResQuery:
		_, err := m.Query(ev.Data.(string))
		return err
	case simkit.TagResModify:
		return fmt.Errorf("reservation: modify is not supported")
	case simkit.TagResExpiry:
		m.checkExpiries()
		return nil
	case simkit.TagUptSchedule:
		switch sig := ev.Data.(type) {
		case startSignal:
			m.start(sig.ID)
		case finishSignal:
			m.finish(sig.ID)
		}
		return nil
	default:
		return nil
	}
}
