package reservation

import (
	"testing"

	"github.com/krfmo/gridsim/job"
	"github.com/krfmo/gridsim/policy"
	"github.com/krfmo/gridsim/profile"
	"github.com/krfmo/gridsim/simkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCommitsImmediatelyWhenStartIsNow(t *testing.T) {
	k := simkit.NewManualKernel()
	ctx := simkit.NewSimContext(k)
	prof := profile.New(100)
	m := NewManager("resv", ctx, prof, 50, nil)

	r := &job.Reservation{ID: "R1", NumPE: 50, StartTime: 0, Duration: 100}
	_, err := m.Create(r)
	require.NoError(t, err)
	assert.Equal(t, job.ReservationCommitted, r.Status)
	assert.Equal(t, 50, r.RemainingPE)
}

func TestCreateStaysNotCommittedWhenStartIsFuture(t *testing.T) {
	k := simkit.NewManualKernel()
	ctx := simkit.NewSimContext(k)
	prof := profile.New(100)
	m := NewManager("resv", ctx, prof, 50, nil)

	r := &job.Reservation{ID: "R1", NumPE: 50, StartTime: 200, Duration: 100}
	_, err := m.Create(r)
	require.NoError(t, err)
	assert.Equal(t, job.ReservationNotCommitted, r.Status)
	assert.Equal(t, float64(50), r.ExpiryTime, "expiry = min(startTime, now+commitPeriod)")
}

func TestCreateFailureReturnsAlternativeSlots(t *testing.T) {
	k := simkit.NewManualKernel()
	ctx := simkit.NewSimContext(k)
	prof := profile.New(100)
	m := NewManager("resv", ctx, prof, 50, nil)

	blocker := &job.Reservation{ID: "blocker", NumPE: 100, StartTime: 0, Duration: 500}
	_, err := m.Create(blocker)
	require.NoError(t, err)

	r := &job.Reservation{ID: "R2", NumPE: 50, StartTime: 0, Duration: 10}
	slots, err := m.Create(r)
	require.Error(t, err)
	assert.Equal(t, job.ReservationFailed, r.Status)
	assert.NotEmpty(t, slots)
}

// managerLookupRef forwards policy.ReservationStore.Lookup to a Manager
// assigned after construction, breaking the same construction cycle
// runner.go's reservationStoreRef does: ARConservative needs a store at
// construction, but the store here is the very Manager that needs the
// policy's shared profile.Profile to exist first.
type managerLookupRef struct {
	mgr *Manager
}

func (r *managerLookupRef) Lookup(id string) (*job.Reservation, bool) {
	if r.mgr == nil {
		return nil, false
	}
	return r.mgr.Lookup(id)
}

// TestARConservativeRejectsBindingBeforeReservationStarts is the
// reviewer-requested regression test for the double-booking the bare
// job.Reservation{} literals in policy's own test suite can't catch:
// it routes a reservation through the real Manager.Create, sharing the
// same profile.Profile the policy books ordinary jobs against, then
// tries to bind a job to that reservation before its StartTime arrives.
func TestARConservativeRejectsBindingBeforeReservationStarts(t *testing.T) {
	k := simkit.NewManualKernel()
	ctx := simkit.NewSimContext(k)

	ref := &managerLookupRef{}
	p := policy.NewARConservative("r", ctx, 100, 1.0, ref)
	ctx.Registry.Register(p)

	m := NewManager("resv", ctx, p.Profile(), 50, nil)
	ref.mgr = m
	ctx.Registry.Register(m)

	r := &job.Reservation{ID: "R1", NumPE: 50, StartTime: 100, Duration: 50}
	_, err := m.Create(r)
	require.NoError(t, err)
	require.Equal(t, job.ReservationNotCommitted, r.Status, "StartTime is in the future, so Create must not auto-commit")
	require.NoError(t, m.Commit("R1"))

	ordinary := &job.Job{ID: "ordinary", NumPE: 60, Length: 10}
	require.NoError(t, p.Submit(ordinary), "the profile still owes these PEs to ordinary jobs until the reservation's own window starts")

	bound := &job.Job{ID: "bound", NumPE: 30, Length: 20, ReservationID: "R1"}
	err = p.Submit(bound)
	require.Error(t, err, "binding before StartTime would double-book PEs the profile still hands to ordinary jobs over [0, 100)")
	assert.Equal(t, job.StatusFailed, bound.Status)
}

// TestARConservativeAcceptsBindingOnceReservationIsInProgress confirms
// the same bound job succeeds once the kernel clock reaches the
// reservation's own StartTime and its start transition has fired.
func TestARConservativeAcceptsBindingOnceReservationIsInProgress(t *testing.T) {
	k := simkit.NewManualKernel()
	ctx := simkit.NewSimContext(k)

	ref := &managerLookupRef{}
	p := policy.NewARConservative("r", ctx, 100, 1.0, ref)
	ctx.Registry.Register(p)

	m := NewManager("resv", ctx, p.Profile(), 50, nil)
	ref.mgr = m
	ctx.Registry.Register(m)

	r := &job.Reservation{ID: "R1", NumPE: 50, StartTime: 100, Duration: 50}
	_, err := m.Create(r)
	require.NoError(t, err)
	require.NoError(t, m.Commit("R1"))

	ev, ok := k.Pop()
	require.True(t, ok, "the reservation's own start signal is the only pending event")
	require.NoError(t, m.HandleEvent(ctx, ev), "delivers the start signal; the finish signal it schedules stays queued")
	require.Equal(t, job.ReservationInProgress, r.Status)

	bound := &job.Job{ID: "bound", NumPE: 30, Length: 20, ReservationID: "R1"}
	require.NoError(t, p.Submit(bound))
	assert.Equal(t, job.StatusInExec, bound.Status)
}

// TestExpiryCancelsAndReturnsSlab covers Testable Property 8.
func TestExpiryCancelsAndReturnsSlab(t *testing.T) {
	k := simkit.NewManualKernel()
	ctx := simkit.NewSimContext(k)
	prof := profile.New(100)
	cons := policy.NewConservative("res", ctx, 100, 1.0)
	ctx.Registry.Register(cons)
	m := NewManager("resv", ctx, prof, 5, cons)
	ctx.Registry.Register(m)

	r := &job.Reservation{ID: "R1", NumPE: 50, StartTime: 100, Duration: 50}
	_, err := m.Create(r)
	require.NoError(t, err)
	require.Equal(t, job.ReservationNotCommitted, r.Status)
	require.Equal(t, float64(5), r.ExpiryTime)

	k.Schedule(10, simkit.Event{Tag: simkit.TagResExpiry, Dest: "resv"})
	ev, ok := k.Pop()
	require.True(t, ok)
	require.NoError(t, m.HandleEvent(ctx, ev))

	assert.Equal(t, job.ReservationCancelled, r.Status, "Testable Property 8: expiry moves a reservation to CANCELLED")
	entry, ok := prof.CheckAvailability(100, 100, 50)
	require.True(t, ok, "the reservation's slab must be fully returned to the shared profile")
	assert.Equal(t, 100, entry.Avail.NumPE())
}

func TestCancelNonTerminalReturnsSlab(t *testing.T) {
	k := simkit.NewManualKernel()
	ctx := simkit.NewSimContext(k)
	prof := profile.New(100)
	m := NewManager("resv", ctx, prof, 50, nil)

	r := &job.Reservation{ID: "R1", NumPE: 50, StartTime: 0, Duration: 100}
	_, err := m.Create(r)
	require.NoError(t, err)

	_, err = m.Cancel("R1")
	require.NoError(t, err)
	assert.Equal(t, job.ReservationCancelled, r.Status)

	entry, ok := prof.CheckAvailability(100, 0, 1)
	require.True(t, ok)
	assert.Equal(t, 100, entry.Avail.NumPE())
}

func TestCancelUnknownReservation(t *testing.T) {
	k := simkit.NewManualKernel()
	ctx := simkit.NewSimContext(k)
	prof := profile.New(10)
	m := NewManager("resv", ctx, prof, 5, nil)
	_, err := m.Cancel("ghost")
	require.Error(t, err)
	var nfe *NotFoundError
	require.ErrorAs(t, err, &nfe)
}

func TestCommitThenStartThenFinish(t *testing.T) {
	k := simkit.NewManualKernel()
	ctx := simkit.NewSimContext(k)
	prof := profile.New(10)
	m := NewManager("resv", ctx, prof, 100, nil)
	ctx.Registry.Register(m)

	r := &job.Reservation{ID: "R1", NumPE: 10, StartTime: 20, Duration: 5}
	_, err := m.Create(r)
	require.NoError(t, err)
	require.NoError(t, m.Commit("R1"))
	assert.Equal(t, job.ReservationCommitted, r.Status)

	require.NoError(t, k.Run(ctx))
	assert.Equal(t, job.ReservationFinished, r.Status)
}
