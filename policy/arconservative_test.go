package policy

import (
	"testing"

	"github.com/krfmo/gridsim/job"
	"github.com/krfmo/gridsim/peset"
	"github.com/krfmo/gridsim/simkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReservationStore struct {
	byID map[string]*job.Reservation
}

func (s *fakeReservationStore) Lookup(id string) (*job.Reservation, bool) {
	r, ok := s.byID[id]
	return r, ok
}

func TestARConservativeConsumesReservationSlab(t *testing.T) {
	k := simkit.NewManualKernel()
	ctx := simkit.NewSimContext(k)

	resv := &job.Reservation{
		ID:              "R1",
		Status:          job.ReservationCommitted,
		Duration:        100,
		AllocatedRanges: peset.List{{From: 0, To: 49}},
		RemainingPE:     50,
		RemainingTime:   100,
	}
	store := &fakeReservationStore{byID: map[string]*job.Reservation{"R1": resv}}
	p := NewARConservative("r", ctx, 100, 1.0, store)
	ctx.Registry.Register(p)

	j := &job.Job{ID: "bound", NumPE: 30, Length: 20, ReservationID: "R1"}
	require.NoError(t, p.Submit(j))

	assert.Equal(t, job.StatusInExec, j.Status)
	assert.Equal(t, 20, resv.RemainingPE, "30 PEs consumed from the reservation's own slab")
	assert.Equal(t, 20, resv.AllocatedRanges.NumPE())
	assert.Contains(t, resv.BoundJobIDs, "bound")
}

func TestARConservativeRejectsWhenReservationInsufficient(t *testing.T) {
	k := simkit.NewManualKernel()
	ctx := simkit.NewSimContext(k)
	resv := &job.Reservation{
		ID:              "R1",
		Status:          job.ReservationCommitted,
		Duration:        100,
		AllocatedRanges: peset.List{{From: 0, To: 9}},
		RemainingPE:     10,
		RemainingTime:   100,
	}
	store := &fakeReservationStore{byID: map[string]*job.Reservation{"R1": resv}}
	p := NewARConservative("r", ctx, 100, 1.0, store)

	j := &job.Job{ID: "bound", NumPE: 30, Length: 20, ReservationID: "R1"}
	err := p.Submit(j)
	require.Error(t, err)
	assert.Equal(t, job.StatusFailed, j.Status)
}

func TestARConservativeCancelReturnsSlabWithoutCompression(t *testing.T) {
	k := simkit.NewManualKernel()
	ctx := simkit.NewSimContext(k)
	resv := &job.Reservation{
		ID:              "R1",
		Status:          job.ReservationCommitted,
		Duration:        100,
		AllocatedRanges: peset.List{{From: 0, To: 49}},
		RemainingPE:     50,
		RemainingTime:   100,
	}
	store := &fakeReservationStore{byID: map[string]*job.Reservation{"R1": resv}}
	p := NewARConservative("r", ctx, 100, 1.0, store)
	ctx.Registry.Register(p)

	bound := &job.Job{ID: "bound", NumPE: 30, Length: 20, ReservationID: "R1"}
	require.NoError(t, p.Submit(bound))

	ordinary := &job.Job{ID: "ordinary", NumPE: 70, Length: 100}
	require.NoError(t, p.Submit(ordinary))
	ordinaryStartBefore := ordinary.StartTime

	_, err := p.Cancel("bound")
	require.NoError(t, err)
	assert.Equal(t, job.StatusCancelled, bound.Status)
	assert.Equal(t, 50, resv.RemainingPE)
	assert.Equal(t, ordinaryStartBefore, ordinary.StartTime, "cancelling a reservation-bound job must not compress ordinary jobs")
}

func TestARConservativeOrdinaryJobUsesConservativeCompression(t *testing.T) {
	k := simkit.NewManualKernel()
	ctx := simkit.NewSimContext(k)
	store := &fakeReservationStore{byID: map[string]*job.Reservation{}}
	p := NewARConservative("r", ctx, 100, 1.0, store)
	ctx.Registry.Register(p)

	a := &job.Job{ID: "a", NumPE: 100, Length: 100}
	b := &job.Job{ID: "b", NumPE: 100, Length: 50}
	require.NoError(t, p.Submit(a))
	require.NoError(t, p.Submit(b))
	require.Equal(t, float64(100), b.StartTime)

	_, err := p.Cancel("a")
	require.NoError(t, err)
	assert.Equal(t, float64(0), b.StartTime, "ordinary jobs still compress")
}
