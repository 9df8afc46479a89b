package router

import (
	"testing"

	"github.com/krfmo/gridsim/network"
	"github.com/krfmo/gridsim/simkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLinkScheduler(ctx *simkit.SimContext, id simkit.EntityID, maxBuf int) *network.Scheduler {
	return network.NewScheduler(id, ctx, nil, network.NewFIFO(maxBuf), nil)
}

// TestHopCountPropagation verifies that an advertisement floods outward
// and each router picks the lower of competing hop counts.
func TestHopCountPropagation(t *testing.T) {
	k := simkit.NewManualKernel()
	ctx := simkit.NewSimContext(k)

	r1 := NewRouter("r1", ctx)
	r2 := NewRouter("r2", ctx)
	r3 := NewRouter("r3", ctx)
	ctx.Registry.Register(r1)
	ctx.Registry.Register(r2)
	ctx.Registry.Register(r3)

	r1.AddNeighbour("r2", "r1-r2", newLinkScheduler(ctx, "r1-r2.out", 10), 1500, 1_000_000)
	r2.AddNeighbour("r1", "r2-r1", newLinkScheduler(ctx, "r2-r1.out", 10), 1500, 1_000_000)
	r2.AddNeighbour("r3", "r2-r3", newLinkScheduler(ctx, "r2-r3.out", 10), 1500, 1_000_000)
	r3.AddNeighbour("r2", "r3-r2", newLinkScheduler(ctx, "r3-r2.out", 10), 1500, 1_000_000)

	r1.AddHost("hostA", "r1-hostA", newLinkScheduler(ctx, "r1-hostA.out", 10), 1500, 1_000_000)

	r1.Start()
	require.NoError(t, k.Run(ctx))

	entry, ok := r2.forward["hostA"]
	require.True(t, ok)
	assert.Equal(t, 1, entry.HopCount)
	assert.Equal(t, simkit.EntityID("r1"), entry.NextHop)

	entry3, ok := r3.forward["hostA"]
	require.True(t, ok)
	assert.Equal(t, 2, entry3.HopCount)
	assert.Equal(t, simkit.EntityID("r2"), entry3.NextHop)
}

// TestForwardFragmentsBySize verifies ceil(size/MTU) fragmentation with
// only the final fragment carrying the payload.
func TestForwardFragmentsBySize(t *testing.T) {
	k := simkit.NewManualKernel()
	ctx := simkit.NewSimContext(k)
	r1 := NewRouter("r1", ctx)
	ctx.Registry.Register(r1)

	sched := newLinkScheduler(ctx, "r1-hostA.out", 100)
	r1.AddHost("hostA", "r1-hostA", sched, 100, 1_000_000)

	pkt := network.Packet{Src: "hostB", Dest: "hostA", ObjectID: "job1", Size: 250, Payload: "payload"}
	require.NoError(t, r1.onForward(pkt))

	assert.Equal(t, 3, sched.Len(), "250 bytes over a 100-byte MTU fragments into 3 packets")

	for i := 0; i < 2; i++ {
		frag, ok := sched.Dequeue()
		require.True(t, ok)
		assert.Nil(t, frag.Payload, "only the final fragment carries the payload")
		assert.Equal(t, 3, frag.Total)
	}
	last, ok := sched.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "payload", last.Payload)
	assert.Equal(t, int64(50), last.Size, "final fragment carries the remainder")
}

func TestAdaptSchedulersWalksEveryLink(t *testing.T) {
	k := simkit.NewManualKernel()
	ctx := simkit.NewSimContext(k)
	r1 := NewRouter("r1", ctx)

	ared := network.NewARED(network.AREDConfig{MinTh: 5, MaxTh: 20, MaxP: 0.1, Weight: 1})
	sched := network.NewScheduler("r1-hostA.out", ctx, nil, ared, nil)
	r1.AddHost("hostA", "r1-hostA", sched, 1500, 1_000_000)

	_ = sched.Enqueue(network.Packet{Src: "x", Dest: "y", Size: 1})
	ared.Admit(0, 20) // force avg above targetHigh
	before := sched.Stats().MaxP
	r1.AdaptSchedulers()
	assert.Greater(t, sched.Stats().MaxP, before)
}
