package profile

import (
	"testing"

	"github.com/krfmo/gridsim/peset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionedIsolation(t *testing.T) {
	pp := NewPartitioned(map[string]peset.List{
		"a": peset.Of(peset.Range{From: 0, To: 49}),
		"b": peset.Of(peset.Range{From: 50, To: 99}),
	}, nil)

	require.NoError(t, pp.Partition("a").Allocate(peset.Of(peset.Range{From: 0, To: 29}), 0, 100))

	_, ok := pp.CheckPartAvailability("a", 40, 0, 50)
	assert.False(t, ok, "partition a only has 20 PEs free in [0,50)")

	entry, ok := pp.CheckPartAvailability("b", 50, 0, 50)
	require.True(t, ok)
	assert.Equal(t, 50, entry.Avail.NumPE())
}

func TestPartitionedAggregateBorrowing(t *testing.T) {
	pp := NewPartitioned(map[string]peset.List{
		"a": peset.Of(peset.Range{From: 0, To: 49}),
		"b": peset.Of(peset.Range{From: 50, To: 99}),
	}, nil)

	require.NoError(t, pp.Partition("a").Allocate(peset.Of(peset.Range{From: 0, To: 39}), 0, 1000))

	_, ok := pp.CheckPartAvailability("a", 20, 0, 100)
	assert.False(t, ok)

	entry, ok := pp.CheckAggregateAvailability(60, 0, 100)
	require.True(t, ok, "borrowing from partition b should satisfy the aggregate request")
	assert.Equal(t, 60, entry.Avail.NumPE())
}

func TestMatchPartitionRejectsUnmatched(t *testing.T) {
	pp := NewPartitioned(map[string]peset.List{
		"gpu": peset.Of(peset.Range{From: 0, To: 9}),
	}, func(item any) (string, bool) {
		if item == "gpu-job" {
			return "gpu", true
		}
		return "", false
	})
	id, ok := pp.MatchPartition("cpu-job")
	assert.False(t, ok)
	assert.Equal(t, "", id)

	id, ok = pp.MatchPartition("gpu-job")
	assert.True(t, ok)
	assert.Equal(t, "gpu", id)
}
