package peset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfNormalizesAndCoalesces(t *testing.T) {
	l := Of(Range{From: 10, To: 20}, Range{From: 0, To: 9}, Range{From: 21, To: 25})
	require.Len(t, l, 1)
	assert.Equal(t, 0, l[0].From)
	assert.Equal(t, 25, l[0].To)
	assert.Equal(t, 26, l.NumPE())
}

func TestSelectLowestIDsFirstAndStable(t *testing.T) {
	l := Of(Range{From: 5, To: 9}, Range{From: 20, To: 29})
	got1, err := l.Select(7)
	require.NoError(t, err)
	got2, err := l.Select(7)
	require.NoError(t, err)
	assert.Equal(t, got1, got2, "selectPEs must be stable across runs (PE selection stability)")
	assert.Equal(t, 7, got1.NumPE())
	assert.Equal(t, 5, got1[0].From)
}

func TestSelectFailsWhenNotEnoughPEs(t *testing.T) {
	l := Of(Range{From: 0, To: 4})
	_, err := l.Select(6)
	require.Error(t, err)
	var selErr *SelectError
	require.ErrorAs(t, err, &selErr)
	assert.Equal(t, 6, selErr.Requested)
	assert.Equal(t, 5, selErr.Available)
}

func TestMergeRemoveIntersect(t *testing.T) {
	a := Of(Range{From: 0, To: 99})
	b := Of(Range{From: 50, To: 149})

	union := Merge(a, b)
	require.Len(t, union, 1)
	assert.Equal(t, 150, union.NumPE())

	diff := Remove(a, b)
	require.Len(t, diff, 1)
	assert.Equal(t, Range{From: 0, To: 49}, diff[0])

	inter := Intersect(a, b)
	require.Len(t, inter, 1)
	assert.Equal(t, Range{From: 50, To: 99}, inter[0])
}

func TestRemoveDisjointLeavesUnchanged(t *testing.T) {
	a := Of(Range{From: 0, To: 10})
	b := Of(Range{From: 20, To: 30})
	assert.Equal(t, a, Remove(a, b))
	assert.Empty(t, Intersect(a, b))
}

func TestRemoveMiddleSplitsRange(t *testing.T) {
	a := Of(Range{From: 0, To: 99})
	b := Of(Range{From: 40, To: 59})
	diff := Remove(a, b)
	require.Len(t, diff, 2)
	assert.Equal(t, Range{From: 0, To: 39}, diff[0])
	assert.Equal(t, Range{From: 60, To: 99}, diff[1])
}
