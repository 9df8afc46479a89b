package datagrid

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStorageAddAndDelete(t *testing.T) {
	d := NewDiskStorage("disk0", 100)
	require.NoError(t, d.AddFile("a", FileAttr{Name: "a", Size: 40}))
	assert.Equal(t, int64(40), d.Used())
	require.NoError(t, d.DeleteFile("a"))
	assert.Equal(t, int64(0), d.Used())
	assert.False(t, d.HasFile("a"))
}

func TestDiskStorageRejectsOverCapacity(t *testing.T) {
	d := NewDiskStorage("disk0", 100)
	err := d.AddFile("big", FileAttr{Name: "big", Size: 200})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStorageFull))
}

func TestDiskStorageRejectsNameConflict(t *testing.T) {
	d := NewDiskStorage("disk0", 100)
	require.NoError(t, d.AddFile("a", FileAttr{Name: "a", Size: 10}))
	err := d.AddFile("a", FileAttr{Name: "a", Size: 10})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExistReadOnly))
}

func TestDiskStorageReadOnlyIsFalse(t *testing.T) {
	assert.False(t, NewDiskStorage("disk0", 100).ReadOnly())
}

func TestTapeStorageDeleteAlwaysFails(t *testing.T) {
	tp := NewTapeStorage("tape0", 100)
	require.NoError(t, tp.AddFile("a", FileAttr{Name: "a", Size: 10}))
	err := tp.DeleteFile("a")
	require.Error(t, err)
	assert.Same(t, ErrTapeDeleteUnsupported, err)
	assert.True(t, tp.HasFile("a"), "DeleteFile performs no mutation on tape")
}

func TestTapeStorageReadOnlyIsTrue(t *testing.T) {
	assert.True(t, NewTapeStorage("tape0", 100).ReadOnly())
}
