package sysmem

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/dlmalloc/internal/rawmem"
)

func Test_GoHeap_AcquireRelease(t *testing.T) {
	if checkptrEnabled {
		t.Skip("checkptr rejects raw addresses into Go heap slices")
	}
	g := NewGoHeap(0)
	require.Equal(t, uintptr(DefaultPageSize), g.PageSize())
	require.True(t, g.CanRelease())
	require.True(t, g.AllocatesZeros())

	base, size, err := g.Acquire(100)
	require.NoError(t, err)
	require.Equal(t, uintptr(DefaultPageSize), size)
	require.Zero(t, base%regionAlign)
	require.True(t, rawmem.IsZero(base, size))

	// The whole region is writable.
	rawmem.Fill(base, size, 0xCC)
	require.Equal(t, 1, g.Regions())
	require.Equal(t, size, g.Held())

	require.NoError(t, g.Release(base, size))
	require.Zero(t, g.Regions())
	require.Zero(t, g.Held())
}

func Test_GoHeap_ReleaseErrors(t *testing.T) {
	g := NewGoHeap(4096)
	base, size, err := g.Acquire(8192)
	require.NoError(t, err)

	err = g.Release(base+16, size)
	require.True(t, errors.Is(err, ErrNotOwned))

	err = g.Release(base, size-4096)
	require.True(t, errors.Is(err, ErrNotOwned))

	require.NoError(t, g.Release(base, size))
	err = g.Release(base, size)
	require.True(t, errors.Is(err, ErrNotOwned), "double release must fail")
}

func Test_GoHeap_ZeroSize(t *testing.T) {
	_, _, err := NewGoHeap(0).Acquire(0)
	require.True(t, errors.Is(err, ErrZeroSize))
}

func Test_GoHeap_BadPageSize(t *testing.T) {
	require.Panics(t, func() { NewGoHeap(3000) })
}
