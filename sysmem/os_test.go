package sysmem

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/dlmalloc/internal/rawmem"
)

func Test_OS_AcquireRelease(t *testing.T) {
	o := NewOS()
	page := o.PageSize()
	require.NotZero(t, page)
	require.True(t, o.CanRelease())

	base, size, err := o.Acquire(3*page + 1)
	require.NoError(t, err)
	require.Equal(t, 4*page, size)
	require.Zero(t, base%regionAlign)
	require.True(t, rawmem.IsZero(base, size), "fresh memory is zeroed")

	rawmem.Fill(base, size, 0x7E)

	if p, ok := any(o).(Purger); ok {
		require.NoError(t, p.Purge(base+page, 2*page))
	}

	require.NoError(t, o.Release(base, size))
	require.Error(t, o.Release(base, size))
}
