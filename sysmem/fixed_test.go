package sysmem

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func Test_Fixed_GrowOnly(t *testing.T) {
	buf := make([]byte, 64*1024+regionAlign)
	f := NewFixed(buf, 4096, true)
	require.False(t, f.CanRelease())
	require.True(t, f.AllocatesZeros())

	b1, s1, err := f.Acquire(1)
	require.NoError(t, err)
	require.Equal(t, uintptr(4096), s1)

	b2, s2, err := f.Acquire(5000)
	require.NoError(t, err)
	require.Equal(t, uintptr(8192), s2)
	require.Equal(t, b1+s1, b2, "regions are handed out back to back")

	err = f.Release(b1, s1)
	require.True(t, errors.Is(err, ErrReleaseUnsupported))
}

func Test_Fixed_Exhaustion(t *testing.T) {
	buf := make([]byte, 3*4096+regionAlign)
	f := NewFixed(buf, 4096, false)
	require.False(t, f.AllocatesZeros())

	_, _, err := f.Acquire(2 * 4096)
	require.NoError(t, err)
	remaining := f.Remaining()

	_, _, err = f.Acquire(2 * 4096)
	require.True(t, errors.Is(err, ErrExhausted))
	require.Equal(t, remaining, f.Remaining(), "failed acquire must not consume memory")

	_, _, err = f.Acquire(4096)
	require.NoError(t, err)
}
