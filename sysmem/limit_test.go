package sysmem

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func Test_Limit_CapsHeldBytes(t *testing.T) {
	l := NewLimit(NewGoHeap(4096), 3*4096)

	b1, s1, err := l.Acquire(4096)
	require.NoError(t, err)
	_, _, err = l.Acquire(2 * 4096)
	require.NoError(t, err)

	_, _, err = l.Acquire(1)
	require.True(t, errors.Is(err, ErrExhausted))

	require.NoError(t, l.Release(b1, s1))
	_, _, err = l.Acquire(1)
	require.NoError(t, err)

	st := l.Stats()
	require.Equal(t, 3, st.Acquires)
	require.Equal(t, 1, st.Releases)
	require.Equal(t, uintptr(3*4096), st.Held)
	require.Equal(t, uintptr(3*4096), st.Peak)
}

func Test_Limit_RoundingOverCap(t *testing.T) {
	l := NewLimit(NewGoHeap(4096), 4096+100)
	_, _, err := l.Acquire(4096 + 1)
	require.True(t, errors.Is(err, ErrExhausted))
	require.Zero(t, l.Stats().Held)
}

func Test_Limit_Unlimited(t *testing.T) {
	l := NewLimit(NewGoHeap(0), 0)
	_, _, err := l.Acquire(1 << 20)
	require.NoError(t, err)
	require.NoError(t, l.Purge(0, 0))
}
