package align

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpDown(t *testing.T) {
	tests := []struct {
		n, a, up, down uintptr
	}{
		{0, 16, 0, 0},
		{1, 16, 16, 0},
		{16, 16, 16, 16},
		{17, 16, 32, 16},
		{4095, 4096, 4096, 0},
		{4097, 4096, 8192, 4096},
	}
	for _, tt := range tests {
		require.Equal(t, tt.up, Up(tt.n, tt.a), "Up(%d, %d)", tt.n, tt.a)
		require.Equal(t, tt.down, Down(tt.n, tt.a), "Down(%d, %d)", tt.n, tt.a)
	}
}

func TestOffset(t *testing.T) {
	require.Equal(t, uint32(0), Offset(uint32(32), 16))
	require.Equal(t, uint32(8), Offset(uint32(8), 16))
	require.Equal(t, uint32(15), Offset(uint32(1), 16))
	require.True(t, IsAligned(uint64(64), 64))
	require.False(t, IsAligned(uint64(65), 64))
}

func TestPow2(t *testing.T) {
	require.False(t, IsPow2(uint(0)))
	require.True(t, IsPow2(uint(1)))
	require.True(t, IsPow2(uint(4096)))
	require.False(t, IsPow2(uint(48)))

	require.Equal(t, uint(1), NextPow2(uint(0)))
	require.Equal(t, uint(64), NextPow2(uint(48)))
	require.Equal(t, uint(64), NextPow2(uint(64)))
	require.Equal(t, uint8(0), NextPow2(uint8(200)), "overflow wraps to zero")
}
