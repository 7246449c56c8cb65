package rawmem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func skipOnCheckptr(t *testing.T) {
	t.Helper()
	if checkptrEnabled {
		t.Skip("checkptr rejects raw addresses into Go heap slices")
	}
}

func TestBytesAliasesMemory(t *testing.T) {
	skipOnCheckptr(t)
	backing := make([]byte, 64)
	addr := AddrOf(backing)

	view := Bytes(addr+8, 16)
	require.Len(t, view, 16)
	view[0] = 0xAB
	require.Equal(t, byte(0xAB), backing[8])

	require.Nil(t, Bytes(0, 16))
	require.Nil(t, Bytes(addr, 0))
	require.Zero(t, AddrOf(nil))
}

func TestFillZeroCopy(t *testing.T) {
	skipOnCheckptr(t)
	backing := make([]byte, 64)
	addr := AddrOf(backing)

	Fill(addr, 32, 0x5A)
	require.False(t, IsZero(addr, 32))
	require.True(t, IsZero(addr+32, 32))

	Copy(addr+32, addr, 16)
	require.Equal(t, backing[:16], backing[32:48])

	Zero(addr, 64)
	require.True(t, IsZero(addr, 64))
}

func TestCopyOverlapping(t *testing.T) {
	skipOnCheckptr(t)
	backing := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	addr := AddrOf(backing)
	Copy(addr+2, addr, 4)
	require.Equal(t, []byte{1, 2, 1, 2, 3, 4, 7, 8}, backing)
}

func TestOverflowSafe(t *testing.T) {
	p, ok := MulOverflowSafe(16, 4)
	require.True(t, ok)
	require.Equal(t, uintptr(64), p)

	half := ^uintptr(0)/2 + 1
	_, ok = MulOverflowSafe(half, 2)
	require.False(t, ok)

	_, ok = AddOverflowSafe(^uintptr(0), 1)
	require.False(t, ok)
	s, ok := AddOverflowSafe(40, 2)
	require.True(t, ok)
	require.Equal(t, uintptr(42), s)
}
