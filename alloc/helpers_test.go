package alloc

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/dlmalloc/internal/rawmem"
	"github.com/joshuapare/dlmalloc/sysmem"
)

// newTestEngine returns a debug-checked engine over OS memory and the
// counting wrapper around its provider. The engine is closed at cleanup.
func newTestEngine(t *testing.T, cfg *Config) (*Engine, *sysmem.Limit) {
	t.Helper()
	lim := sysmem.NewLimit(sysmem.NewOS(), 0)
	c := Config{}
	if cfg != nil {
		c = *cfg
	}
	c.Debug = true
	e := New(lim, &c)
	t.Cleanup(func() {
		require.NoError(t, e.Close())
	})
	return e, lim
}

func mustMalloc(t *testing.T, e *Engine, n uintptr) uintptr {
	t.Helper()
	mem, err := e.Malloc(n)
	require.NoError(t, err, "malloc %d", n)
	require.NotZero(t, mem)
	return mem
}

// fillPattern writes a position-dependent pattern seeded by s.
func fillPattern(mem, n uintptr, s byte) {
	buf := rawmem.Bytes(mem, n)
	for i := range buf {
		buf[i] = s + byte(i*7)
	}
}

func requirePattern(t *testing.T, mem, n uintptr, s byte) {
	t.Helper()
	buf := rawmem.Bytes(mem, n)
	for i := range buf {
		if buf[i] != s+byte(i*7) {
			require.Failf(t, "pattern mismatch", "byte %d of %#x: got %#x want %#x", i, mem, buf[i], s+byte(i*7))
		}
	}
}

// requireCorruption runs fn and requires it to panic with ErrCorrupted.
func requireCorruption(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		require.NotNil(t, r, "expected a corruption panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		require.True(t, errors.Is(err, ErrCorrupted), "got %v", err)
	}()
	fn()
}
