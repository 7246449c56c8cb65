package sysmem

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/joshuapare/dlmalloc/internal/align"
	"github.com/joshuapare/dlmalloc/internal/rawmem"
)

// Fixed hands out a single caller-owned buffer front to back and never takes
// memory back. It models environments whose heap can only grow, such as wasm
// linear memory or a static RAM region on an embedded target.
//
// Consecutive regions are adjacent in memory.
type Fixed struct {
	mu       sync.Mutex
	buf      []byte
	start    uintptr
	end      uintptr
	brk      uintptr
	pageSize uintptr
	zeroed   bool
}

// NewFixed creates a Fixed provider over buf. The caller must keep buf alive
// and must not touch it while the provider or any engine uses it.
// A pageSize of zero selects DefaultPageSize. zeroed declares that buf is
// known to be zero-filled.
func NewFixed(buf []byte, pageSize uintptr, zeroed bool) *Fixed {
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if !align.IsPow2(pageSize) {
		panic("sysmem: page size must be a power of two")
	}
	addr := rawmem.AddrOf(buf)
	start := align.Up(addr, regionAlign)
	end := addr + uintptr(len(buf))
	if start > end {
		start = end
	}
	return &Fixed{
		buf:      buf,
		start:    start,
		end:      end,
		brk:      start,
		pageSize: pageSize,
		zeroed:   zeroed,
	}
}

// Acquire returns the next page-multiple slice of the buffer.
func (f *Fixed) Acquire(minSize uintptr) (uintptr, uintptr, error) {
	if minSize == 0 {
		return 0, 0, ErrZeroSize
	}
	size := align.Up(minSize, f.pageSize)
	if size < minSize {
		return 0, 0, errors.Wrapf(ErrExhausted, "request of %d bytes overflows", minSize)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.end-f.brk < size {
		return 0, 0, errors.Wrapf(ErrExhausted, "need %d bytes, %d remain", size, f.end-f.brk)
	}
	base := f.brk
	f.brk += size
	return base, size, nil
}

// Release always fails; Fixed memory is permanent.
func (f *Fixed) Release(base, size uintptr) error {
	return errors.Wrapf(ErrReleaseUnsupported, "release of %#x", base)
}

// CanRelease is always false.
func (f *Fixed) CanRelease() bool { return false }

// AllocatesZeros reports what the caller declared about the buffer.
func (f *Fixed) AllocatesZeros() bool { return f.zeroed }

// PageSize returns the configured page size.
func (f *Fixed) PageSize() uintptr { return f.pageSize }

// Remaining returns the number of bytes not yet handed out.
func (f *Fixed) Remaining() uintptr {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.end - f.brk
}
