package sysmem

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/joshuapare/dlmalloc/internal/align"
	"github.com/joshuapare/dlmalloc/internal/rawmem"
)

// regionAlign is the base alignment GoHeap guarantees for its regions.
const regionAlign = 16

// GoHeap provides regions carved from Go-managed byte slices.
//
// The Go runtime never relocates heap objects, so the raw base address of a
// region stays valid while the provider holds the slice. Release drops the
// reference and lets the garbage collector reclaim the memory.
type GoHeap struct {
	mu       sync.Mutex
	regions  map[uintptr][]byte
	pageSize uintptr
	held     uintptr
}

// NewGoHeap creates a GoHeap provider. A pageSize of zero selects DefaultPageSize.
// pageSize must be a power of two.
func NewGoHeap(pageSize uintptr) *GoHeap {
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if !align.IsPow2(pageSize) {
		panic("sysmem: page size must be a power of two")
	}
	return &GoHeap{
		regions:  make(map[uintptr][]byte),
		pageSize: pageSize,
	}
}

// Acquire allocates a zeroed region of at least minSize bytes.
func (g *GoHeap) Acquire(minSize uintptr) (uintptr, uintptr, error) {
	if minSize == 0 {
		return 0, 0, ErrZeroSize
	}
	size := align.Up(minSize, g.pageSize)
	if size < minSize {
		return 0, 0, errors.Wrapf(ErrExhausted, "request of %d bytes overflows", minSize)
	}

	// Over-allocate so the base can be moved up to regionAlign.
	buf := make([]byte, size+regionAlign)
	base := align.Up(rawmem.AddrOf(buf), regionAlign)

	g.mu.Lock()
	g.regions[base] = buf
	g.held += size
	g.mu.Unlock()

	return base, size, nil
}

// Release forgets a region so the Go runtime can reclaim it.
func (g *GoHeap) Release(base, size uintptr) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	buf, ok := g.regions[base]
	if !ok {
		return errors.Wrapf(ErrNotOwned, "release of %#x", base)
	}
	if uintptr(len(buf))-regionAlign != size {
		return errors.Wrapf(ErrNotOwned, "release of %#x with size %d, region has %d",
			base, size, uintptr(len(buf))-regionAlign)
	}
	delete(g.regions, base)
	g.held -= size
	return nil
}

// CanRelease is always true.
func (g *GoHeap) CanRelease() bool { return true }

// AllocatesZeros is always true; make() returns zeroed memory.
func (g *GoHeap) AllocatesZeros() bool { return true }

// PageSize returns the configured page size.
func (g *GoHeap) PageSize() uintptr { return g.pageSize }

// Held returns the number of bytes currently handed out.
func (g *GoHeap) Held() uintptr {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held
}

// Regions returns the number of regions currently handed out.
func (g *GoHeap) Regions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.regions)
}
