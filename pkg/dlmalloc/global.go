package dlmalloc

import (
	"sync"

	"github.com/joshuapare/dlmalloc/alloc"
	"github.com/joshuapare/dlmalloc/sysmem"
)

// Global serializes every call into one Dlmalloc. The engine coalesces across
// chunk boundaries, so a single lock around each call is the only safe
// granularity.
type Global struct {
	mu sync.Mutex
	d  *Dlmalloc
}

// NewGlobal creates a locked allocator over p.
func NewGlobal(p sysmem.Provider, opts *Options) *Global {
	return &Global{d: New(p, opts)}
}

var defaultGlobal = sync.OnceValue(func() *Global {
	return NewGlobal(sysmem.NewOS(), nil)
})

// Default returns the process-wide allocator over OS memory, creating it on
// first use.
func Default() *Global { return defaultGlobal() }

func (g *Global) Malloc(size, align uintptr) uintptr {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.Malloc(size, align)
}

func (g *Global) Calloc(size, align uintptr) uintptr {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.Calloc(size, align)
}

func (g *Global) Free(ptr, size, align uintptr) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.d.Free(ptr, size, align)
}

func (g *Global) Realloc(ptr, oldSize, oldAlign, newSize uintptr) uintptr {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.Realloc(ptr, oldSize, oldAlign, newSize)
}

func (g *Global) Alloc(l Layout) (uintptr, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.Alloc(l)
}

func (g *Global) AllocZeroed(l Layout) (uintptr, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.AllocZeroed(l)
}

func (g *Global) Dealloc(ptr uintptr, l Layout) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.d.Dealloc(ptr, l)
}

func (g *Global) Grow(ptr uintptr, l Layout, newSize uintptr) (uintptr, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.Grow(ptr, l, newSize)
}

func (g *Global) Trim(pad uintptr) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.Trim(pad)
}

// Stats returns the engine counters.
func (g *Global) Stats() alloc.Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.e.GetStats()
}

// Info walks the heap and summarizes it.
func (g *Global) Info() alloc.Info {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.e.Info()
}

// With runs fn while holding the lock, for inspection that needs a stable
// heap.
func (g *Global) With(fn func(d *Dlmalloc)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g.d)
}
