package main

import (
	"math/rand/v2"

	"github.com/joshuapare/dlmalloc/pkg/dlmalloc"
)

type block struct {
	ptr   uintptr
	size  uintptr
	align uintptr
}

// driver feeds a seeded stream of requests into an allocator one step at a
// time, so the map can be watched as it fragments and recovers.
type driver struct {
	seed     uint64
	r        *rand.Rand
	live     []block
	maxLive  int
	maxSize  uintptr
	ops      int
	failures int
}

func newDriver(seed uint64, maxLive int, maxSize uintptr) *driver {
	d := &driver{seed: seed, maxLive: maxLive, maxSize: maxSize}
	d.reset()
	return d
}

// reset forgets every live block and restarts the request stream. The
// caller is responsible for releasing the blocks.
func (w *driver) reset() {
	w.r = rand.New(rand.NewPCG(w.seed, w.seed+1))
	w.live = w.live[:0]
	w.ops = 0
	w.failures = 0
}

func (w *driver) size() uintptr {
	if w.r.IntN(20) == 0 {
		return uintptr(1 + w.r.Uint64N(uint64(w.maxSize)))
	}
	return uintptr(1 + w.r.IntN(1024))
}

// step performs n requests. Allocation is favoured until maxLive blocks are
// live.
func (w *driver) step(a dlmalloc.Allocator, n int) {
	for range n {
		w.ops++
		if len(w.live) == 0 || (len(w.live) < w.maxLive && w.r.IntN(3) != 0) {
			b := block{size: w.size(), align: 8}
			if w.r.IntN(10) == 0 {
				b.align = 64
			}
			if b.ptr = a.Malloc(b.size, b.align); b.ptr == 0 {
				w.failures++
				continue
			}
			w.live = append(w.live, b)
			continue
		}

		i := w.r.IntN(len(w.live))
		b := w.live[i]
		if w.r.IntN(4) == 0 {
			newSize := w.size()
			if p := a.Realloc(b.ptr, b.size, b.align, newSize); p != 0 {
				w.live[i] = block{ptr: p, size: newSize, align: b.align}
			} else {
				w.failures++
			}
			continue
		}
		a.Free(b.ptr, b.size, b.align)
		w.live[i] = w.live[len(w.live)-1]
		w.live = w.live[:len(w.live)-1]
	}
}

// freeAll releases every live block.
func (w *driver) freeAll(a dlmalloc.Allocator) {
	for _, b := range w.live {
		a.Free(b.ptr, b.size, b.align)
	}
	w.live = w.live[:0]
}

func (w *driver) liveBytes() uintptr {
	var n uintptr
	for _, b := range w.live {
		n += b.size
	}
	return n
}
