package alloc

import (
	"github.com/cockroachdb/errors"

	"github.com/joshuapare/dlmalloc/internal/rawmem"
)

// Realloc resizes the allocation at mem to newSize bytes and returns its
// address, which may differ from mem. oldSize is the size the caller
// requested for mem; min(oldSize, newSize) bytes are preserved.
//
// Realloc(0, _, n) is Malloc(n). Realloc(mem, _, 0) frees mem and returns 0.
// On error mem is left untouched.
func (e *Engine) Realloc(mem, oldSize, newSize uintptr) (uintptr, error) {
	if mem == 0 {
		return e.Malloc(newSize)
	}
	if newSize >= maxRequest {
		return 0, errors.Wrapf(ErrRequestTooLarge, "realloc to %d bytes", newSize)
	}
	if newSize == 0 {
		e.Free(mem)
		return 0, nil
	}
	e.stats.ReallocCalls++

	p := fromMem(mem)
	e.checkInuse(p)
	if e.cfg.Debug && oldSize > p.usable() {
		e.corruption("realloc of %#x: old size %d exceeds usable %d", mem, oldSize, p.usable())
	}

	if e.tryReallocChunk(p, requestToSize(newSize)) {
		e.stats.ReallocInPlace++
		if e.cfg.Debug {
			e.checkState()
		}
		return mem, nil
	}

	newMem, err := e.Malloc(newSize)
	if err != nil {
		return 0, err
	}
	rawmem.Copy(newMem, mem, min(oldSize, newSize))
	e.Free(mem)
	return newMem, nil
}

// tryReallocChunk resizes p to nb bytes without moving it: shrinking splits
// off the tail, growing absorbs top or a free successor. Reports success.
func (e *Engine) tryReallocChunk(p chunk, nb uintptr) bool {
	if p.mmapped() {
		return e.resizeDirect(p, nb)
	}

	oldSize := p.size()
	next := p.plus(oldSize)

	switch {
	case oldSize >= nb:
		if rsize := oldSize - nb; rsize >= MinChunkSize {
			r := p.plus(nb)
			p.setInuse(nb)
			r.setInuse(rsize)
			e.stats.SplitCount++
			e.disposeChunk(r, rsize)
		}
		return true

	case next == e.top:
		if e.topSize == 0 || oldSize+e.topSize < nb {
			return false
		}
		newSize := oldSize + e.topSize
		if rem := newSize - nb; rem >= MinChunkSize {
			p.setInuse(nb)
			e.setTop(p.plus(nb), rem)
		} else {
			p.setInuse(newSize)
			e.setTop(e.topSeg.fence, 0)
		}
		e.stats.TopCarves++
		return true

	case !next.cinuse():
		nextSize := next.size()
		if oldSize+nextSize < nb {
			return false
		}
		e.unlinkChunk(next, nextSize)
		newSize := oldSize + nextSize
		if rsize := newSize - nb; rsize < MinChunkSize {
			p.setInuse(newSize)
		} else {
			r := p.plus(nb)
			p.setInuse(nb)
			r.setInuse(rsize)
			e.stats.SplitCount++
			e.disposeChunk(r, rsize)
		}
		return true
	}
	return false
}
