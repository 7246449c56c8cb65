package alloc

import (
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
)

// Direct-mapped chunks
//
// Requests of MmapThreshold bytes and up get a provider region of their own
// once the heap has a top chunk. The chunk starts at the first aligned
// position in the region; its prev_foot holds that offset and its head has
// both in-use bits clear. Two fencepost words follow the chunk so that
// nothing reading past it mistakes the tail for a free neighbour.

type directRegion struct {
	size uintptr
	p    chunk
}

// mapDirect serves nb from a dedicated region.
func (e *Engine) mapDirect(nb uintptr) (uintptr, error) {
	want := e.granularityAlign(nb + 6*wordSize + chunkAlignMask)
	if want == 0 || want <= nb {
		return 0, errors.Wrapf(ErrRequestTooLarge, "direct region for %d bytes", nb)
	}
	base, size, err := e.acquire(want)
	if err != nil {
		return 0, err
	}

	offset := alignOffset(base + 2*wordSize)
	psize := (size - offset - mmapFootPad) &^ chunkAlignMask
	p := chunk(base + offset)
	p.setPrevFoot(offset)
	p.setHead(psize)
	p.plus(psize).setHead(fencepostHead)
	p.plus(psize + wordSize).setHead(0)

	e.direct[base] = directRegion{size: size, p: p}
	e.stats.DirectMaps++
	e.log.Debug("direct region mapped", "base", base, "size", humanize.IBytes(uint64(size)))
	return p.mem(), nil
}

// unmapDirect returns the region of the direct-mapped chunk p.
func (e *Engine) unmapDirect(p chunk) {
	base := uintptr(p) - p.prevFoot()
	r, ok := e.direct[base]
	if !ok || r.p != p {
		e.corruption("chunk %#x claims a direct region at %#x that is not mapped", uintptr(p), base)
	}
	if err := e.release(base, r.size); err != nil {
		// The region stays recorded so Close can retry.
		return
	}
	delete(e.direct, base)
	e.stats.DirectUnmaps++
	e.log.Debug("direct region unmapped", "base", base, "size", humanize.IBytes(uint64(r.size)))
}

// resizeDirect reports whether the direct-mapped chunk p can hold nb bytes
// without wasting more than two granularity units.
func (e *Engine) resizeDirect(p chunk, nb uintptr) bool {
	if isSmall(nb) {
		return false
	}
	oldSize := p.size()
	return oldSize >= nb+wordSize && oldSize-nb <= 2*e.cfg.Granularity
}
