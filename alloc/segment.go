package alloc

import (
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"

	"github.com/joshuapare/dlmalloc/internal/align"
)

// segment records one provider region carved into chunks.
//
//	base   first                               fence     base+size
//	 |pad|  chunk | chunk | ... | top chunk   | fence |pad|
//
// The fence is a 2-word pseudo chunk marked in use, so no walk or coalesce
// ever steps past it.
type segment struct {
	base  uintptr
	size  uintptr
	first chunk
	fence chunk
	next  *segment
}

// span returns the bytes between the first chunk and the fence.
func (s *segment) span() uintptr { return uintptr(s.fence) - uintptr(s.first) }

func (s *segment) contains(addr uintptr) bool {
	return addr >= s.base && addr < s.base+s.size
}

const fenceHead = fenceSize | cinuseBit

// isFence reports whether p looks like a segment fence. No real chunk is as
// small as fenceSize.
func (p chunk) isFence() bool { return p.head()&^pinuseBit == fenceHead }

// granularityAlign rounds n up to the segment granularity, or returns 0 on
// overflow.
func (e *Engine) granularityAlign(n uintptr) uintptr {
	r := align.Up(n, e.cfg.Granularity)
	if r < n {
		return 0
	}
	return r
}

// acquire obtains at least size bytes from the provider, enforcing the
// footprint limit.
func (e *Engine) acquire(size uintptr) (uintptr, uintptr, error) {
	limit := e.cfg.FootprintLimit
	if limit != 0 && (size > limit || e.footprint > limit-size) {
		return 0, 0, errors.Wrapf(ErrOutOfMemory, "footprint limit %s reached", humanize.IBytes(uint64(limit)))
	}

	base, got, err := e.sys.Acquire(size)
	if err != nil {
		e.log.Warn("provider acquire failed", "size", size, "err", err)
		return 0, 0, errors.Mark(errors.Wrapf(err, "alloc: acquire %d bytes", size), ErrOutOfMemory)
	}
	if got < size || (limit != 0 && e.footprint+got > limit) {
		if err := e.sys.Release(base, got); err != nil {
			e.log.Warn("provider release failed", "base", base, "size", got, "err", err)
		}
		return 0, 0, errors.Wrapf(ErrOutOfMemory, "provider returned %d bytes for a %d byte request", got, size)
	}

	e.footprint += got
	if e.footprint > e.maxFootprint {
		e.maxFootprint = e.footprint
	}
	e.stats.BytesAcquired += uint64(got)
	return base, got, nil
}

// release returns a region to the provider and drops it from the footprint.
func (e *Engine) release(base, size uintptr) error {
	if err := e.sys.Release(base, size); err != nil {
		e.log.Warn("provider release failed", "base", base, "size", size, "err", err)
		return errors.Wrapf(err, "alloc: release %d bytes at %#x", size, base)
	}
	e.footprint -= size
	e.stats.BytesReleased += uint64(size)
	return nil
}

// sysAlloc serves nb when no bin and no top space fits: either from a
// dedicated region or from a fresh segment that becomes the new top. The first
// segment of an empty heap is never a dedicated region.
func (e *Engine) sysAlloc(nb uintptr) (uintptr, error) {
	if nb >= e.cfg.MmapThreshold && e.segments != nil && e.sys.CanRelease() {
		if mem, err := e.mapDirect(nb); err == nil {
			return mem, nil
		} else if !errors.Is(err, ErrRequestTooLarge) {
			return 0, err
		}
	}

	// Room for the fence and for aligning the first chunk.
	want := e.granularityAlign(nb + fenceSize + 2*MallocAlignment)
	if want == 0 || want < nb {
		return 0, errors.Wrapf(ErrRequestTooLarge, "segment for %d bytes", nb)
	}
	base, size, err := e.acquire(want)
	if err != nil {
		return 0, err
	}

	if _, err := e.addSegment(base, size); err != nil {
		return 0, err
	}
	return e.carveTop(nb).mem(), nil
}

// addSegment lays out a new region and makes it the top segment. The old top
// chunk becomes an ordinary free chunk.
func (e *Engine) addSegment(base, size uintptr) (*segment, error) {
	first := chunk(base + alignOffset(base+2*wordSize))
	if uintptr(first)+MinChunkSize+fenceSize > base+size {
		_ = e.release(base, size)
		return nil, errors.Wrapf(ErrOutOfMemory, "region of %d bytes too small for a segment", size)
	}
	span := (base + size - fenceSize - uintptr(first)) &^ chunkAlignMask
	seg := &segment{
		base:  base,
		size:  size,
		first: first,
		fence: first.plus(span),
	}
	seg.fence.setHead(fenceHead | pinuseBit)

	e.retireTop()

	seg.next = e.segments
	e.segments = seg
	e.nSegs++
	e.topSeg = seg
	e.setTop(first, span)
	e.trimCheck = e.cfg.TrimThreshold
	e.stats.SegmentAcquires++

	e.log.Debug("segment acquired",
		"base", base,
		"size", humanize.IBytes(uint64(size)),
		"segments", e.nSegs)
	return seg, nil
}

// retireTop bins the current top chunk ahead of a new segment taking over.
// A top that spans its whole segment is released instead when possible.
func (e *Engine) retireTop() {
	if e.topSeg == nil {
		return
	}
	old, p, s := e.topSeg, e.top, e.topSize
	e.clearTop()
	if s == 0 {
		return
	}
	p.setSizeAndPinuseOfFreeChunk(s)
	if p == old.first && e.sys.CanRelease() && e.releaseSegment(old) == nil {
		return
	}
	e.insertChunk(p, s)
}

// releaseIfEmptySegment releases the segment whose only chunk is the free,
// unbinned chunk p. Reports whether it did.
func (e *Engine) releaseIfEmptySegment(p chunk, psize uintptr) bool {
	next := p.plus(psize)
	if !next.isFence() || !e.sys.CanRelease() {
		return false
	}
	seg := e.segmentOf(uintptr(p))
	if seg == nil || seg == e.topSeg || seg.first != p || seg.fence != next {
		return false
	}
	return e.releaseSegment(seg) == nil
}

// segmentOf returns the segment containing addr, or nil.
func (e *Engine) segmentOf(addr uintptr) *segment {
	for s := e.segments; s != nil; s = s.next {
		if s.contains(addr) {
			return s
		}
	}
	return nil
}

// releaseSegment unlinks seg and returns it to the provider. Its chunks must
// all be free and unbinned.
func (e *Engine) releaseSegment(seg *segment) error {
	if err := e.release(seg.base, seg.size); err != nil {
		return err
	}
	for pp := &e.segments; *pp != nil; pp = &(*pp).next {
		if *pp == seg {
			*pp = seg.next
			break
		}
	}
	e.nSegs--
	if seg == e.topSeg {
		e.clearTop()
	}
	e.stats.SegmentReleases++
	e.log.Debug("segment released",
		"base", seg.base,
		"size", humanize.IBytes(uint64(seg.size)),
		"segments", e.nSegs)
	return nil
}
