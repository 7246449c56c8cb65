package alloc

import (
	"github.com/dustin/go-humanize"

	"github.com/joshuapare/dlmalloc/internal/align"
)

// Trim gives memory back to the provider: segments that are entirely free,
// the top segment when its top chunk spans all of it and pad is 0, and
// otherwise whole pages of the top chunk beyond its first pad bytes when the
// provider can purge. Reports whether anything was returned.
func (e *Engine) Trim(pad uintptr) bool {
	e.stats.TrimCalls++
	released := e.releaseUnusedSegments() > 0

	if e.topSeg != nil && e.topSize != 0 && e.sys.CanRelease() &&
		pad == 0 && e.top == e.topSeg.first {
		if e.releaseSegment(e.topSeg) == nil {
			return true
		}
	}

	if e.purgeTop(pad) {
		released = true
	}
	if e.cfg.Debug {
		e.checkState()
	}
	return released
}

// autoTrim runs after a free grew top past trimCheck. When the top segment
// survives, automatic trimming stays off until a new segment is added.
func (e *Engine) autoTrim() {
	e.log.Debug("automatic trim", "top", humanize.IBytes(uint64(e.topSize)))
	e.Trim(0)
	e.trimCheck = ^uintptr(0)
}

// releaseUnusedSegments releases every non-top segment holding a single free
// chunk and returns how many it released.
func (e *Engine) releaseUnusedSegments() int {
	if !e.sys.CanRelease() {
		return 0
	}
	n := 0
	for s := e.segments; s != nil; {
		next := s.next
		p := s.first
		if s != e.topSeg && !p.cinuse() && p.next() == s.fence {
			size := p.size()
			e.unlinkChunk(p, size)
			if e.releaseSegment(s) == nil {
				n++
			} else {
				e.insertChunk(p, size)
			}
		}
		s = next
	}
	return n
}

// purgeTop hands the pages of the top chunk beyond pad back to the OS while
// keeping the address range. The chunk header and fence stay resident.
func (e *Engine) purgeTop(pad uintptr) bool {
	if e.purger == nil || e.topSize == 0 {
		return false
	}
	page := e.sys.PageSize()
	start := align.Up(e.top.mem()+2*wordSize+pad, page)
	end := align.Down(uintptr(e.topSeg.fence), page)
	if start < e.top.mem() || end <= start {
		return false
	}
	if err := e.purger.Purge(start, end-start); err != nil {
		e.log.Warn("purge failed", "addr", start, "size", end-start, "err", err)
		return false
	}
	e.stats.PurgedBytes += uint64(end - start)
	e.log.Debug("top purged", "size", humanize.IBytes(uint64(end-start)))
	return true
}
