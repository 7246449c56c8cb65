package alloc

import (
	"fmt"
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/joshuapare/dlmalloc/internal/rawmem"
	"github.com/joshuapare/dlmalloc/sysmem"
)

// Engine is a chunk allocator over regions obtained from a Provider.
//
// Free chunks below MinLargeSize sit in exact-size small bins, larger ones in
// bitwise tries. The trailing free space of the newest segment is the top
// chunk, which is carved when no bin fits and is never binned itself.
//
// Engine is not safe for concurrent use.
type Engine struct {
	sys    Provider
	purger sysmem.Purger // nil when the provider cannot purge
	cfg    Config
	log    *slog.Logger

	smallMap  uint32
	treeMap   uint32
	smallBins [nSmallBins]chunk
	treeBins  [nTreeBins]chunk

	// top is the top chunk. When the top segment has no trailing free space
	// top is that segment's fence and topSize is 0. Both are 0 when there is
	// no top segment.
	top     chunk
	topSize uintptr
	topSeg  *segment

	// segments lists every segment, newest first.
	segments *segment
	nSegs    int

	// direct records each direct-mapped region by base address.
	direct map[uintptr]directRegion

	footprint    uintptr
	maxFootprint uintptr

	// trimCheck is the top size that triggers an automatic trim.
	trimCheck uintptr

	stats Stats
}

// New creates an engine drawing memory from p.
//
// Parameters:
//   - p: backing memory provider
//   - cfg: tuning (use nil for DefaultConfig)
func New(p Provider, cfg *Config) *Engine {
	if p == nil {
		panic("alloc: nil provider")
	}
	if cfg == nil {
		cfg = &DefaultConfig
	}
	c := cfg.normalize(p.PageSize())

	e := &Engine{
		sys:       p,
		cfg:       c,
		log:       newLogger(c),
		direct:    make(map[uintptr]directRegion),
		trimCheck: c.TrimThreshold,
	}
	if pg, ok := p.(sysmem.Purger); ok {
		e.purger = pg
	}
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Footprint returns the bytes currently held from the provider.
func (e *Engine) Footprint() uintptr { return e.footprint }

// MaxFootprint returns the largest footprint seen so far.
func (e *Engine) MaxFootprint() uintptr { return e.maxFootprint }

// Malloc returns the address of at least size usable bytes aligned to
// MallocAlignment. Malloc(0) returns a minimum-sized chunk.
func (e *Engine) Malloc(size uintptr) (uintptr, error) {
	e.stats.MallocCalls++
	if size >= maxRequest {
		return 0, errors.Wrapf(ErrRequestTooLarge, "malloc %d bytes", size)
	}
	mem, err := e.malloc(requestToSize(size), size <= maxSmallRequest)
	if err != nil {
		return 0, err
	}
	if e.cfg.Debug {
		e.checkMallocedChunk(mem, requestToSize(size))
		e.checkState()
	}
	return mem, nil
}

// malloc serves a chunk of size nb: small bins, then tree bins, then top,
// then a new region.
func (e *Engine) malloc(nb uintptr, small bool) (uintptr, error) {
	if small {
		idx := smallIndex(nb)
		smallBits := e.smallMap >> idx

		if smallBits&0x3 != 0 {
			// Exact fit, or the next bin up. Neither leaves a remainder worth
			// keeping.
			idx += ^smallBits & 1
			p := e.popSmallBin(idx)
			p.setInuseAndPinuse(smallIndexToSize(idx))
			return p.mem(), nil
		}

		if smallBits != 0 {
			leftBitsMap := (smallBits << idx) & leftBits(idxToBit(idx))
			i := bitIndex(leastBit(leftBitsMap))
			p := e.popSmallBin(i)
			e.splitAndRebin(p, smallIndexToSize(i), nb)
			return p.mem(), nil
		}

		if e.treeMap != 0 {
			if mem := e.tmallocSmall(nb); mem != 0 {
				return mem, nil
			}
		}
	} else if e.treeMap != 0 {
		if mem := e.tmallocLarge(nb); mem != 0 {
			return mem, nil
		}
	}

	if e.topSize != 0 && nb <= e.topSize {
		return e.carveTop(nb).mem(), nil
	}

	return e.sysAlloc(nb)
}

// splitAndRebin hands out nb bytes of the free, unbinned chunk p of size s
// and bins the remainder.
func (e *Engine) splitAndRebin(p chunk, s, nb uintptr) {
	if rem, remSize := p.split(s, nb); rem != 0 {
		e.stats.SplitCount++
		e.insertChunk(rem, remSize)
	}
}

// carveTop takes nb bytes from the start of the top chunk. A remainder too
// small to be a chunk is handed out with it.
func (e *Engine) carveTop(nb uintptr) chunk {
	p := e.top
	e.stats.TopCarves++
	remSize := e.topSize - nb
	if remSize < MinChunkSize {
		p.setInuseAndPinuse(e.topSize)
		e.setTop(e.topSeg.fence, 0)
		return p
	}
	p.setSizeAndPinuseOfInuseChunk(nb)
	e.setTop(p.plus(nb), remSize)
	return p
}

// setTop installs p (size s) as the top chunk of the top segment. s == 0
// means p is the fence and the segment has no trailing free space.
func (e *Engine) setTop(p chunk, s uintptr) {
	e.top = p
	e.topSize = s
	fence := e.topSeg.fence
	if s == 0 {
		fence.setHead(fenceSize | cinuseBit | pinuseBit)
		return
	}
	p.setHead(s | pinuseBit)
	fence.setPrevFoot(s)
	fence.setHead(fenceSize | cinuseBit)
}

// clearTop forgets the top segment after it was released.
func (e *Engine) clearTop() {
	e.top = 0
	e.topSize = 0
	e.topSeg = nil
}

// Free returns the chunk at mem to the engine. Free(0) is a no-op.
//
// mem must come from this engine and must not already be free. Only cheap
// link checks are made otherwise.
func (e *Engine) Free(mem uintptr) {
	if mem == 0 {
		return
	}
	e.stats.FreeCalls++
	p := fromMem(mem)
	e.checkInuse(p)

	if p.mmapped() {
		e.unmapDirect(p)
	} else {
		e.disposeChunk(p, p.size())
	}
	if e.cfg.Debug {
		e.checkState()
	}
}

// disposeChunk frees the in-use chunk p of size psize: it coalesces with free
// neighbours, merges into top when adjacent, and bins or releases the result.
func (e *Engine) disposeChunk(p chunk, psize uintptr) {
	next := p.plus(psize)

	if !p.pinuse() {
		prevSize := p.prevFoot()
		prev := p.minus(prevSize)
		if prev.cinuse() || prev.size() != prevSize {
			e.corruption("chunk %#x: footer %d does not match free predecessor", uintptr(p), prevSize)
		}
		e.unlinkChunk(prev, prevSize)
		p = prev
		psize += prevSize
		e.stats.CoalesceBackward++
	}

	if next == e.top {
		e.setTop(p, e.topSize+psize)
		e.stats.TopMerges++
		if e.topSize > e.trimCheck {
			e.autoTrim()
		}
		return
	}

	if !next.pinuse() {
		e.corruption("chunk %#x: successor %#x does not record it in use", uintptr(p), uintptr(next))
	}
	if !next.cinuse() {
		nsize := next.size()
		e.unlinkChunk(next, nsize)
		psize += nsize
		p.setSizeAndPinuseOfFreeChunk(psize)
		e.stats.CoalesceForward++
	} else {
		p.setFreeWithPinuse(psize, next)
	}

	if e.releaseIfEmptySegment(p, psize) {
		return
	}
	e.insertChunk(p, psize)
}

// Calloc is Malloc followed by zeroing where CallocMustClear requires it.
func (e *Engine) Calloc(size uintptr) (uintptr, error) {
	mem, err := e.Malloc(size)
	if err != nil {
		return 0, err
	}
	if e.CallocMustClear(mem) {
		rawmem.Zero(mem, fromMem(mem).usable())
	}
	return mem, nil
}

// CallocMustClear reports whether the chunk at mem may hold stale data.
// Only a direct-mapped chunk from a provider that hands out zeroed regions
// is known to be clean.
func (e *Engine) CallocMustClear(mem uintptr) bool {
	return !fromMem(mem).mmapped() || !e.sys.AllocatesZeros()
}

// UsableSize returns the number of bytes usable at mem, which is at least
// the size originally requested. UsableSize(0) is 0.
func (e *Engine) UsableSize(mem uintptr) uintptr {
	if mem == 0 {
		return 0
	}
	p := fromMem(mem)
	if !p.inuse() {
		return 0
	}
	return p.usable()
}

// checkInuse panics when p is plainly not an allocated chunk.
func (e *Engine) checkInuse(p chunk) {
	if !isAligned(p.mem()) {
		e.corruption("address %#x is not a chunk payload", p.mem())
	}
	if !p.inuse() {
		e.corruption("chunk %#x is not in use (double free?)", uintptr(p))
	}
}

// corruption aborts the current operation. Continuing would spread the damage
// to other chunks.
func (e *Engine) corruption(format string, args ...any) {
	err := errors.Mark(errors.AssertionFailedf(format, args...), ErrCorrupted)
	e.log.Error("heap corruption", "err", fmt.Sprint(err))
	panic(err)
}
