package alloc

import "github.com/cockroachdb/errors"

// Stats holds operation counters for testing and instrumentation.
type Stats struct {
	MallocCalls    int // Malloc and Calloc calls
	FreeCalls      int // Free calls with a non-nil address
	ReallocCalls   int // Realloc calls that resized an existing chunk
	ReallocInPlace int // Reallocs served without moving
	MemalignCalls  int // Memalign calls above MallocAlignment

	BinInserts       int // Free chunks added to a bin
	BinRemoves       int // Free chunks taken out of a bin
	SplitCount       int // Chunks split with a remainder kept free
	CoalesceForward  int // Merges with a free successor
	CoalesceBackward int // Merges with a free predecessor
	TopCarves        int // Requests served from the top chunk
	TopMerges        int // Frees absorbed by the top chunk

	SegmentAcquires int // Segments obtained from the provider
	SegmentReleases int // Segments returned to the provider
	DirectMaps      int // Direct-mapped chunks created
	DirectUnmaps    int // Direct-mapped chunks released

	TrimCalls     int    // Trim invocations, automatic ones included
	PurgedBytes   uint64 // Bytes purged from the top chunk
	BytesAcquired uint64 // Total bytes obtained from the provider
	BytesReleased uint64 // Total bytes returned to the provider
}

// GetStats returns a copy of the engine counters.
func (e *Engine) GetStats() Stats {
	return e.stats
}

// Info summarizes the heap at one point in time.
type Info struct {
	Footprint     uintptr // Bytes held from the provider
	MaxFootprint  uintptr // Peak of Footprint
	Segments      int     // Segments held
	DirectRegions int     // Direct-mapped regions held
	DirectBytes   uintptr // Bytes in direct-mapped regions
	FreeChunks    int     // Free chunks, top included
	FreeBytes     uintptr // Bytes in free chunks, top included
	InUseBytes    uintptr // Bytes in in-use chunks, direct ones included
	TopBytes      uintptr // Size of the top chunk (releasable by Trim)
}

// Info walks the heap and returns its summary.
func (e *Engine) Info() Info {
	info := Info{
		Footprint:     e.footprint,
		MaxFootprint:  e.maxFootprint,
		Segments:      e.nSegs,
		DirectRegions: len(e.direct),
		TopBytes:      e.topSize,
	}
	for _, r := range e.direct {
		info.DirectBytes += r.size
	}
	_ = e.Walk(func(c ChunkInfo) bool {
		switch {
		case c.Kind == KindFence:
		case c.InUse:
			info.InUseBytes += c.Size
		default:
			info.FreeChunks++
			info.FreeBytes += c.Size
		}
		return true
	})
	return info
}

// Close returns every segment and direct-mapped region to the provider and
// leaves the engine empty and reusable. Addresses handed out earlier become
// invalid. With a provider that cannot release, Close does nothing.
func (e *Engine) Close() error {
	if !e.sys.CanRelease() {
		return nil
	}
	var errs error
	for base, r := range e.direct {
		if err := e.release(base, r.size); err != nil {
			errs = errors.CombineErrors(errs, err)
			continue
		}
		delete(e.direct, base)
		e.stats.DirectUnmaps++
	}
	for s := e.segments; s != nil; {
		next := s.next
		if err := e.releaseSegment(s); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
		s = next
	}
	e.smallMap, e.treeMap = 0, 0
	e.smallBins = [nSmallBins]chunk{}
	e.treeBins = [nTreeBins]chunk{}
	e.clearTop()
	e.trimCheck = e.cfg.TrimThreshold
	return errs
}
