package alloc

import (
	"github.com/cockroachdb/errors"

	"github.com/joshuapare/dlmalloc/internal/align"
)

// Memalign returns size bytes whose address is a multiple of alignment.
// Alignments that are not a power of two are rounded up to one; alignments
// up to MallocAlignment behave like Malloc.
//
// The chunk is carved from an over-sized allocation and the slack on either
// side goes back through the free path, so the result is freed with Free.
func (e *Engine) Memalign(alignment, size uintptr) (uintptr, error) {
	if alignment <= MallocAlignment {
		return e.Malloc(size)
	}
	e.stats.MemalignCalls++
	if alignment < MinChunkSize {
		alignment = MinChunkSize
	}
	if !align.IsPow2(alignment) {
		alignment = align.NextPow2(alignment)
		if alignment == 0 {
			return 0, errors.Wrapf(ErrRequestTooLarge, "alignment for %d bytes", size)
		}
	}
	if size >= maxRequest-alignment {
		return 0, errors.Wrapf(ErrRequestTooLarge, "memalign %d bytes at %d", size, alignment)
	}

	nb := requestToSize(size)
	req := nb + alignment + MinChunkSize - chunkOverhead
	mem, err := e.malloc(requestToSize(req), req <= maxSmallRequest)
	if err != nil {
		return 0, err
	}

	p := fromMem(mem)
	if !align.IsAligned(mem, alignment) {
		// Find an aligned spot at least MinChunkSize in, so the leader can be
		// freed as a chunk of its own.
		br := fromMem(align.Up(mem, alignment))
		pos := br
		if uintptr(br)-uintptr(p) < MinChunkSize {
			pos = br.plus(alignment)
		}
		lead := uintptr(pos) - uintptr(p)
		newSize := p.size() - lead

		if p.mmapped() {
			base := uintptr(p) - p.prevFoot()
			pos.setPrevFoot(p.prevFoot() + lead)
			pos.setHead(newSize)
			e.direct[base] = directRegion{size: e.direct[base].size, p: pos}
		} else {
			pos.setInuse(newSize)
			p.setInuse(lead)
			e.disposeChunk(p, lead)
		}
		p = pos
	}

	if !p.mmapped() {
		if s := p.size(); s > nb+MinChunkSize {
			rem := p.plus(nb)
			p.setInuse(nb)
			rem.setInuse(s - nb)
			e.stats.SplitCount++
			e.disposeChunk(rem, s-nb)
		}
	}

	if e.cfg.Debug {
		e.checkMallocedChunk(p.mem(), nb)
		e.checkState()
	}
	return p.mem(), nil
}
