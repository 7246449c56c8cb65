package alloc

import "math/bits"

// Small bins
//
// Bin i holds free chunks of exactly i<<smallBinShift bytes. Each bin is a
// circular doubly linked list threaded through the chunks' fd/bk words; the
// engine keeps only the head. smallMap bit i is set iff bin i is non-empty.
//
// With 16-byte alignment only even bins are ever populated.

const (
	nSmallBins    = 32
	smallBinShift = 3

	nTreeBins    = 32
	treeBinShift = 8

	// MinLargeSize is the smallest chunk size indexed by the tree bins.
	MinLargeSize = uintptr(1) << treeBinShift

	maxSmallSize    = MinLargeSize - 1
	maxSmallRequest = maxSmallSize - chunkAlignMask - chunkOverhead
)

func isSmall(s uintptr) bool { return s>>smallBinShift < nSmallBins }

func smallIndex(s uintptr) uint32 { return uint32(s >> smallBinShift) }

func smallIndexToSize(i uint32) uintptr { return uintptr(i) << smallBinShift }

func idxToBit(i uint32) uint32 { return 1 << i }

func leastBit(x uint32) uint32 { return x & -x }

// leftBits returns the mask of all bits strictly above the lowest set bit of x.
func leftBits(x uint32) uint32 { return (x << 1) | -(x << 1) }

func bitIndex(x uint32) uint32 { return uint32(bits.TrailingZeros32(x)) }

func (e *Engine) smallMapIsMarked(i uint32) bool { return e.smallMap&idxToBit(i) != 0 }
func (e *Engine) markSmallMap(i uint32)          { e.smallMap |= idxToBit(i) }
func (e *Engine) clearSmallMap(i uint32)         { e.smallMap &^= idxToBit(i) }

// insertSmallChunk links p (size s) at the head of its bin so the most
// recently freed chunk is reused first.
func (e *Engine) insertSmallChunk(p chunk, s uintptr) {
	i := smallIndex(s)
	h := e.smallBins[i]
	if h == 0 {
		e.markSmallMap(i)
		p.setFd(p)
		p.setBk(p)
	} else {
		if !e.smallMapIsMarked(i) {
			e.corruption("small bin %d has head %#x but its map bit is clear", i, uintptr(h))
		}
		last := h.bk()
		p.setFd(h)
		p.setBk(last)
		last.setFd(p)
		h.setBk(p)
	}
	e.smallBins[i] = p
	e.stats.BinInserts++
}

// unlinkSmallChunk removes p (size s) from its bin.
func (e *Engine) unlinkSmallChunk(p chunk, s uintptr) {
	i := smallIndex(s)
	f, b := p.fd(), p.bk()
	if f.bk() != p || b.fd() != p {
		e.corruption("small bin %d: broken links around %#x", i, uintptr(p))
	}
	if f == p {
		e.smallBins[i] = 0
		e.clearSmallMap(i)
	} else {
		f.setBk(b)
		b.setFd(f)
		if e.smallBins[i] == p {
			e.smallBins[i] = f
		}
	}
	e.stats.BinRemoves++
}

// popSmallBin unlinks and returns the head of non-empty bin i.
func (e *Engine) popSmallBin(i uint32) chunk {
	p := e.smallBins[i]
	if p == 0 {
		e.corruption("small bin %d marked but empty", i)
	}
	e.unlinkSmallChunk(p, smallIndexToSize(i))
	return p
}

// insertChunk places a free chunk in the bin its size maps to.
func (e *Engine) insertChunk(p chunk, s uintptr) {
	if isSmall(s) {
		e.insertSmallChunk(p, s)
	} else {
		e.insertLargeChunk(p, s)
	}
}

// unlinkChunk removes a binned free chunk of size s.
func (e *Engine) unlinkChunk(p chunk, s uintptr) {
	if isSmall(s) {
		e.unlinkSmallChunk(p, s)
	} else {
		e.unlinkLargeChunk(p)
	}
}
