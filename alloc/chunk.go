package alloc

import (
	"unsafe"

	"github.com/joshuapare/dlmalloc/internal/align"
)

// Chunk layout
//
// Every chunk starts with two machine words:
//
//	chunk -> +------------------------------------------+
//	         | prev_foot: size of previous chunk,       |
//	         |   valid only when that chunk is free     |
//	         +------------------------------------------+
//	         | head: size | CINUSE | PINUSE             |
//	mem   -> +------------------------------------------+
//	         | payload (in use) or links (free)         |
//	         .                                          .
//	next  -> +------------------------------------------+
//	         | prev_foot of next = our size when free   |
//
// A free chunk stores fd/bk list links at mem, and tree chunks additionally
// store child[0], child[1], parent and the bin index. None of these words are
// read once the chunk is handed out. The word at next->prev_foot is payload
// while the chunk is in use and becomes the footer when it is freed.
//
// Sizes are multiples of MallocAlignment, so the low three bits of head are
// free for flags. A chunk with both in-use bits clear is a direct-mapped
// chunk; its prev_foot holds the offset back to the start of its region.

const (
	wordSize = unsafe.Sizeof(uintptr(0))
	wordBits = wordSize * 8

	// MallocAlignment is the alignment of every pointer returned by the engine.
	MallocAlignment = 2 * wordSize

	chunkAlignMask = MallocAlignment - 1

	// chunkOverhead is the per-chunk cost of an in-use chunk: its head word.
	chunkOverhead = wordSize

	// Direct-mapped chunks lose prev_foot to the alignment offset and carry a
	// trailing fencepost pair.
	mmapChunkOverhead = 2 * wordSize
	mmapFootPad       = 4 * wordSize

	// chunkStructSize covers prev_foot, head, fd and bk.
	chunkStructSize = 4 * wordSize

	// MinChunkSize is the smallest chunk the engine ever creates.
	MinChunkSize = (chunkStructSize + chunkAlignMask) &^ chunkAlignMask

	minRequest = MinChunkSize - chunkOverhead - 1

	// maxRequest is the largest request whose padded size still fits a uintptr.
	maxRequest = ^uintptr(0) - 4*MinChunkSize + 1

	// fenceSize is the in-use pseudo chunk closing every segment.
	fenceSize = 2 * wordSize
)

// Bits packed into the low end of head.
const (
	pinuseBit = uintptr(1)
	cinuseBit = uintptr(2)
	flag4Bit  = uintptr(4)
	inuseBits = pinuseBit | cinuseBit
	flagBits  = pinuseBit | cinuseBit | flag4Bit

	// fencepostHead marks the trailing words of a direct-mapped region.
	fencepostHead = inuseBits | wordSize
)

// chunk is the address of a chunk header.
type chunk uintptr

func load(addr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(addr))
}

func store(addr, v uintptr) {
	*(*uintptr)(unsafe.Pointer(addr)) = v
}

func (p chunk) prevFoot() uintptr     { return load(uintptr(p)) }
func (p chunk) setPrevFoot(v uintptr) { store(uintptr(p), v) }
func (p chunk) head() uintptr         { return load(uintptr(p) + wordSize) }
func (p chunk) setHead(v uintptr)     { store(uintptr(p)+wordSize, v) }

func (p chunk) size() uintptr { return p.head() &^ flagBits }
func (p chunk) cinuse() bool  { return p.head()&cinuseBit != 0 }
func (p chunk) pinuse() bool  { return p.head()&pinuseBit != 0 }
func (p chunk) inuse() bool   { return p.head()&inuseBits != pinuseBit }

// mmapped reports whether p is a direct-mapped chunk.
func (p chunk) mmapped() bool { return p.head()&inuseBits == 0 }

func (p chunk) clearPinuse() { p.setHead(p.head() &^ pinuseBit) }

func (p chunk) plus(off uintptr) chunk  { return chunk(uintptr(p) + off) }
func (p chunk) minus(off uintptr) chunk { return chunk(uintptr(p) - off) }

// next returns the chunk physically after p.
func (p chunk) next() chunk { return p.plus(p.size()) }

// prev returns the chunk physically before p. Only valid when !p.pinuse().
func (p chunk) prev() chunk { return p.minus(p.prevFoot()) }

// mem returns the payload address of p.
func (p chunk) mem() uintptr { return uintptr(p) + 2*wordSize }

// fromMem recovers the chunk header from a payload address.
func fromMem(mem uintptr) chunk { return chunk(mem - 2*wordSize) }

// Free-list links.
func (p chunk) fd() chunk     { return chunk(load(uintptr(p) + 2*wordSize)) }
func (p chunk) bk() chunk     { return chunk(load(uintptr(p) + 3*wordSize)) }
func (p chunk) setFd(c chunk) { store(uintptr(p)+2*wordSize, uintptr(c)) }
func (p chunk) setBk(c chunk) { store(uintptr(p)+3*wordSize, uintptr(c)) }

// setFoot writes s into the prev_foot of the chunk s bytes after p.
func (p chunk) setFoot(s uintptr) { p.plus(s).setPrevFoot(s) }

// setSizeAndPinuseOfFreeChunk marks p as a free chunk of size s with an
// in-use predecessor and writes its footer.
func (p chunk) setSizeAndPinuseOfFreeChunk(s uintptr) {
	p.setHead(s | pinuseBit)
	p.setFoot(s)
}

// setFreeWithPinuse frees p (size s) in front of the in-use chunk n.
func (p chunk) setFreeWithPinuse(s uintptr, n chunk) {
	n.clearPinuse()
	p.setSizeAndPinuseOfFreeChunk(s)
}

// setInuse marks p in use with size s, keeping its PINUSE bit, and records
// the fact in the successor.
func (p chunk) setInuse(s uintptr) {
	p.setHead(p.head()&pinuseBit | s | cinuseBit)
	n := p.plus(s)
	n.setHead(n.head() | pinuseBit)
}

// setInuseAndPinuse marks p in use with an in-use predecessor and records the
// fact in the successor.
func (p chunk) setInuseAndPinuse(s uintptr) {
	p.setHead(s | pinuseBit | cinuseBit)
	n := p.plus(s)
	n.setHead(n.head() | pinuseBit)
}

// setSizeAndPinuseOfInuseChunk marks p in use without touching the successor.
// Used when a free remainder is written right after p.
func (p chunk) setSizeAndPinuseOfInuseChunk(s uintptr) {
	p.setHead(s | pinuseBit | cinuseBit)
}

// split carves an in-use chunk of size nb from the free chunk p of size s and
// returns the remainder, or 0 when the remainder would be too small to reuse
// and p was handed out whole.
func (p chunk) split(s, nb uintptr) (rem chunk, remSize uintptr) {
	remSize = s - nb
	if remSize < MinChunkSize {
		p.setInuseAndPinuse(s)
		return 0, 0
	}
	p.setSizeAndPinuseOfInuseChunk(nb)
	rem = p.plus(nb)
	rem.setSizeAndPinuseOfFreeChunk(remSize)
	return rem, remSize
}

// overheadFor returns the bookkeeping bytes of an in-use chunk.
func (p chunk) overheadFor() uintptr {
	if p.mmapped() {
		return mmapChunkOverhead
	}
	return chunkOverhead
}

// usable returns the payload bytes of an in-use chunk.
func (p chunk) usable() uintptr {
	return p.size() - p.overheadFor()
}

// padRequest converts a request size to a chunk size without the minimum.
func padRequest(req uintptr) uintptr {
	return (req + chunkOverhead + chunkAlignMask) &^ chunkAlignMask
}

// requestToSize converts a user request into a usable chunk size.
func requestToSize(req uintptr) uintptr {
	if req < minRequest {
		return MinChunkSize
	}
	return padRequest(req)
}

// alignOffset returns the padding needed to make a payload at addr aligned.
func alignOffset(addr uintptr) uintptr {
	return align.Offset(addr, MallocAlignment)
}

// isAligned reports whether a payload address is MallocAlignment aligned.
func isAligned(mem uintptr) bool {
	return align.IsAligned(mem, MallocAlignment)
}
