package alloc

import (
	"slices"

	"github.com/cockroachdb/errors"
)

// Exported geometry for inspection tools.
const (
	NumSmallBins = nSmallBins
	NumTreeBins  = nTreeBins
)

// SmallBinSize returns the chunk size held by small bin i.
func SmallBinSize(i int) uintptr { return smallIndexToSize(uint32(i)) }

// TreeBinRange returns the chunk sizes [lo, hi) held by tree bin i. hi is 0
// for the last bin, which is unbounded.
func TreeBinRange(i int) (lo, hi uintptr) {
	lo = minSizeForTreeIndex(uint32(i))
	if i+1 < nTreeBins {
		hi = minSizeForTreeIndex(uint32(i + 1))
	}
	return lo, hi
}

// ChunkKind classifies chunks reported by Walk.
type ChunkKind uint8

const (
	KindChunk  ChunkKind = iota // Ordinary chunk inside a segment
	KindTop                     // The top chunk
	KindFence                   // Segment fence
	KindDirect                  // Direct-mapped chunk
)

func (k ChunkKind) String() string {
	switch k {
	case KindChunk:
		return "chunk"
	case KindTop:
		return "top"
	case KindFence:
		return "fence"
	case KindDirect:
		return "direct"
	}
	return "unknown"
}

// ChunkInfo describes one chunk as found in memory.
type ChunkInfo struct {
	Addr      uintptr
	Size      uintptr
	Kind      ChunkKind
	InUse     bool
	PrevInUse bool
	// Footer is the prev_foot word of the next chunk. Only meaningful for
	// free chunks.
	Footer uintptr
	// Segment is the index of the containing segment in Snapshot order, or
	// -1 for direct chunks.
	Segment int
}

// Mem returns the payload address of the chunk.
func (c ChunkInfo) Mem() uintptr { return c.Addr + 2*wordSize }

// Walk calls fn for every chunk of every segment in address order within each
// segment (newest segment first), including each segment's fence, and then
// for every direct-mapped chunk. It stops early when fn returns false.
//
// A chunk size that does not land on the segment fence ends the walk with an
// error marked ErrCorrupted.
func (e *Engine) Walk(fn func(ChunkInfo) bool) error {
	idx := 0
	for s := e.segments; s != nil; s = s.next {
		p := s.first
		for p != s.fence {
			size := p.size()
			if size < MinChunkSize || uintptr(p)+size > uintptr(s.fence) || uintptr(p)+size < uintptr(p) {
				return errors.Mark(errors.Newf("chunk %#x in segment %#x has size %d past the fence", uintptr(p), s.base, size), ErrCorrupted)
			}
			c := ChunkInfo{
				Addr:      uintptr(p),
				Size:      size,
				InUse:     p.cinuse(),
				PrevInUse: p.pinuse(),
				Segment:   idx,
			}
			if p == e.top && e.topSize != 0 {
				c.Kind = KindTop
			}
			if !c.InUse {
				c.Footer = p.plus(size).prevFoot()
			}
			if !fn(c) {
				return nil
			}
			p = p.plus(size)
		}
		if !p.isFence() {
			return errors.Mark(errors.Newf("segment %#x: bad fence at %#x", s.base, uintptr(p)), ErrCorrupted)
		}
		if !fn(ChunkInfo{
			Addr:      uintptr(p),
			Size:      fenceSize,
			Kind:      KindFence,
			InUse:     true,
			PrevInUse: p.pinuse(),
			Segment:   idx,
		}) {
			return nil
		}
		idx++
	}

	bases := make([]uintptr, 0, len(e.direct))
	for base := range e.direct {
		bases = append(bases, base)
	}
	slices.Sort(bases)
	for _, base := range bases {
		p := e.direct[base].p
		if !fn(ChunkInfo{
			Addr:      uintptr(p),
			Size:      p.size(),
			Kind:      KindDirect,
			InUse:     true,
			PrevInUse: p.pinuse(),
			Segment:   -1,
		}) {
			return nil
		}
	}
	return nil
}

// SegmentInfo describes one segment.
type SegmentInfo struct {
	Base  uintptr
	Size  uintptr
	First uintptr
	Fence uintptr
	Top   bool
}

// RegionInfo describes one direct-mapped region and its chunk.
type RegionInfo struct {
	Base      uintptr
	Size      uintptr
	Chunk     uintptr
	ChunkSize uintptr
	// Offset is the chunk's recorded distance from Base.
	Offset uintptr
}

// BinEntry is a chunk found on a bin.
type BinEntry struct {
	Addr uintptr
	Size uintptr
}

// TreeNode is one node of a tree bin trie. Ring holds the other chunks of the
// same size chained off the node.
type TreeNode struct {
	Addr     uintptr
	Size     uintptr
	Index    int
	Root     bool
	Ring     []BinEntry
	Children [2]*TreeNode
}

// Snapshot is a copy of the engine bookkeeping for external validation.
type Snapshot struct {
	Segments  []SegmentInfo
	Chunks    []ChunkInfo
	Direct    []RegionInfo
	SmallMap  uint32
	TreeMap   uint32
	SmallBins [NumSmallBins][]BinEntry
	TreeBins  [NumTreeBins]*TreeNode
	Top       uintptr
	TopSize   uintptr
	Footprint uintptr
}

// Snapshot captures the heap layout and bins. Bin lists are cut off after as
// many entries as there are chunks, so cyclic corruption ends in an error
// rather than a hang.
func (e *Engine) Snapshot() (*Snapshot, error) {
	snap := &Snapshot{
		SmallMap:  e.smallMap,
		TreeMap:   e.treeMap,
		Top:       uintptr(e.top),
		TopSize:   e.topSize,
		Footprint: e.footprint,
	}
	for s := e.segments; s != nil; s = s.next {
		snap.Segments = append(snap.Segments, SegmentInfo{
			Base:  s.base,
			Size:  s.size,
			First: uintptr(s.first),
			Fence: uintptr(s.fence),
			Top:   s == e.topSeg,
		})
	}
	err := e.Walk(func(c ChunkInfo) bool {
		if c.Kind == KindDirect {
			p := chunk(c.Addr)
			base := c.Addr - p.prevFoot()
			snap.Direct = append(snap.Direct, RegionInfo{
				Base:      base,
				Size:      e.direct[base].size,
				Chunk:     c.Addr,
				ChunkSize: c.Size,
				Offset:    p.prevFoot(),
			})
			return true
		}
		snap.Chunks = append(snap.Chunks, c)
		return true
	})
	if err != nil {
		return snap, err
	}

	budget := len(snap.Chunks) + 1
	for i := range nSmallBins {
		h := e.smallBins[i]
		if h == 0 {
			continue
		}
		p := h
		for {
			if budget == 0 {
				return snap, errors.Mark(errors.Newf("small bin %d does not close", i), ErrCorrupted)
			}
			budget--
			snap.SmallBins[i] = append(snap.SmallBins[i], BinEntry{Addr: uintptr(p), Size: p.size()})
			p = p.fd()
			if p == h {
				break
			}
		}
	}
	for i := range nTreeBins {
		if t := e.treeBins[i]; t != 0 {
			node, err := snapTree(t, &budget)
			if err != nil {
				return snap, err
			}
			snap.TreeBins[i] = node
		}
	}
	return snap, nil
}

func snapTree(t chunk, budget *int) (*TreeNode, error) {
	if *budget == 0 {
		return nil, errors.Mark(errors.Newf("tree at %#x does not end", uintptr(t)), ErrCorrupted)
	}
	*budget--
	n := &TreeNode{
		Addr:  uintptr(t),
		Size:  t.size(),
		Index: int(t.treeIndex()),
		Root:  t.parent() == treeRootParent,
	}
	for r := t.fd(); r != t; r = r.fd() {
		if *budget == 0 {
			return nil, errors.Mark(errors.Newf("ring at %#x does not close", uintptr(t)), ErrCorrupted)
		}
		*budget--
		n.Ring = append(n.Ring, BinEntry{Addr: uintptr(r), Size: r.size()})
	}
	for i := range uintptr(2) {
		if c := t.child(i); c != 0 {
			if c.parent() != t {
				return nil, errors.Mark(errors.Newf("tree node %#x: child %#x has parent %#x", uintptr(t), uintptr(c), uintptr(c.parent())), ErrCorrupted)
			}
			child, err := snapTree(c, budget)
			if err != nil {
				return nil, err
			}
			n.Children[i] = child
		}
	}
	return n, nil
}
