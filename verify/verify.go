package verify

import (
	"fmt"

	"github.com/joshuapare/dlmalloc/alloc"
)

// ValidationError describes the first invariant found broken.
type ValidationError struct {
	Type    string
	Message string
	Addr    uintptr
	Details map[string]any
}

func (e *ValidationError) Error() string {
	if e.Addr != 0 {
		return fmt.Sprintf("%s at 0x%X: %s", e.Type, e.Addr, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Heap snapshots e and validates all invariants.
func Heap(e *alloc.Engine) error {
	snap, err := e.Snapshot()
	if err != nil {
		return &ValidationError{Type: "Snapshot", Message: err.Error()}
	}
	return AllInvariants(snap)
}

// AllInvariants validates all heap invariants in one call.
// Returns the first error encountered, or nil if all checks pass.
func AllInvariants(s *alloc.Snapshot) error {
	checks := []func(*alloc.Snapshot) error{
		Layout,
		Flags,
		Coalesced,
		Top,
		Bins,
		Trees,
		Footprint,
	}
	for _, check := range checks {
		if err := check(s); err != nil {
			return err
		}
	}
	return nil
}

// Layout validates that the chunks of every segment are aligned and tile the
// segment from its first chunk up to its fence.
func Layout(s *alloc.Snapshot) error {
	next := make(map[int]uintptr, len(s.Segments))
	for i, seg := range s.Segments {
		if seg.First < seg.Base || seg.Fence >= seg.Base+seg.Size {
			return &ValidationError{
				Type:    "Layout",
				Message: fmt.Sprintf("segment bounds [%#x, %#x) outside region of %d bytes", seg.First, seg.Fence, seg.Size),
				Addr:    seg.Base,
			}
		}
		next[i] = seg.First
	}

	for _, c := range s.Chunks {
		want, ok := next[c.Segment]
		if !ok {
			return &ValidationError{Type: "Layout", Message: "chunk in unknown segment", Addr: c.Addr}
		}
		if c.Addr != want {
			return &ValidationError{
				Type:    "Layout",
				Message: fmt.Sprintf("expected chunk at %#x", want),
				Addr:    c.Addr,
			}
		}
		if c.Kind == alloc.KindFence {
			if c.Addr != s.Segments[c.Segment].Fence {
				return &ValidationError{Type: "Layout", Message: "fence not at segment end", Addr: c.Addr}
			}
			delete(next, c.Segment)
			continue
		}
		if c.Mem()%alloc.MallocAlignment != 0 {
			return &ValidationError{Type: "Layout", Message: "payload not aligned", Addr: c.Addr}
		}
		if c.Size < alloc.MinChunkSize || c.Size%alloc.MallocAlignment != 0 {
			return &ValidationError{
				Type:    "Layout",
				Message: fmt.Sprintf("invalid chunk size %d", c.Size),
				Addr:    c.Addr,
			}
		}
		next[c.Segment] = c.Addr + c.Size
	}

	if len(next) != 0 {
		return &ValidationError{
			Type:    "Layout",
			Message: fmt.Sprintf("%d segments not closed by a fence", len(next)),
		}
	}

	for _, r := range s.Direct {
		if r.Chunk < r.Base || r.Chunk+r.ChunkSize > r.Base+r.Size || r.Chunk-r.Base != r.Offset {
			return &ValidationError{
				Type:    "Layout",
				Message: fmt.Sprintf("direct chunk of %d bytes outside region [%#x, +%d)", r.ChunkSize, r.Base, r.Size),
				Addr:    r.Chunk,
			}
		}
		if r.Chunk%alloc.MallocAlignment != 0 {
			return &ValidationError{Type: "Layout", Message: "direct payload not aligned", Addr: r.Chunk}
		}
	}
	return nil
}

// Flags validates each chunk's PINUSE bit against its predecessor.
func Flags(s *alloc.Snapshot) error {
	prevInUse := true
	seg := -1
	for _, c := range s.Chunks {
		if c.Segment != seg {
			seg = c.Segment
			prevInUse = true
		}
		if c.PrevInUse != prevInUse {
			return &ValidationError{
				Type:    "Flags",
				Message: fmt.Sprintf("PINUSE=%v but predecessor in use=%v", c.PrevInUse, prevInUse),
				Addr:    c.Addr,
				Details: map[string]any{"kind": c.Kind.String()},
			}
		}
		prevInUse = c.InUse
	}
	return nil
}

// Coalesced validates that no two free chunks are adjacent and that every
// free chunk other than top carries a matching footer.
func Coalesced(s *alloc.Snapshot) error {
	for i, c := range s.Chunks {
		if c.InUse {
			continue
		}
		if i > 0 && s.Chunks[i-1].Segment == c.Segment && !s.Chunks[i-1].InUse {
			return &ValidationError{Type: "Coalesced", Message: "adjacent free chunks", Addr: c.Addr}
		}
		if c.Kind != alloc.KindTop && c.Footer != c.Size {
			return &ValidationError{
				Type:    "Coalesced",
				Message: fmt.Sprintf("footer %d does not match size %d", c.Footer, c.Size),
				Addr:    c.Addr,
			}
		}
	}
	return nil
}

// Top validates the top chunk: at most one, at the end of the top segment,
// with the recorded size.
func Top(s *alloc.Snapshot) error {
	var top *alloc.SegmentInfo
	for i := range s.Segments {
		if s.Segments[i].Top {
			if top != nil {
				return &ValidationError{Type: "Top", Message: "more than one top segment"}
			}
			top = &s.Segments[i]
		}
	}
	if top == nil {
		if s.Top != 0 || s.TopSize != 0 {
			return &ValidationError{Type: "Top", Message: "top chunk without a top segment", Addr: s.Top}
		}
		return nil
	}
	if s.TopSize == 0 {
		if s.Top != top.Fence {
			return &ValidationError{Type: "Top", Message: "empty top is not the fence", Addr: s.Top}
		}
		return nil
	}
	if s.Top+s.TopSize != top.Fence {
		return &ValidationError{
			Type:    "Top",
			Message: fmt.Sprintf("top of %d bytes ends at %#x, fence at %#x", s.TopSize, s.Top+s.TopSize, top.Fence),
			Addr:    s.Top,
		}
	}
	for _, c := range s.Chunks {
		if c.Kind == alloc.KindTop && (c.Addr != s.Top || c.Size != s.TopSize || c.InUse) {
			return &ValidationError{Type: "Top", Message: "walked top does not match recorded top", Addr: c.Addr}
		}
	}
	return nil
}

// Bins validates bin contents and bitmaps against the free chunks of the
// heap.
func Bins(s *alloc.Snapshot) error {
	free := make(map[uintptr]uintptr)
	for _, c := range s.Chunks {
		if !c.InUse && c.Kind != alloc.KindTop {
			free[c.Addr] = c.Size
		}
	}
	seen := make(map[uintptr]bool, len(free))

	take := func(kind string, e alloc.BinEntry) error {
		size, ok := free[e.Addr]
		if !ok {
			return &ValidationError{Type: "Bins", Message: kind + " holds a chunk that is not free", Addr: e.Addr}
		}
		if size != e.Size {
			return &ValidationError{Type: "Bins", Message: kind + " entry size mismatch", Addr: e.Addr}
		}
		if seen[e.Addr] {
			return &ValidationError{Type: "Bins", Message: kind + " chunk binned twice", Addr: e.Addr}
		}
		seen[e.Addr] = true
		return nil
	}

	for i, bin := range s.SmallBins {
		if (len(bin) != 0) != (s.SmallMap&(1<<i) != 0) {
			return &ValidationError{Type: "Bins", Message: fmt.Sprintf("small map bit %d disagrees with bin", i)}
		}
		name := fmt.Sprintf("small bin %d", i)
		for _, e := range bin {
			if e.Size != alloc.SmallBinSize(i) {
				return &ValidationError{Type: "Bins", Message: name + " holds wrong size", Addr: e.Addr}
			}
			if err := take(name, e); err != nil {
				return err
			}
		}
	}

	for i, root := range s.TreeBins {
		if (root != nil) != (s.TreeMap&(1<<i) != 0) {
			return &ValidationError{Type: "Bins", Message: fmt.Sprintf("tree map bit %d disagrees with bin", i)}
		}
		name := fmt.Sprintf("tree bin %d", i)
		var walk func(n *alloc.TreeNode) error
		walk = func(n *alloc.TreeNode) error {
			if n == nil {
				return nil
			}
			if err := take(name, alloc.BinEntry{Addr: n.Addr, Size: n.Size}); err != nil {
				return err
			}
			for _, r := range n.Ring {
				if err := take(name, r); err != nil {
					return err
				}
			}
			if err := walk(n.Children[0]); err != nil {
				return err
			}
			return walk(n.Children[1])
		}
		if err := walk(root); err != nil {
			return err
		}
	}

	for addr, size := range free {
		if !seen[addr] {
			return &ValidationError{
				Type:    "Bins",
				Message: fmt.Sprintf("free chunk of %d bytes is not binned", size),
				Addr:    addr,
			}
		}
	}
	return nil
}

// Trees validates tree bin shape: sizes within the bin's range, rings of a
// single size, and every left subtree holding only sizes below its right
// sibling subtree.
func Trees(s *alloc.Snapshot) error {
	for i, root := range s.TreeBins {
		if root == nil {
			continue
		}
		if !root.Root {
			return &ValidationError{Type: "Trees", Message: fmt.Sprintf("tree bin %d root lacks root marker", i), Addr: root.Addr}
		}
		lo, hi := alloc.TreeBinRange(i)
		if _, _, err := checkTree(root, i, lo, hi); err != nil {
			return err
		}
	}
	return nil
}

func checkTree(n *alloc.TreeNode, bin int, lo, hi uintptr) (uintptr, uintptr, error) {
	if n.Index != bin {
		return 0, 0, &ValidationError{Type: "Trees", Message: fmt.Sprintf("node index %d in bin %d", n.Index, bin), Addr: n.Addr}
	}
	if n.Size < lo || (hi != 0 && n.Size >= hi) {
		return 0, 0, &ValidationError{
			Type:    "Trees",
			Message: fmt.Sprintf("size %d outside [%d, %d)", n.Size, lo, hi),
			Addr:    n.Addr,
		}
	}
	for _, r := range n.Ring {
		if r.Size != n.Size {
			return 0, 0, &ValidationError{Type: "Trees", Message: "ring member of different size", Addr: r.Addr}
		}
	}

	minSize, maxSize := n.Size, n.Size
	var bounds [2][2]uintptr
	for d, c := range n.Children {
		if c == nil {
			continue
		}
		cmin, cmax, err := checkTree(c, bin, lo, hi)
		if err != nil {
			return 0, 0, err
		}
		bounds[d] = [2]uintptr{cmin, cmax}
		minSize, maxSize = min(minSize, cmin), max(maxSize, cmax)
	}
	if n.Children[0] != nil && n.Children[1] != nil && bounds[0][1] >= bounds[1][0] {
		return 0, 0, &ValidationError{Type: "Trees", Message: "left subtree not below right subtree", Addr: n.Addr}
	}
	return minSize, maxSize, nil
}

// Footprint validates that held regions add up to the recorded footprint.
func Footprint(s *alloc.Snapshot) error {
	var total uintptr
	for _, seg := range s.Segments {
		total += seg.Size
	}
	for _, r := range s.Direct {
		total += r.Size
	}
	if total != s.Footprint {
		return &ValidationError{
			Type:    "Footprint",
			Message: fmt.Sprintf("regions hold %d bytes, footprint says %d", total, s.Footprint),
		}
	}
	return nil
}
