package alloc

// Debug checks. Run after every public operation when Config.Debug or
// DLMALLOC_DEBUG is set; any failure panics through corruption.

// checkMallocedChunk validates a chunk just handed out for a request of nb
// bytes.
func (e *Engine) checkMallocedChunk(mem, nb uintptr) {
	if mem == 0 {
		return
	}
	p := fromMem(mem)
	if !isAligned(mem) {
		e.corruption("malloc returned misaligned %#x", mem)
	}
	if !p.inuse() {
		e.corruption("malloc returned chunk %#x not marked in use", uintptr(p))
	}
	s := p.size()
	if s < nb {
		e.corruption("chunk %#x: size %d below request %d", uintptr(p), s, nb)
	}
	if !p.mmapped() {
		if s&chunkAlignMask != 0 {
			e.corruption("chunk %#x: unaligned size %d", uintptr(p), s)
		}
		if s > nb+MinChunkSize {
			e.corruption("chunk %#x: size %d leaves a splittable tail for %d", uintptr(p), s, nb)
		}
		if !p.next().pinuse() {
			e.corruption("chunk %#x: successor lost its PINUSE bit", uintptr(p))
		}
	}
}

// checkState runs the whole-heap consistency check.
func (e *Engine) checkState() {
	for i := uint32(0); i < nSmallBins; i++ {
		e.checkSmallBin(i)
	}
	for i := uint32(0); i < nTreeBins; i++ {
		e.checkTreeBin(i)
	}
	e.checkTop()

	for s := e.segments; s != nil; s = s.next {
		prevFree := false
		for p := s.first; p != s.fence; p = p.next() {
			size := p.size()
			if size < MinChunkSize || uintptr(p)+size > uintptr(s.fence) {
				e.corruption("segment %#x: chunk %#x size %d overruns the fence", s.base, uintptr(p), size)
			}
			if p.pinuse() == prevFree {
				e.corruption("chunk %#x: PINUSE bit disagrees with predecessor", uintptr(p))
			}
			if p.cinuse() {
				prevFree = false
				continue
			}
			if prevFree {
				e.corruption("chunk %#x: adjacent free chunks", uintptr(p))
			}
			prevFree = true
			if p == e.top {
				continue
			}
			if p.plus(size).prevFoot() != size {
				e.corruption("free chunk %#x: footer does not match size %d", uintptr(p), size)
			}
			if !e.binContains(p, size) {
				e.corruption("free chunk %#x of size %d is not binned", uintptr(p), size)
			}
		}
		if !s.fence.isFence() {
			e.corruption("segment %#x: fence at %#x overwritten", s.base, uintptr(s.fence))
		}
		if s.fence.pinuse() == prevFree {
			e.corruption("segment %#x: fence PINUSE bit disagrees with predecessor", s.base)
		}
	}
}

func (e *Engine) checkSmallBin(i uint32) {
	h := e.smallBins[i]
	if (h == 0) == e.smallMapIsMarked(i) {
		e.corruption("small bin %d: map bit does not match contents", i)
	}
	if h == 0 {
		return
	}
	p := h
	for {
		if p.size() != smallIndexToSize(i) || p.cinuse() {
			e.corruption("small bin %d: chunk %#x has size %d", i, uintptr(p), p.size())
		}
		if p.fd().bk() != p || p.bk().fd() != p {
			e.corruption("small bin %d: broken links at %#x", i, uintptr(p))
		}
		if !p.next().cinuse() {
			e.corruption("small bin %d: chunk %#x not coalesced", i, uintptr(p))
		}
		p = p.fd()
		if p == h {
			return
		}
	}
}

func (e *Engine) checkTreeBin(i uint32) {
	t := e.treeBins[i]
	if (t == 0) == e.treeMapIsMarked(i) {
		e.corruption("tree bin %d: map bit does not match contents", i)
	}
	if t == 0 {
		return
	}
	if t.parent() != treeRootParent {
		e.corruption("tree bin %d: root %#x lacks root marker", i, uintptr(t))
	}
	e.checkTree(t, i)
}

// checkTree validates the subtree at t and returns its size bounds.
func (e *Engine) checkTree(t chunk, i uint32) (lo, hi uintptr) {
	s := t.size()
	if t.treeIndex() != i {
		e.corruption("tree node %#x: index %d in bin %d", uintptr(t), t.treeIndex(), i)
	}
	if s < minSizeForTreeIndex(i) || (i+1 < nTreeBins && s >= minSizeForTreeIndex(i+1)) {
		e.corruption("tree node %#x: size %d outside bin %d", uintptr(t), s, i)
	}
	for r := t.fd(); r != t; r = r.fd() {
		if r.size() != s || r.cinuse() || r.parent() != 0 {
			e.corruption("tree ring at %#x: member %#x inconsistent", uintptr(t), uintptr(r))
		}
		if r.fd().bk() != r {
			e.corruption("tree ring at %#x: broken links at %#x", uintptr(t), uintptr(r))
		}
	}

	lo, hi = s, s
	var bounds [2][2]uintptr
	for d := range uintptr(2) {
		c := t.child(d)
		if c == 0 {
			continue
		}
		if c.parent() != t {
			e.corruption("tree node %#x: child %#x points elsewhere", uintptr(t), uintptr(c))
		}
		clo, chi := e.checkTree(c, i)
		bounds[d] = [2]uintptr{clo, chi}
		lo, hi = min(lo, clo), max(hi, chi)
	}
	if t.child(0) != 0 && t.child(1) != 0 && bounds[0][1] >= bounds[1][0] {
		e.corruption("tree node %#x: left subtree overlaps right subtree", uintptr(t))
	}
	return lo, hi
}

func (e *Engine) checkTop() {
	if e.topSeg == nil {
		if e.top != 0 || e.topSize != 0 {
			e.corruption("top %#x set without a top segment", uintptr(e.top))
		}
		return
	}
	if e.topSize == 0 {
		if e.top != e.topSeg.fence {
			e.corruption("empty top %#x is not the fence", uintptr(e.top))
		}
		return
	}
	if e.top.size() != e.topSize || e.top.plus(e.topSize) != e.topSeg.fence {
		e.corruption("top %#x size %d does not reach the fence", uintptr(e.top), e.topSize)
	}
	if !e.top.pinuse() || e.topSize < MinChunkSize {
		e.corruption("top %#x malformed", uintptr(e.top))
	}
}

// binContains reports whether free chunk p of size s is on its bin.
func (e *Engine) binContains(p chunk, s uintptr) bool {
	if isSmall(s) {
		h := e.smallBins[smallIndex(s)]
		if h == 0 {
			return false
		}
		for q := h; ; {
			if q == p {
				return true
			}
			if q = q.fd(); q == h {
				return false
			}
		}
	}

	i := computeTreeIndex(s)
	t := e.treeBins[i]
	k := s << leftShiftForTreeIndex(i)
	for t != 0 && t.size() != s {
		t = t.child((k >> (wordBits - 1)) & 1)
		k <<= 1
	}
	if t == 0 {
		return false
	}
	for q := t; ; {
		if q == p {
			return true
		}
		if q = q.fd(); q == t {
			return false
		}
	}
}
