package alloc

import "math/bits"

// Tree bins
//
// Chunks of MinLargeSize bytes and up live in 32 bitwise tries. Tree bin i
// covers half of a power-of-two range: bins 2k and 2k+1 split
// [256<<k, 512<<k). Inside a bin, each level of the trie branches on the next
// bit of the size below the bin's leading bits, so the leftmost path always
// leads towards smaller sizes. Chunks of equal size hang off a single trie
// node in a circular fd/bk ring; only the node itself has trie links.
//
// Trie words live inside the free chunk right after fd/bk:
//
//	mem+2w child[0]   mem+3w child[1]   mem+4w parent   mem+5w bin index
//
// parent is 0 for ring members that are not trie nodes and treeRootParent for
// the root of a bin.

const treeRootParent = chunk(1)

func (p chunk) child(i uintptr) chunk       { return chunk(load(uintptr(p) + (4+i)*wordSize)) }
func (p chunk) setChild(i uintptr, c chunk) { store(uintptr(p)+(4+i)*wordSize, uintptr(c)) }
func (p chunk) parent() chunk               { return chunk(load(uintptr(p) + 6*wordSize)) }
func (p chunk) setParent(c chunk)           { store(uintptr(p)+6*wordSize, uintptr(c)) }
func (p chunk) treeIndex() uint32           { return uint32(load(uintptr(p) + 7*wordSize)) }
func (p chunk) setTreeIndex(i uint32)       { store(uintptr(p)+7*wordSize, uintptr(i)) }

// leftmostChild returns child[0] if present, else child[1].
func (p chunk) leftmostChild() chunk {
	if c := p.child(0); c != 0 {
		return c
	}
	return p.child(1)
}

// computeTreeIndex returns the tree bin for chunk size s.
func computeTreeIndex(s uintptr) uint32 {
	x := s >> treeBinShift
	switch {
	case x == 0:
		return 0
	case x > 0xFFFF:
		return nTreeBins - 1
	}
	k := uint32(bits.Len(uint(x))) - 1
	return k<<1 + uint32((s>>(uintptr(k)+(treeBinShift-1)))&1)
}

// leftShiftForTreeIndex aligns the first undecided size bit of bin i with the
// top bit of a word.
func leftShiftForTreeIndex(i uint32) uintptr {
	if i == nTreeBins-1 {
		return 0
	}
	return wordBits - 1 - (uintptr(i>>1) + treeBinShift - 2)
}

// minSizeForTreeIndex returns the smallest chunk size stored in bin i.
func minSizeForTreeIndex(i uint32) uintptr {
	shift := uintptr(i>>1) + treeBinShift
	return uintptr(1)<<shift | uintptr(i&1)<<(shift-1)
}

func (e *Engine) treeMapIsMarked(i uint32) bool { return e.treeMap&idxToBit(i) != 0 }
func (e *Engine) markTreeMap(i uint32)          { e.treeMap |= idxToBit(i) }
func (e *Engine) clearTreeMap(i uint32)         { e.treeMap &^= idxToBit(i) }

// insertLargeChunk adds the free chunk x of size s to its tree bin.
func (e *Engine) insertLargeChunk(x chunk, s uintptr) {
	i := computeTreeIndex(s)
	x.setTreeIndex(i)
	x.setChild(0, 0)
	x.setChild(1, 0)
	e.stats.BinInserts++

	if !e.treeMapIsMarked(i) {
		e.markTreeMap(i)
		e.treeBins[i] = x
		x.setParent(treeRootParent)
		x.setFd(x)
		x.setBk(x)
		return
	}

	t := e.treeBins[i]
	k := s << leftShiftForTreeIndex(i)
	for {
		if t.size() != s {
			dir := (k >> (wordBits - 1)) & 1
			k <<= 1
			if c := t.child(dir); c != 0 {
				t = c
				continue
			}
			t.setChild(dir, x)
			x.setParent(t)
			x.setFd(x)
			x.setBk(x)
			return
		}

		// Same size: join t's ring right after t.
		f := t.fd()
		if f.bk() != t {
			e.corruption("tree bin %d: broken ring at %#x", i, uintptr(t))
		}
		t.setFd(x)
		f.setBk(x)
		x.setFd(f)
		x.setBk(t)
		x.setParent(0)
		return
	}
}

// unlinkLargeChunk removes x from its tree bin. When x is a trie node with a
// ring, a ring member takes its place; otherwise its rightmost-deepest
// descendant does.
func (e *Engine) unlinkLargeChunk(x chunk) {
	xp := x.parent()
	var r chunk
	e.stats.BinRemoves++

	if x.bk() != x {
		f := x.fd()
		r = x.bk()
		if f.bk() != x || r.fd() != x {
			e.corruption("tree ring: broken links around %#x", uintptr(x))
		}
		f.setBk(r)
		r.setFd(f)
	} else {
		// Find the replacement leaf and detach it.
		var rp chunk
		var rpDir uintptr
		if r = x.child(1); r != 0 {
			rp, rpDir = x, 1
		} else if r = x.child(0); r != 0 {
			rp, rpDir = x, 0
		}
		if r != 0 {
			for {
				if c := r.child(1); c != 0 {
					rp, rpDir, r = r, 1, c
				} else if c := r.child(0); c != 0 {
					rp, rpDir, r = r, 0, c
				} else {
					break
				}
			}
			rp.setChild(rpDir, 0)
		}
	}

	if xp == 0 {
		// Ring member that never was a trie node.
		return
	}

	i := x.treeIndex()
	if xp == treeRootParent {
		if e.treeBins[i] != x {
			e.corruption("tree bin %d: root marker on non-root %#x", i, uintptr(x))
		}
		e.treeBins[i] = r
		if r == 0 {
			e.clearTreeMap(i)
		}
	} else {
		switch x {
		case xp.child(0):
			xp.setChild(0, r)
		case xp.child(1):
			xp.setChild(1, r)
		default:
			e.corruption("tree bin %d: %#x missing from parent %#x", i, uintptr(x), uintptr(xp))
		}
	}

	if r != 0 {
		r.setParent(xp)
		r.setTreeIndex(i)
		// x's children may have changed above when r came from its subtree.
		if c0 := x.child(0); c0 != 0 {
			r.setChild(0, c0)
			c0.setParent(r)
		} else {
			r.setChild(0, 0)
		}
		if c1 := x.child(1); c1 != 0 {
			r.setChild(1, c1)
			c1.setParent(r)
		} else {
			r.setChild(1, 0)
		}
	}
}

// tmallocSmall serves a small request nb from the smallest tree bin. Any
// chunk there is larger than nb, so only the leftmost path is searched.
func (e *Engine) tmallocSmall(nb uintptr) uintptr {
	i := bitIndex(leastBit(e.treeMap))
	v := e.treeBins[i]
	rsize := v.size() - nb

	for t := v.leftmostChild(); t != 0; t = t.leftmostChild() {
		if trem := t.size() - nb; trem < rsize {
			rsize = trem
			v = t
		}
	}

	e.unlinkLargeChunk(v)
	e.splitAndRebin(v, rsize+nb, nb)
	return v.mem()
}

// tmallocLarge returns the smallest tree chunk of at least nb bytes, split to
// size, or 0 when no tree bin holds one.
func (e *Engine) tmallocLarge(nb uintptr) uintptr {
	var v chunk
	rsize := -nb // larger than any real remainder
	idx := computeTreeIndex(nb)

	t := e.treeBins[idx]
	if t != 0 {
		// Walk down the path nb's bits select, remembering the deepest
		// right subtree we skipped. Its least chunk is the next best fit.
		sizeBits := nb << leftShiftForTreeIndex(idx)
		var rst chunk
		for {
			if trem := t.size() - nb; trem < rsize {
				v = t
				rsize = trem
				if rsize == 0 {
					break
				}
			}
			rt := t.child(1)
			t = t.child((sizeBits >> (wordBits - 1)) & 1)
			if rt != 0 && rt != t {
				rst = rt
			}
			if t == 0 {
				t = rst
				break
			}
			sizeBits <<= 1
		}
	}

	if t == 0 && v == 0 {
		// Nothing in this bin. Take the least chunk of the next non-empty one.
		if left := leftBits(idxToBit(idx)) & e.treeMap; left != 0 {
			t = e.treeBins[bitIndex(leastBit(left))]
		}
	}

	for ; t != 0; t = t.leftmostChild() {
		if trem := t.size() - nb; trem < rsize {
			rsize = trem
			v = t
		}
	}

	if v == 0 {
		return 0
	}
	e.unlinkLargeChunk(v)
	e.splitAndRebin(v, rsize+nb, nb)
	return v.mem()
}
