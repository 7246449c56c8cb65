package main

import (
	"math/rand/v2"

	"github.com/cockroachdb/errors"

	"github.com/joshuapare/dlmalloc/pkg/dlmalloc"
	"github.com/joshuapare/dlmalloc/verify"
)

// block is a live allocation owned by a workload or a trace.
type block struct {
	ptr   uintptr
	size  uintptr
	align uintptr
	tag   byte
}

func (b block) fill() {
	buf := dlmalloc.Bytes(b.ptr, b.size)
	for i := range buf {
		buf[i] = b.tag
	}
}

// intact checks the first and last payload byte against the block's tag.
func (b block) intact() error {
	if b.size == 0 {
		return nil
	}
	buf := dlmalloc.Bytes(b.ptr, b.size)
	if buf[0] != b.tag || buf[len(buf)-1] != b.tag {
		return errors.Newf("block %#x (%d bytes) was overwritten", b.ptr, b.size)
	}
	return nil
}

// workload drives random malloc, free and realloc traffic.
type workload struct {
	Ops        int
	Seed       uint64
	MaxSize    uintptr
	MaxLive    int
	AlignedPct int
	CheckEvery int
	Drain      bool
}

// workloadResult counts what a run did.
type workloadResult struct {
	Ops       int     `json:"ops"`
	Mallocs   int     `json:"mallocs"`
	Frees     int     `json:"frees"`
	Reallocs  int     `json:"reallocs"`
	Failures  int     `json:"failures"`
	Checks    int     `json:"checks"`
	Live      int     `json:"live"`
	LiveBytes uintptr `json:"liveBytes"`
}

func (w workload) size(r *rand.Rand) uintptr {
	var n uintptr
	switch x := r.IntN(100); {
	case x < 70:
		n = uintptr(1 + r.IntN(256))
	case x < 95:
		n = uintptr(1 + r.IntN(4096))
	default:
		n = uintptr(1 + r.Uint64N(uint64(max(w.MaxSize, 1))))
	}
	return min(n, max(w.MaxSize, 1))
}

func (w workload) align(r *rand.Rand) uintptr {
	if r.IntN(100) >= w.AlignedPct {
		return 8
	}
	return uintptr(1) << (5 + r.IntN(8))
}

// run executes the workload against d. Blocks still live at the end are
// freed only when Drain is set.
func (w workload) run(d *dlmalloc.Dlmalloc) (workloadResult, error) {
	var res workloadResult
	r := rand.New(rand.NewPCG(w.Seed, w.Seed^0x9e3779b97f4a7c15))
	live := make([]block, 0, w.MaxLive)

	for i := range w.Ops {
		res.Ops++
		op := r.IntN(10)
		switch {
		case len(live) == 0 || (op < 5 && len(live) < w.MaxLive):
			b := block{size: w.size(r), align: w.align(r), tag: byte(i)}
			b.ptr = d.Malloc(b.size, b.align)
			res.Mallocs++
			if b.ptr == 0 {
				res.Failures++
				continue
			}
			b.fill()
			live = append(live, b)

		case op < 8:
			j := r.IntN(len(live))
			b := live[j]
			if err := b.intact(); err != nil {
				return res, errors.Wrapf(err, "op %d", i)
			}
			d.Free(b.ptr, b.size, b.align)
			res.Frees++
			live[j] = live[len(live)-1]
			live = live[:len(live)-1]

		default:
			j := r.IntN(len(live))
			b := live[j]
			if err := b.intact(); err != nil {
				return res, errors.Wrapf(err, "op %d", i)
			}
			newSize := w.size(r)
			p := d.Realloc(b.ptr, b.size, b.align, newSize)
			res.Reallocs++
			if p == 0 {
				res.Failures++
				continue
			}
			kept := block{ptr: p, size: min(b.size, newSize), tag: b.tag}
			if err := kept.intact(); err != nil {
				return res, errors.Wrapf(err, "op %d: realloc lost contents", i)
			}
			b.ptr, b.size, b.tag = p, newSize, byte(i)
			b.fill()
			live[j] = b
		}

		if w.CheckEvery > 0 && (i+1)%w.CheckEvery == 0 {
			res.Checks++
			if err := verify.Heap(d.Engine()); err != nil {
				return res, errors.Wrapf(err, "op %d", i)
			}
		}
	}

	if w.Drain {
		for _, b := range live {
			if err := b.intact(); err != nil {
				return res, err
			}
			d.Free(b.ptr, b.size, b.align)
			res.Frees++
		}
		live = live[:0]
		d.Trim(0)
	}
	for _, b := range live {
		res.LiveBytes += b.size
	}
	res.Live = len(live)
	return res, nil
}
