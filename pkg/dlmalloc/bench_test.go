package dlmalloc

import (
	"math/rand/v2"
	"testing"

	"github.com/dustin/go-humanize"

	"github.com/joshuapare/dlmalloc/sysmem"
)

// sink keeps baseline allocations on the Go heap.
var sink []byte

// Benchmarks named Benchmark<Op>/<impl>/<size> are paired by
// scripts/benchmark_parser.go: "dlmalloc" against the "gomake" baseline.

func BenchmarkMallocFree(b *testing.B) {
	for _, size := range []uintptr{16, 128, 1024, 16 << 10} {
		name := humanize.IBytes(uint64(size))

		b.Run("dlmalloc/"+name, func(b *testing.B) {
			d := New(sysmem.NewOS(), nil)
			defer d.Close()
			b.ReportAllocs()

			for b.Loop() {
				p := d.Malloc(size, 8)
				d.Free(p, size, 8)
			}
		})

		b.Run("gomake/"+name, func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				sink = make([]byte, size)
			}
		})
	}
}

func BenchmarkMixedSizes(b *testing.B) {
	r := rand.New(rand.NewPCG(1, 2))
	sizes := make([]uintptr, 1024)
	for i := range sizes {
		sizes[i] = uintptr(8 + r.IntN(4096))
	}

	b.Run("dlmalloc/4KiB", func(b *testing.B) {
		d := New(sysmem.NewOS(), nil)
		defer d.Close()
		live := make([]uintptr, 256)
		b.ReportAllocs()

		i := 0
		for b.Loop() {
			slot := i % len(live)
			if live[slot] != 0 {
				d.Free(live[slot], 0, 8)
			}
			live[slot] = d.Malloc(sizes[i%len(sizes)], 8)
			i++
		}
	})

	b.Run("gomake/4KiB", func(b *testing.B) {
		live := make([][]byte, 256)
		b.ReportAllocs()

		i := 0
		for b.Loop() {
			live[i%len(live)] = make([]byte, sizes[i%len(sizes)])
			i++
		}
	})
}

func BenchmarkRealloc(b *testing.B) {
	b.Run("dlmalloc/64KiB", func(b *testing.B) {
		d := New(sysmem.NewOS(), nil)
		defer d.Close()
		b.ReportAllocs()

		for b.Loop() {
			p := d.Malloc(16, 8)
			for n := uintptr(32); n <= 64<<10; n *= 2 {
				p = d.Realloc(p, n/2, 8, n)
			}
			d.Free(p, 64<<10, 8)
		}
	})

	b.Run("gomake/64KiB", func(b *testing.B) {
		b.ReportAllocs()
		for b.Loop() {
			buf := make([]byte, 16)
			for n := 32; n <= 64<<10; n *= 2 {
				buf = append(buf, make([]byte, n-len(buf))...)
			}
			sink = buf
		}
	})
}

func BenchmarkAligned(b *testing.B) {
	d := New(sysmem.NewOS(), nil)
	defer d.Close()
	b.ReportAllocs()

	for b.Loop() {
		p := d.Malloc(256, 256)
		d.Free(p, 256, 256)
	}
}

func BenchmarkGlobalParallel(b *testing.B) {
	g := NewGlobal(sysmem.NewOS(), nil)
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			p := g.Malloc(64, 8)
			g.Free(p, 64, 8)
		}
	})
}
