package alloc_test

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/dlmalloc/alloc"
	"github.com/joshuapare/dlmalloc/internal/rawmem"
	"github.com/joshuapare/dlmalloc/sysmem"
	"github.com/joshuapare/dlmalloc/verify"
)

type liveBlock struct {
	mem  uintptr
	size uintptr
	seed byte
}

func fill(b liveBlock) {
	buf := rawmem.Bytes(b.mem, b.size)
	for i := range buf {
		buf[i] = b.seed ^ byte(i)
	}
}

func intact(b liveBlock) bool {
	buf := rawmem.Bytes(b.mem, b.size)
	for i := range buf {
		if buf[i] != b.seed^byte(i) {
			return false
		}
	}
	return true
}

// randomSize favours small requests but reaches the tree bins and, rarely,
// the direct-mapping threshold.
func randomSize(r *rand.Rand) uintptr {
	switch n := r.IntN(100); {
	case n < 60:
		return uintptr(r.IntN(256))
	case n < 95:
		return uintptr(256 + r.IntN(16<<10))
	default:
		return uintptr(200<<10 + r.IntN(200<<10))
	}
}

func Test_Engine_RandomOperations(t *testing.T) {
	steps := 4000
	if testing.Short() {
		steps = 500
	}

	for _, seed := range []uint64{1, 7, 42} {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			r := rand.New(rand.NewPCG(seed, seed*31))
			lim := sysmem.NewLimit(sysmem.NewOS(), 0)
			e := alloc.New(lim, &alloc.Config{TrimThreshold: 256 << 10})
			defer func() { require.NoError(t, e.Close()) }()

			var live []liveBlock
			overlaps := func(mem uintptr) bool {
				end := mem + e.UsableSize(mem)
				for _, b := range live {
					if mem < b.mem+e.UsableSize(b.mem) && b.mem < end {
						return true
					}
				}
				return false
			}
			add := func(mem, size uintptr) {
				require.NotZero(t, mem)
				require.Zero(t, mem%alloc.MallocAlignment)
				require.GreaterOrEqual(t, e.UsableSize(mem), size)
				require.False(t, overlaps(mem), "block %#x overlaps a live block", mem)
				b := liveBlock{mem: mem, size: size, seed: byte(r.Uint32())}
				fill(b)
				live = append(live, b)
			}
			remove := func(i int) liveBlock {
				b := live[i]
				live[i] = live[len(live)-1]
				live = live[:len(live)-1]
				require.True(t, intact(b), "block %#x of %d bytes was overwritten", b.mem, b.size)
				return b
			}

			for step := range steps {
				switch op := r.IntN(10); {
				case op < 3 || len(live) == 0:
					size := randomSize(r)
					mem, err := e.Malloc(size)
					require.NoError(t, err)
					add(mem, size)

				case op < 7:
					b := remove(r.IntN(len(live)))
					e.Free(b.mem)

				case op < 8:
					b := remove(r.IntN(len(live)))
					size := max(randomSize(r), 1)
					mem, err := e.Realloc(b.mem, b.size, size)
					require.NoError(t, err)
					kept := liveBlock{mem: mem, size: min(b.size, size), seed: b.seed}
					require.True(t, intact(kept), "realloc lost data")
					add(mem, size)

				case op < 9:
					alignment := uintptr(1) << r.IntN(14)
					size := randomSize(r)
					mem, err := e.Memalign(alignment, size)
					require.NoError(t, err)
					require.Zero(t, mem%alignment)
					add(mem, size)

				default:
					size := uintptr(r.IntN(4096))
					mem, err := e.Calloc(size)
					require.NoError(t, err)
					require.True(t, rawmem.IsZero(mem, size))
					add(mem, size)
				}

				if step%10 == 0 || testing.Short() {
					require.NoError(t, verify.Heap(e), "step %d", step)
				}
			}

			for len(live) > 0 {
				b := remove(len(live) - 1)
				e.Free(b.mem)
			}
			require.NoError(t, verify.Heap(e))
			require.Zero(t, e.Info().InUseBytes, "everything freed")

			e.Trim(0)
			require.Zero(t, e.Info().Segments, "all segments returned")
			require.Zero(t, lim.Stats().Held)
		})
	}
}
