package alloc

import (
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// WriteReport prints a human-readable summary of the heap and the operation
// counters.
func (e *Engine) WriteReport(w io.Writer) error {
	info := e.Info()
	st := e.stats
	p := message.NewPrinter(language.English)

	size := func(n uintptr) string {
		return fmt.Sprintf("%s (%s)", humanize.IBytes(uint64(n)), p.Sprintf("%d", n))
	}

	lines := []string{
		"=== Heap ===",
		"  Footprint:      " + size(info.Footprint),
		"  Max footprint:  " + size(info.MaxFootprint),
		p.Sprintf("  Segments:       %d", info.Segments),
		p.Sprintf("  Direct regions: %d, %s", info.DirectRegions, humanize.IBytes(uint64(info.DirectBytes))),
		"  In use:         " + size(info.InUseBytes),
		p.Sprintf("  Free:           %s in %d chunks", size(info.FreeBytes), info.FreeChunks),
		"  Top:            " + size(info.TopBytes),
		"",
		"=== Operations ===",
		p.Sprintf("  Malloc: %d  Free: %d  Realloc: %d (%d in place)  Memalign: %d",
			st.MallocCalls, st.FreeCalls, st.ReallocCalls, st.ReallocInPlace, st.MemalignCalls),
		p.Sprintf("  Bin inserts: %d  Bin removes: %d  Splits: %d",
			st.BinInserts, st.BinRemoves, st.SplitCount),
		p.Sprintf("  Coalesce fwd: %d  Coalesce back: %d  Top carves: %d  Top merges: %d",
			st.CoalesceForward, st.CoalesceBackward, st.TopCarves, st.TopMerges),
		p.Sprintf("  Segments acquired: %d  released: %d  Direct maps: %d  unmaps: %d",
			st.SegmentAcquires, st.SegmentReleases, st.DirectMaps, st.DirectUnmaps),
		p.Sprintf("  Trims: %d  Purged: %s", st.TrimCalls, humanize.IBytes(st.PurgedBytes)),
		p.Sprintf("  Acquired: %s  Released: %s",
			humanize.IBytes(st.BytesAcquired), humanize.IBytes(st.BytesReleased)),
	}
	for _, line := range lines {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return errors.Wrap(err, "alloc: write report")
		}
	}
	return nil
}

// DetailedMap renders every segment, chunk and direct region as JSON.
func (e *Engine) DetailedMap() ([]byte, error) {
	snap, err := e.Snapshot()
	if err != nil {
		return nil, err
	}
	info := e.Info()

	w := jwriter.NewWriter()
	root := w.Object()
	root.Name("footprint").Int(int(snap.Footprint))
	root.Name("maxFootprint").Int(int(info.MaxFootprint))
	root.Name("inUseBytes").Int(int(info.InUseBytes))
	root.Name("freeBytes").Int(int(info.FreeBytes))
	root.Name("freeChunks").Int(info.FreeChunks)
	root.Name("topBytes").Int(int(snap.TopSize))

	segs := root.Name("segments").Array()
	for i, s := range snap.Segments {
		seg := segs.Object()
		seg.Name("base").String(hexAddr(s.Base))
		seg.Name("size").Int(int(s.Size))
		seg.Name("top").Bool(s.Top)

		chunks := seg.Name("chunks").Array()
		for _, c := range snap.Chunks {
			if c.Segment != i {
				continue
			}
			obj := chunks.Object()
			obj.Name("addr").String(hexAddr(c.Addr))
			obj.Name("size").Int(int(c.Size))
			obj.Name("kind").String(c.Kind.String())
			obj.Name("inUse").Bool(c.InUse)
			obj.End()
		}
		chunks.End()
		seg.End()
	}
	segs.End()

	direct := root.Name("direct").Array()
	for _, r := range snap.Direct {
		obj := direct.Object()
		obj.Name("base").String(hexAddr(r.Base))
		obj.Name("size").Int(int(r.Size))
		obj.Name("chunk").String(hexAddr(r.Chunk))
		obj.Name("chunkSize").Int(int(r.ChunkSize))
		obj.End()
	}
	direct.End()
	root.End()

	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, "alloc: encode heap map")
	}
	return w.Bytes(), nil
}

func hexAddr(a uintptr) string { return fmt.Sprintf("%#x", a) }
