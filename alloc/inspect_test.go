package alloc

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Walk_CoversSegments(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	a := mustMalloc(t, e, 100)
	mustMalloc(t, e, 300)
	e.Free(a)
	mustMalloc(t, e, 40<<10)
	mustMalloc(t, e, 40<<10) // second segment

	sums := map[int]uintptr{}
	kinds := map[ChunkKind]int{}
	err := e.Walk(func(c ChunkInfo) bool {
		sums[c.Segment] += c.Size
		kinds[c.Kind]++
		if c.Kind == KindChunk && !c.InUse {
			assert.Equal(t, c.Size, c.Footer, "footer of free chunk %#x", c.Addr)
		}
		return true
	})
	require.NoError(t, err)

	snap, err := e.Snapshot()
	require.NoError(t, err)
	require.Len(t, snap.Segments, 2)
	for i, s := range snap.Segments {
		assert.Equal(t, s.Fence-s.First+fenceSize, sums[i], "segment %d is tiled", i)
	}
	assert.Equal(t, 2, kinds[KindFence])
	assert.Equal(t, 1, kinds[KindTop])
	assert.True(t, snap.Segments[0].Top, "newest segment first")
}

func Test_Walk_StopsEarly(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	for range 5 {
		mustMalloc(t, e, 64)
	}

	n := 0
	require.NoError(t, e.Walk(func(ChunkInfo) bool {
		n++
		return n < 3
	}))
	assert.Equal(t, 3, n)
}

func Test_Walk_DirectChunks(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	mustMalloc(t, e, 16)
	d := mustMalloc(t, e, 1<<20)

	var direct []ChunkInfo
	require.NoError(t, e.Walk(func(c ChunkInfo) bool {
		if c.Kind == KindDirect {
			direct = append(direct, c)
		}
		return true
	}))
	require.Len(t, direct, 1)
	assert.Equal(t, d, direct[0].Mem())
	assert.Equal(t, -1, direct[0].Segment)

	snap, err := e.Snapshot()
	require.NoError(t, err)
	require.Len(t, snap.Direct, 1)
	r := snap.Direct[0]
	assert.Equal(t, r.Base+r.Offset, r.Chunk)
	assert.LessOrEqual(t, r.Offset+r.ChunkSize, r.Size)
}

func Test_Walk_DetectsBadSize(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	e.cfg.Debug = false

	a := mustMalloc(t, e, 64)
	fromMem(a).setHead(1<<30 | inuseBits)

	err := e.Walk(func(ChunkInfo) bool { return true })
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorrupted))

	_, err = e.Snapshot()
	assert.True(t, errors.Is(err, ErrCorrupted))

	fromMem(a).setHead(80 | inuseBits)
}

func Test_ChunkKind_String(t *testing.T) {
	assert.Equal(t, "chunk", KindChunk.String())
	assert.Equal(t, "top", KindTop.String())
	assert.Equal(t, "fence", KindFence.String())
	assert.Equal(t, "direct", KindDirect.String())
	assert.Equal(t, "unknown", ChunkKind(99).String())
}

func Test_Report_WriteReport(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	for range 10 {
		e.Free(mustMalloc(t, e, 1000))
	}

	var buf bytes.Buffer
	require.NoError(t, e.WriteReport(&buf))
	out := buf.String()
	assert.Contains(t, out, "=== Heap ===")
	assert.Contains(t, out, "Footprint:")
	assert.Contains(t, out, "64 KiB (65,536)")
	assert.Contains(t, out, "Malloc: 10  Free: 10")
}

func Test_Report_DetailedMap(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	a := mustMalloc(t, e, 100)
	mustMalloc(t, e, 100)
	e.Free(a)
	mustMalloc(t, e, 1<<20)

	raw, err := e.DetailedMap()
	require.NoError(t, err)

	var doc struct {
		Footprint int `json:"footprint"`
		Segments  []struct {
			Base   string `json:"base"`
			Size   int    `json:"size"`
			Top    bool   `json:"top"`
			Chunks []struct {
				Addr  string `json:"addr"`
				Size  int    `json:"size"`
				Kind  string `json:"kind"`
				InUse bool   `json:"inUse"`
			} `json:"chunks"`
		} `json:"segments"`
		Direct []struct {
			Base      string `json:"base"`
			ChunkSize int    `json:"chunkSize"`
		} `json:"direct"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc), "output: %s", raw)

	assert.Equal(t, int(e.Footprint()), doc.Footprint)
	require.Len(t, doc.Segments, 1)
	seg := doc.Segments[0]
	assert.True(t, seg.Top)
	assert.True(t, strings.HasPrefix(seg.Base, "0x"))
	require.Len(t, seg.Chunks, 4)
	assert.False(t, seg.Chunks[0].InUse)
	assert.True(t, seg.Chunks[1].InUse)
	assert.Equal(t, "top", seg.Chunks[2].Kind)
	assert.Equal(t, "fence", seg.Chunks[3].Kind)
	require.Len(t, doc.Direct, 1)
	assert.GreaterOrEqual(t, doc.Direct[0].ChunkSize, 1<<20)
}

func Test_Logger_ReceivesSegmentEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	e, _ := newTestEngine(t, &Config{Logger: logger})

	mem := mustMalloc(t, e, 100)
	e.Free(mem)
	require.True(t, e.Trim(0))

	out := buf.String()
	assert.Contains(t, out, "segment acquired")
	assert.Contains(t, out, "segment released")
}

func Test_Config_Normalize(t *testing.T) {
	c := Config{Granularity: 5000}.normalize(4096)
	assert.Equal(t, uintptr(8192), c.Granularity)
	assert.Equal(t, DefaultConfig.MmapThreshold, c.MmapThreshold)
	assert.Equal(t, DefaultConfig.TrimThreshold, c.TrimThreshold)

	c = Config{}.normalize(0)
	assert.Equal(t, DefaultConfig.Granularity, c.Granularity)

	c = Config{Granularity: 4096}.normalize(16384)
	assert.Equal(t, uintptr(16384), c.Granularity)
}
