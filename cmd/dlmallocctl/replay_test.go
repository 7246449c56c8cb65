package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/dlmalloc/pkg/dlmalloc"
)

const sampleTrace = `# two small blocks, a grow and an aligned calloc
malloc a 100
malloc b 4KiB
realloc a 2000
calloc c 300 256
check
free b
realloc c 10
trim 64KiB
malloc big 1MiB
free big
check
`

func TestParseTrace(t *testing.T) {
	ops, err := parseTrace(strings.NewReader(sampleTrace))
	require.NoError(t, err)
	require.Len(t, ops, 11)

	assert.Equal(t, traceOp{line: 2, verb: "malloc", id: "a", size: 100, align: 8}, ops[0])
	assert.Equal(t, uintptr(4096), ops[1].size)
	assert.Equal(t, traceOp{line: 5, verb: "calloc", id: "c", size: 300, align: 256}, ops[3])
	assert.Equal(t, uintptr(64<<10), ops[7].size)
}

func TestParseTrace_Errors(t *testing.T) {
	tests := []struct {
		name    string
		trace   string
		wantErr string
	}{
		{"unknown verb", "mmap a 10", "unknown operation"},
		{"missing size", "malloc a", "malloc wants"},
		{"bad size", "malloc a ten", "bad size"},
		{"bad alignment", "malloc a 10 24", "not a power of two"},
		{"free arity", "free", "free wants"},
		{"check arity", "check now", "no arguments"},
		{"line number", "malloc a 1\n\nfree", "line 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseTrace(strings.NewReader(tt.trace))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReplay(t *testing.T) {
	ops, err := parseTrace(strings.NewReader(sampleTrace))
	require.NoError(t, err)

	s, err := newSession()
	require.NoError(t, err)
	defer s.Close()

	res, err := replay(s.d, ops)
	require.NoError(t, err)
	assert.Equal(t, replayResult{Ops: 11, Checks: 2, Live: 2, LiveBytes: 2010}, res)
	assert.Equal(t, 1, s.d.Engine().GetStats().DirectMaps)
}

func TestReplay_Errors(t *testing.T) {
	tests := []struct {
		name    string
		trace   string
		wantErr string
	}{
		{"duplicate id", "malloc a 10\nmalloc a 20", `id "a" is already live`},
		{"free unknown", "free x", `unknown id "x"`},
		{"realloc after free", "malloc a 10\nfree a\nrealloc a 20", `line 3: unknown id "a"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops, err := parseTrace(strings.NewReader(tt.trace))
			require.NoError(t, err)

			s, err := newSession()
			require.NoError(t, err)
			defer s.Close()

			_, err = replay(s.d, ops)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReplay_FailuresAreCounted(t *testing.T) {
	setFlag(t, &footprintCap, "64KiB")
	ops, err := parseTrace(strings.NewReader("malloc a 100\nmalloc b 1MiB\nrealloc a 1MiB\nfree a\n"))
	require.NoError(t, err)

	s, err := newSession()
	require.NoError(t, err)
	defer s.Close()

	res, err := replay(s.d, ops)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Failures)
	assert.Zero(t, res.Live)
}

// clobberingRealloc damages the first byte of every block it moves or
// resizes.
type clobberingRealloc struct {
	*dlmalloc.Dlmalloc
}

func (c clobberingRealloc) Realloc(ptr, oldSize, oldAlign, newSize uintptr) uintptr {
	p := c.Dlmalloc.Realloc(ptr, oldSize, oldAlign, newSize)
	if p != 0 && newSize != 0 {
		dlmalloc.Bytes(p, 1)[0] ^= 0xFF
	}
	return p
}

func TestReplay_DetectsReallocDataLoss(t *testing.T) {
	ops, err := parseTrace(strings.NewReader("malloc a 100\nrealloc a 300\nfree a\n"))
	require.NoError(t, err)

	s, err := newSession()
	require.NoError(t, err)
	defer s.Close()

	_, err = replay(clobberingRealloc{s.d}, ops)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2: realloc lost contents")
}

func TestReplayCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.trace")
	require.NoError(t, os.WriteFile(path, []byte(sampleTrace), 0o644))
	setFlag(t, &jsonOut, true)

	out, err := captureOutput(t, func() error { return runReplay([]string{path}) })
	require.NoError(t, err)
	assertJSON(t, out)
	assert.Contains(t, out, `"checks": 2`)

	_, err = captureOutput(t, func() error { return runReplay([]string{filepath.Join(t.TempDir(), "missing")}) })
	require.Error(t, err)
}
