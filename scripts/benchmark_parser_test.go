package main

import (
	"bufio"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOutput = `goos: linux
goarch: amd64
pkg: github.com/joshuapare/dlmalloc/pkg/dlmalloc
BenchmarkMallocFree/dlmalloc/16_B-8         	80000000	        15.00 ns/op	       0 B/op	       0 allocs/op
BenchmarkMallocFree/gomake/16_B-8           	60000000	        30.00 ns/op	      16 B/op	       1 allocs/op
{"Action":"output","Output":"BenchmarkRealloc/dlmalloc/64KiB-8   \t  100000\t  2000 ns/op\t  0 B/op\t  0 allocs/op\n"}
BenchmarkRealloc/gomake/64KiB-8             	   50000	      1000 ns/op	  131072 B/op	      12 allocs/op
BenchmarkAligned-8                          	50000000	        25.50 ns/op	       0 B/op	       0 allocs/op
PASS
`

func TestParseBenchmarks(t *testing.T) {
	results := parseBenchmarks(bufio.NewScanner(strings.NewReader(sampleOutput)))
	require.Len(t, results, 5)

	assert.Equal(t, BenchmarkResult{
		Name:        "BenchmarkMallocFree/dlmalloc/16_B-8",
		Operation:   "MallocFree",
		Size:        "16_B",
		Impl:        implDlmalloc,
		Iterations:  80000000,
		NsPerOp:     15,
		BytesPerOp:  0,
		AllocsPerOp: 0,
	}, results[0])
	assert.Equal(t, implBaseline, results[1].Impl)
	assert.Equal(t, "64KiB", results[2].Size, "line taken from a -json event")
	assert.Equal(t, int64(131072), results[3].BytesPerOp)
	assert.Equal(t, "Aligned", results[4].Operation)
	assert.Empty(t, results[4].Size)
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		name           string
		op, impl, size string
	}{
		{"BenchmarkMallocFree/gomake/1.0_KiB-16", "MallocFree", "gomake", "1.0_KiB"},
		{"BenchmarkGlobalParallel-8", "GlobalParallel", implDlmalloc, ""},
		{"BenchmarkGlobalParallel", "GlobalParallel", implDlmalloc, ""},
		{"BenchmarkThing/small-4", "Thing", implDlmalloc, "small"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, impl, size := splitName(tt.name)
			assert.Equal(t, tt.op, op)
			assert.Equal(t, tt.impl, impl)
			assert.Equal(t, tt.size, size)
		})
	}
}

func TestGenerateComparisons(t *testing.T) {
	results := parseBenchmarks(bufio.NewScanner(strings.NewReader(sampleOutput)))
	comps := generateComparisons(results)
	require.Len(t, comps, 3)

	assert.Equal(t, "Aligned", comps[0].Operation)
	assert.True(t, comps[0].DlmallocOnly)

	assert.Equal(t, "MallocFree", comps[1].Operation)
	assert.InDelta(t, 2.0, comps[1].Speedup, 1e-9)
	assert.Equal(t, int64(16), comps[1].BaselineMem)

	assert.Equal(t, "Realloc", comps[2].Operation)
	assert.InDelta(t, 0.5, comps[2].Speedup, 1e-9)
}

func TestGenerateMarkdownReport(t *testing.T) {
	results := parseBenchmarks(bufio.NewScanner(strings.NewReader(sampleOutput)))
	report := generateMarkdownReport(generateComparisons(results), time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	for _, want := range []string{
		"Generated: 2026-01-02 03:04:05",
		"- **Paired with Go heap baseline**: 2",
		"  - dlmalloc faster: 1",
		"  - Average speedup: **1.25x**",
		"| MallocFree | 16_B | 15 | 30 | **2.00x** ✓ | 0 B vs 16 B | 0 vs 1 |",
		"| Realloc | 64KiB | 2,000 | 1,000 | 0.50x ✗ | 0 B vs 128 KiB | 0 vs 12 |",
		"| Aligned | - | 25.5 | *N/A* | *dlmalloc only* | 0 B | 0 |",
	} {
		assert.Contains(t, report, want)
	}
}
