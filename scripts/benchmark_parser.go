// benchmark_parser turns `go test -bench` output into a markdown report that
// pairs each dlmalloc benchmark with its Go heap baseline.
//
//	go test -run '^$' -bench . -benchmem ./pkg/dlmalloc | go run ./scripts
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	implDlmalloc = "dlmalloc"
	implBaseline = "gomake"
)

// BenchmarkResult represents a parsed benchmark result.
type BenchmarkResult struct {
	Name        string
	Operation   string
	Size        string
	Impl        string // implDlmalloc or implBaseline
	Iterations  int
	NsPerOp     float64
	BytesPerOp  int64
	AllocsPerOp int64
}

// ComparisonResult pairs a dlmalloc result with its baseline.
type ComparisonResult struct {
	Operation      string
	Size           string
	DlmallocNs     float64
	BaselineNs     float64
	Speedup        float64
	DlmallocMem    int64
	BaselineMem    int64
	DlmallocAllocs int64
	BaselineAllocs int64
	DlmallocOnly   bool
}

var (
	inputFile = flag.String(
		"input",
		"",
		"Input file with benchmark output (stdin if not specified)",
	)
	outputFile = flag.String("output", "", "Output markdown file (stdout if not specified)")
	quiet      = flag.Bool("quiet", false, "Suppress progress output")
)

func main() {
	flag.Parse()

	in := os.Stdin
	if *inputFile != "" {
		f, err := os.Open(*inputFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening input file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	results := parseBenchmarks(bufio.NewScanner(in))
	if !*quiet {
		fmt.Fprintf(os.Stderr, "Parsed %d benchmark results\n", len(results))
	}

	comparisons := generateComparisons(results)
	if !*quiet {
		fmt.Fprintf(os.Stderr, "Generated %d comparisons\n", len(comparisons))
	}

	report := generateMarkdownReport(comparisons, time.Now())

	if *outputFile == "" {
		fmt.Fprint(os.Stdout, report)
		return
	}
	if err := os.WriteFile(*outputFile, []byte(report), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
		os.Exit(1)
	}
	if !*quiet {
		fmt.Fprintf(os.Stderr, "Report written to %s\n", *outputFile)
	}
}

// BenchmarkMallocFree/dlmalloc/16_B-8    10000    12.45 ns/op    0 B/op    0 allocs/op
var benchmarkRegex = regexp.MustCompile(
	`^(Benchmark\S+)\s+(\d+)\s+([\d.]+)\s+ns/op(?:\s+([\d.]+)\s+B/op)?(?:\s+([\d.]+)\s+allocs/op)?`,
)

func parseBenchmarks(scanner *bufio.Scanner) []BenchmarkResult {
	var results []BenchmarkResult

	for scanner.Scan() {
		line := scanner.Text()

		// go test -json wraps every line in a test event
		var event struct{ Output string }
		if err := json.Unmarshal([]byte(line), &event); err == nil && event.Output != "" {
			line = event.Output
		}

		matches := benchmarkRegex.FindStringSubmatch(strings.TrimSpace(line))
		if matches == nil {
			continue
		}

		r := BenchmarkResult{Name: matches[1]}
		r.Iterations, _ = strconv.Atoi(matches[2])
		r.NsPerOp, _ = strconv.ParseFloat(matches[3], 64)
		if matches[4] != "" {
			r.BytesPerOp, _ = strconv.ParseInt(matches[4], 10, 64)
		}
		if matches[5] != "" {
			r.AllocsPerOp, _ = strconv.ParseInt(matches[5], 10, 64)
		}
		r.Operation, r.Impl, r.Size = splitName(r.Name)
		results = append(results, r)
	}

	return results
}

// splitName breaks Benchmark<Op>/<impl>/<size>-<procs> into its parts.
// Benchmarks without an implementation level are dlmalloc-only.
func splitName(name string) (op, impl, size string) {
	parts := strings.Split(name, "/")
	op = strings.TrimPrefix(parts[0], "Benchmark")
	last := parts[len(parts)-1]
	if i := strings.LastIndex(last, "-"); i > 0 {
		last = last[:i]
	}

	switch len(parts) {
	case 1:
		return trimProcs(op), implDlmalloc, ""
	case 2:
		return op, implDlmalloc, last
	default:
		return op, parts[1], last
	}
}

func trimProcs(s string) string {
	if i := strings.LastIndex(s, "-"); i > 0 {
		if _, err := strconv.Atoi(s[i+1:]); err == nil {
			return s[:i]
		}
	}
	return s
}

func generateComparisons(results []BenchmarkResult) []ComparisonResult {
	type key struct {
		operation string
		size      string
	}

	grouped := make(map[key]map[string]BenchmarkResult)
	for _, result := range results {
		k := key{result.Operation, result.Size}
		if grouped[k] == nil {
			grouped[k] = make(map[string]BenchmarkResult)
		}
		grouped[k][result.Impl] = result
	}

	var comparisons []ComparisonResult
	for k, impls := range grouped {
		dl, hasDl := impls[implDlmalloc]
		if !hasDl {
			continue
		}
		c := ComparisonResult{
			Operation:      k.operation,
			Size:           k.size,
			DlmallocNs:     dl.NsPerOp,
			DlmallocMem:    dl.BytesPerOp,
			DlmallocAllocs: dl.AllocsPerOp,
			DlmallocOnly:   true,
		}
		if base, ok := impls[implBaseline]; ok && dl.NsPerOp > 0 {
			c.DlmallocOnly = false
			c.BaselineNs = base.NsPerOp
			c.BaselineMem = base.BytesPerOp
			c.BaselineAllocs = base.AllocsPerOp
			c.Speedup = base.NsPerOp / dl.NsPerOp
		}
		comparisons = append(comparisons, c)
	}

	sort.Slice(comparisons, func(i, j int) bool {
		if comparisons[i].Operation != comparisons[j].Operation {
			return comparisons[i].Operation < comparisons[j].Operation
		}
		return comparisons[i].Size < comparisons[j].Size
	})

	return comparisons
}

func generateMarkdownReport(comparisons []ComparisonResult, now time.Time) string {
	var sb strings.Builder

	sb.WriteString("# Allocator Benchmark Report\n\n")
	fmt.Fprintf(&sb, "Generated: %s\n\n", now.Format(time.DateTime))

	faster, slower, only := 0, 0, 0
	totalSpeedup := 0.0
	for _, c := range comparisons {
		switch {
		case c.DlmallocOnly:
			only++
		case c.Speedup >= 1.0:
			faster++
			totalSpeedup += c.Speedup
		default:
			slower++
			totalSpeedup += c.Speedup
		}
	}
	paired := faster + slower

	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- **Total benchmarks**: %d\n", len(comparisons))
	fmt.Fprintf(&sb, "- **Paired with Go heap baseline**: %d\n", paired)
	if paired > 0 {
		fmt.Fprintf(&sb, "  - dlmalloc faster: %d\n", faster)
		fmt.Fprintf(&sb, "  - baseline faster: %d\n", slower)
		fmt.Fprintf(&sb, "  - Average speedup: **%.2fx**\n", totalSpeedup/float64(paired))
	}
	fmt.Fprintf(&sb, "- **dlmalloc only**: %d\n\n", only)

	sb.WriteString("## Detailed Results\n\n")
	sb.WriteString("| Operation | Size | dlmalloc (ns/op) | make (ns/op) | Speedup | Go heap (B/op) | Allocs |\n")
	sb.WriteString("|-----------|------|------------------|--------------|---------|----------------|--------|\n")

	for _, c := range comparisons {
		size := c.Size
		if size == "" {
			size = "-"
		}
		if c.DlmallocOnly {
			fmt.Fprintf(&sb, "| %s | %s | %s | *N/A* | *dlmalloc only* | %s | %s |\n",
				c.Operation, size,
				formatNumber(c.DlmallocNs),
				formatBytes(c.DlmallocMem),
				humanize.Comma(c.DlmallocAllocs),
			)
			continue
		}
		indicator, emphasis := "✓", "**"
		if c.Speedup < 1.0 {
			indicator, emphasis = "✗", ""
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s%.2fx%s %s | %s vs %s | %s vs %s |\n",
			c.Operation, size,
			formatNumber(c.DlmallocNs),
			formatNumber(c.BaselineNs),
			emphasis, c.Speedup, emphasis, indicator,
			formatBytes(c.DlmallocMem), formatBytes(c.BaselineMem),
			humanize.Comma(c.DlmallocAllocs), humanize.Comma(c.BaselineAllocs),
		)
	}
	sb.WriteString("\n")

	sb.WriteString("## Notes\n\n")
	sb.WriteString("- **Speedup > 1.0**: dlmalloc is faster than `make` ✓\n")
	sb.WriteString("- **Go heap bytes**: dlmalloc memory comes from the provider, so it should report 0 B/op\n")
	sb.WriteString("- **dlmalloc only**: no Go heap equivalent (alignment, locking)\n")

	return sb.String()
}

func formatNumber(n float64) string {
	return humanize.CommafWithDigits(n, 1)
}

func formatBytes(b int64) string {
	return humanize.IBytes(uint64(b))
}
