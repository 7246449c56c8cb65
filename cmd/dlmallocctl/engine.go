package main

import (
	"strconv"
	"strings"

	"github.com/cloudfoundry/gosigar"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/dlmalloc/pkg/dlmalloc"
	"github.com/joshuapare/dlmalloc/sysmem"
)

var (
	granularity   string
	mmapThreshold string
	trimThreshold string
	footprintCap  string
	providerName  string
	fixedSize     string
	debugChecks   bool
)

func addEngineFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&granularity, "granularity", "64KiB", "Minimum segment size requested from the provider")
	f.StringVar(&mmapThreshold, "mmap-threshold", "256KiB", "Chunk size served by a dedicated region")
	f.StringVar(&trimThreshold, "trim-threshold", "2MiB", "Top chunk size that triggers an automatic trim")
	f.StringVar(&footprintCap, "limit", "", "Footprint cap, as bytes (\"8MiB\") or a share of system memory (\"5%\")")
	f.StringVar(&providerName, "provider", "os", "Backing memory: os, goheap or fixed")
	f.StringVar(&fixedSize, "fixed-size", "16MiB", "Buffer size for the fixed provider")
	f.BoolVar(&debugChecks, "debug", false, "Run engine consistency checks after every operation")
}

// session is one allocator plus the provider stack under it.
type session struct {
	d       *dlmalloc.Dlmalloc
	limit   *sysmem.Limit
	cleanup func() error
}

func (s *session) Close() error {
	err := s.d.Close()
	if s.cleanup != nil {
		err = errors.CombineErrors(err, s.cleanup())
	}
	return err
}

// newSession builds an allocator from the engine flags.
func newSession() (*session, error) {
	opts := &dlmalloc.Options{Debug: debugChecks, Logger: engineLogger()}
	var err error
	if opts.Granularity, err = parseSize("granularity", granularity); err != nil {
		return nil, err
	}
	if opts.MmapThreshold, err = parseSize("mmap-threshold", mmapThreshold); err != nil {
		return nil, err
	}
	if opts.TrimThreshold, err = parseSize("trim-threshold", trimThreshold); err != nil {
		return nil, err
	}
	if opts.FootprintLimit, err = parseLimit(footprintCap); err != nil {
		return nil, err
	}

	inner, cleanup, err := newProvider(providerName)
	if err != nil {
		return nil, err
	}
	lim := sysmem.NewLimit(inner, 0)
	printVerbose("Provider: %s (page size %d)\n", providerName, inner.PageSize())
	return &session{d: dlmalloc.New(lim, opts), limit: lim, cleanup: cleanup}, nil
}

func newProvider(name string) (sysmem.Provider, func() error, error) {
	switch name {
	case "os":
		return sysmem.NewOS(), nil, nil
	case "goheap":
		return sysmem.NewGoHeap(0), nil, nil
	case "fixed":
		n, err := parseSize("fixed-size", fixedSize)
		if err != nil {
			return nil, nil, err
		}
		host := sysmem.NewOS()
		base, size, err := host.Acquire(n)
		if err != nil {
			return nil, nil, errors.Wrap(err, "reserve fixed buffer")
		}
		p := sysmem.NewFixed(dlmalloc.Bytes(base, size), host.PageSize(), host.AllocatesZeros())
		return p, func() error { return host.Release(base, size) }, nil
	default:
		return nil, nil, errors.Newf("unknown provider %q (want os, goheap or fixed)", name)
	}
}

func parseSize(flag, s string) (uintptr, error) {
	if s == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, errors.Wrapf(err, "--%s", flag)
	}
	return uintptr(n), nil
}

// parseLimit accepts a byte count or a percentage of total system memory.
func parseLimit(s string) (uintptr, error) {
	pct, ok := strings.CutSuffix(s, "%")
	if !ok {
		return parseSize("limit", s)
	}
	v, err := strconv.ParseFloat(pct, 64)
	if err != nil || v <= 0 || v > 100 {
		return 0, errors.Newf("--limit: bad percentage %q", s)
	}
	total, err := systemMemory()
	if err != nil {
		return 0, err
	}
	limit := uintptr(float64(total) * v / 100)
	printVerbose("Footprint limit: %s (%s of %s)\n",
		humanize.IBytes(uint64(limit)), s, humanize.IBytes(total))
	return limit, nil
}

func systemMemory() (uint64, error) {
	mem := sigar.Mem{}
	if err := mem.Get(); err != nil {
		return 0, errors.Wrap(err, "read system memory")
	}
	return mem.Total, nil
}
