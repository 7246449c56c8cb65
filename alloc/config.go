package alloc

import (
	"io"
	"log/slog"
	"os"

	"github.com/joshuapare/dlmalloc/internal/align"
)

// Runtime switches read once at startup.
var (
	// debugEnv turns on full consistency checks after every operation.
	debugEnv = os.Getenv("DLMALLOC_DEBUG") != ""

	// logEnv sends slow-path events to stderr when no logger is configured.
	logEnv = os.Getenv("DLMALLOC_LOG") != ""
)

// Config tunes an Engine. Zero fields take their DefaultConfig value.
type Config struct {
	// Granularity is the minimum size of a segment requested from the
	// provider. Rounded up to a power of two and to the provider page size.
	Granularity uintptr

	// MmapThreshold is the chunk size from which requests get their own
	// provider region. Only used when the provider can release memory.
	MmapThreshold uintptr

	// TrimThreshold is the top chunk size above which a free triggers an
	// automatic Trim.
	TrimThreshold uintptr

	// FootprintLimit caps the bytes held from the provider. 0 means no cap.
	FootprintLimit uintptr

	// Debug runs consistency checks after every operation.
	Debug bool

	// Logger receives segment and trim events. nil discards them.
	Logger *slog.Logger
}

// DefaultConfig is used when New is called with a nil config.
var DefaultConfig = Config{
	Granularity:   64 << 10,
	MmapThreshold: 256 << 10,
	TrimThreshold: 2 << 20,
}

// normalize fills zero fields from DefaultConfig and fits the granularity to
// the provider's page size.
func (c Config) normalize(pageSize uintptr) Config {
	if c.Granularity == 0 {
		c.Granularity = DefaultConfig.Granularity
	}
	if c.MmapThreshold == 0 {
		c.MmapThreshold = DefaultConfig.MmapThreshold
	}
	if c.TrimThreshold == 0 {
		c.TrimThreshold = DefaultConfig.TrimThreshold
	}
	if pageSize == 0 || !align.IsPow2(pageSize) {
		pageSize = 4096
	}
	c.Granularity = align.NextPow2(align.Up(c.Granularity, pageSize))
	if debugEnv {
		c.Debug = true
	}
	return c
}

func newLogger(cfg Config) *slog.Logger {
	if cfg.Logger != nil {
		return cfg.Logger
	}
	if logEnv {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
