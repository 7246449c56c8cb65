package dlmalloc

import (
	"log/slog"

	"github.com/joshuapare/dlmalloc/alloc"
)

// Options configures a Dlmalloc. Zero fields take the engine defaults.
type Options struct {
	// Granularity is the minimum segment size requested from the provider.
	Granularity uintptr

	// MmapThreshold is the request size from which blocks get a provider
	// region of their own.
	MmapThreshold uintptr

	// TrimThreshold is the free space at the end of the heap above which
	// memory is returned automatically.
	TrimThreshold uintptr

	// FootprintLimit caps the bytes held from the provider. 0 means no cap.
	FootprintLimit uintptr

	// Debug checks the whole heap after every operation. Slow.
	Debug bool

	// Logger receives segment and trim events.
	Logger *slog.Logger
}

func (o *Options) engineConfig() *alloc.Config {
	if o == nil {
		return nil
	}
	return &alloc.Config{
		Granularity:    o.Granularity,
		MmapThreshold:  o.MmapThreshold,
		TrimThreshold:  o.TrimThreshold,
		FootprintLimit: o.FootprintLimit,
		Debug:          o.Debug,
		Logger:         o.Logger,
	}
}
