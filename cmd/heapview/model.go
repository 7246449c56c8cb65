package main

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/joshuapare/dlmalloc/cmd/heapview/logger"
	"github.com/joshuapare/dlmalloc/pkg/dlmalloc"
	"github.com/joshuapare/dlmalloc/sysmem"
)

// Layout constants
const (
	headerHeight = 3 // Title, stats and legend
	footerHeight = 2 // Status and short help

	minBytesPerCell = 16
	maxBytesPerCell = 1 << 20
)

// Options configures a heapview session.
type Options struct {
	Seed        uint64
	MaxLive     int
	MaxSize     uintptr
	Granularity uintptr
}

// Model is the main application model
type Model struct {
	d     *dlmalloc.Dlmalloc
	limit *sysmem.Limit
	drv   *driver
	keys  KeyMap
	help  help.Model
	vp    viewport.Model

	width        int
	height       int
	ready        bool
	bytesPerCell uintptr

	showHelp      bool
	statusMessage string
	statusIsError bool
}

// NewModel creates a new TUI model over OS memory.
func NewModel(opts Options) Model {
	lim := sysmem.NewLimit(sysmem.NewOS(), 0)
	d := dlmalloc.New(lim, &dlmalloc.Options{
		Granularity: opts.Granularity,
		Logger:      logger.L,
	})
	return Model{
		d:            d,
		limit:        lim,
		drv:          newDriver(opts.Seed, opts.MaxLive, opts.MaxSize),
		keys:         DefaultKeyMap(),
		help:         help.New(),
		bytesPerCell: 256,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Close releases every region the session's allocator holds.
func (m Model) Close() error {
	m.drv.freeAll(m.d)
	return m.d.Close()
}
