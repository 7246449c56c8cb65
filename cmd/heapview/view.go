package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	overlay "github.com/rmhubbert/bubbletea-overlay"

	"github.com/joshuapare/dlmalloc/alloc"
)

// View renders the entire UI
func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}
	body := m.renderMain()
	if !m.showHelp {
		return body
	}
	return overlay.New(
		staticView(helpBoxStyle.Render(m.renderHelp())),
		staticView(body),
		overlay.Center,
		overlay.Center,
		0,
		0,
	).View()
}

func (m Model) renderMain() string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(),
		mapStyle.Render(m.vp.View()),
		m.renderStatus(),
		m.help.View(m.keys),
	)
}

func (m Model) renderHeader() string {
	info := m.d.Engine().Info()
	stats := fmt.Sprintf("footprint %s  in use %s  free %s  top %s  segments %d  direct %d  live %d  ops %d  failures %d",
		humanize.IBytes(uint64(info.Footprint)),
		humanize.IBytes(uint64(info.InUseBytes)),
		humanize.IBytes(uint64(info.FreeBytes)),
		humanize.IBytes(uint64(info.TopBytes)),
		info.Segments, info.DirectRegions,
		len(m.drv.live), m.drv.ops, m.drv.failures)
	legend := strings.Join([]string{
		inUseStyle.Render(inUseGlyph) + " in use",
		freeStyle.Render(freeGlyph) + " free",
		topStyle.Render(topGlyph) + " top",
		fenceStyle.Render(fenceGlyph) + " fence",
		directStyle.Render(directGlyph) + " direct",
		"1 cell = " + humanize.IBytes(uint64(m.bytesPerCell)),
	}, "   ")
	return lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render("heapview"),
		statsStyle.Render(stats),
		legend,
	)
}

func (m Model) renderStatus() string {
	if m.statusIsError {
		return statusErrorStyle.Render(m.statusMessage)
	}
	return statusStyle.Render(m.statusMessage)
}

func (m Model) renderHelp() string {
	h := m.help
	h.ShowAll = true
	return "heapview keys\n\n" + h.View(m.keys)
}

// renderHeap draws every chunk as a run of cells, one cell per bytesPerCell
// bytes and at least one per chunk, wrapped at width. Direct chunks get one
// line each.
func renderHeap(e *alloc.Engine, width int, bytesPerCell uintptr) string {
	width = max(width, 1)
	var b strings.Builder
	col := 0
	seg := -2

	newline := func() {
		if col > 0 {
			b.WriteByte('\n')
			col = 0
		}
	}
	cells := func(style lipgloss.Style, glyph string, n int) {
		for n > 0 {
			k := min(n, width-col)
			b.WriteString(style.Render(strings.Repeat(glyph, k)))
			col += k
			n -= k
			if col == width {
				newline()
			}
		}
	}

	err := e.Walk(func(c alloc.ChunkInfo) bool {
		if c.Segment != seg {
			seg = c.Segment
			newline()
			if seg < 0 {
				b.WriteString(segmentTitleStyle.Render("direct") + "\n")
			} else {
				b.WriteString(segmentTitleStyle.Render(fmt.Sprintf("segment %d", seg)) + "\n")
			}
		}
		n := max(int(c.Size/bytesPerCell), 1)
		switch {
		case c.Kind == alloc.KindDirect:
			cells(directStyle, directGlyph, min(n, width))
			newline()
		case c.Kind == alloc.KindFence:
			cells(fenceStyle, fenceGlyph, 1)
		case c.Kind == alloc.KindTop:
			cells(topStyle, topGlyph, n)
		case c.InUse:
			cells(inUseStyle, inUseGlyph, n)
		default:
			cells(freeStyle, freeGlyph, n)
		}
		return true
	})
	if err != nil {
		newline()
		b.WriteString(statusErrorStyle.Render(err.Error()))
	}
	return b.String()
}

// staticView adapts a rendered string to tea.Model for the overlay.
type staticView string

func (s staticView) Init() tea.Cmd                       { return nil }
func (s staticView) Update(tea.Msg) (tea.Model, tea.Cmd) { return s, nil }
func (s staticView) View() string                        { return string(s) }
