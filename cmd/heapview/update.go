package main

import (
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/joshuapare/dlmalloc/cmd/heapview/logger"
	"github.com/joshuapare/dlmalloc/verify"
)

// Update handles all messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		h := max(msg.Height-headerHeight-footerHeight-2, 1)
		if !m.ready {
			m.vp = viewport.New(msg.Width-2, h)
			m.ready = true
		} else {
			m.vp.Width, m.vp.Height = msg.Width-2, h
		}
		m.help.Width = msg.Width
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if m.showHelp {
			if key.Matches(msg, m.keys.Help) || msg.Type == tea.KeyEsc {
				m.showHelp = false
			} else if key.Matches(msg, m.keys.Quit) {
				return m, tea.Quit
			}
			return m, nil
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.Step):
		m.drv.step(m.d, 1)
		m.setStatus(fmt.Sprintf("op %d, %d live", m.drv.ops, len(m.drv.live)))

	case key.Matches(msg, m.keys.Burst):
		m.drv.step(m.d, 100)
		m.setStatus(fmt.Sprintf("op %d, %d live", m.drv.ops, len(m.drv.live)))

	case key.Matches(msg, m.keys.FreeAll):
		n := len(m.drv.live)
		m.drv.freeAll(m.d)
		m.setStatus(fmt.Sprintf("freed %d blocks", n))

	case key.Matches(msg, m.keys.Trim):
		before := m.d.Engine().Footprint()
		if m.d.Trim(0) {
			m.setStatus("trim released " + humanize.IBytes(uint64(before-m.d.Engine().Footprint())))
		} else {
			m.setStatus("trim released nothing")
		}

	case key.Matches(msg, m.keys.Reset):
		m.drv.freeAll(m.d)
		if err := m.d.Close(); err != nil {
			m.setError(err)
			break
		}
		m.drv.reset()
		m.setStatus("heap reset")

	case key.Matches(msg, m.keys.Check):
		if err := verify.Heap(m.d.Engine()); err != nil {
			m.setError(err)
		} else {
			m.setStatus("heap ok")
		}

	case key.Matches(msg, m.keys.Copy):
		data, err := m.d.Engine().DetailedMap()
		if err == nil {
			err = clipboard.WriteAll(string(data))
		}
		if err != nil {
			m.setError(err)
		} else {
			m.setStatus("heap map copied (" + humanize.IBytes(uint64(len(data))) + ")")
		}

	case key.Matches(msg, m.keys.ZoomIn):
		m.bytesPerCell = max(m.bytesPerCell/2, minBytesPerCell)
		m.setStatus(humanize.IBytes(uint64(m.bytesPerCell)) + " per cell")

	case key.Matches(msg, m.keys.ZoomOut):
		m.bytesPerCell = min(m.bytesPerCell*2, maxBytesPerCell)
		m.setStatus(humanize.IBytes(uint64(m.bytesPerCell)) + " per cell")

	default:
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		return m, cmd
	}

	m.refresh()
	return m, nil
}

func (m *Model) setStatus(s string) {
	m.statusMessage = s
	m.statusIsError = false
}

func (m *Model) setError(err error) {
	logger.L.Error("heapview", "error", err)
	m.statusMessage = err.Error()
	m.statusIsError = true
}

// refresh re-renders the heap map into the viewport.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.vp.SetContent(renderHeap(m.d.Engine(), m.vp.Width, m.bytesPerCell))
}
