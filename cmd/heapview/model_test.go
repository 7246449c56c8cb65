package main

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/dlmalloc/alloc"
	"github.com/joshuapare/dlmalloc/sysmem"
)

// testHelper drives a Model the way the bubbletea runtime would.
type testHelper struct {
	t     *testing.T
	model Model
	cmd   tea.Cmd
}

func newTestHelper(t *testing.T) *testHelper {
	t.Helper()
	h := &testHelper{t: t, model: NewModel(Options{Seed: 1, MaxLive: 50, MaxSize: 8 << 10})}
	t.Cleanup(func() {
		require.NoError(t, h.model.Close())
		assert.Zero(t, h.model.limit.Stats().Held)
	})
	return h
}

func (h *testHelper) send(msg tea.Msg) *testHelper {
	updated, cmd := h.model.Update(msg)
	h.model = updated.(Model)
	h.cmd = cmd
	return h
}

func (h *testHelper) key(t tea.KeyType) *testHelper {
	return h.send(tea.KeyMsg{Type: t})
}

func (h *testHelper) rune(r rune) *testHelper {
	return h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
}

func TestModel_WindowSize(t *testing.T) {
	h := newTestHelper(t)
	assert.Equal(t, "loading...", h.model.View())

	h.send(tea.WindowSizeMsg{Width: 100, Height: 40})
	require.True(t, h.model.ready)
	assert.Equal(t, 98, h.model.vp.Width)
	assert.Equal(t, 40-headerHeight-footerHeight-2, h.model.vp.Height)

	view := h.model.View()
	assert.Contains(t, view, "heapview")
	assert.Contains(t, view, "segments 0")
}

func TestModel_StepAndFree(t *testing.T) {
	h := newTestHelper(t).send(tea.WindowSizeMsg{Width: 100, Height: 40})

	h.key(tea.KeyEnter)
	assert.Equal(t, 100, h.model.drv.ops)
	assert.Contains(t, h.model.statusMessage, "op 100")
	assert.Contains(t, h.model.View(), "segment 0")

	h.rune(' ')
	assert.Equal(t, 101, h.model.drv.ops)

	h.rune('c')
	assert.Equal(t, "heap ok", h.model.statusMessage)
	assert.False(t, h.model.statusIsError)

	h.rune('f')
	assert.Empty(t, h.model.drv.live)
	assert.Zero(t, h.model.d.Engine().Info().InUseBytes)

	h.rune('t')
	assert.Contains(t, h.model.statusMessage, "trim released")
}

func TestModel_Reset(t *testing.T) {
	h := newTestHelper(t).send(tea.WindowSizeMsg{Width: 80, Height: 30})
	h.key(tea.KeyEnter)
	require.NotZero(t, h.model.d.Engine().Footprint())

	h.rune('r')
	assert.Equal(t, "heap reset", h.model.statusMessage)
	assert.Zero(t, h.model.drv.ops)
	assert.Zero(t, h.model.d.Engine().Footprint())

	// The same seed replays the same requests.
	h.key(tea.KeyEnter)
	assert.Equal(t, 100, h.model.drv.ops)
}

func TestModel_Zoom(t *testing.T) {
	h := newTestHelper(t).send(tea.WindowSizeMsg{Width: 80, Height: 30})

	h.rune('+')
	assert.Equal(t, uintptr(128), h.model.bytesPerCell)
	h.rune('-').rune('-')
	assert.Equal(t, uintptr(512), h.model.bytesPerCell)

	for range 20 {
		h.rune('+')
	}
	assert.Equal(t, uintptr(minBytesPerCell), h.model.bytesPerCell)
}

func TestModel_HelpAndQuit(t *testing.T) {
	h := newTestHelper(t).send(tea.WindowSizeMsg{Width: 100, Height: 40})

	h.rune('?')
	require.True(t, h.model.showHelp)
	assert.Contains(t, h.model.renderHelp(), "validate heap")
	assert.Contains(t, h.model.View(), "heapview keys")

	h.rune(' ')
	assert.Zero(t, h.model.drv.ops, "keys are ignored while help is open")

	h.key(tea.KeyEsc)
	assert.False(t, h.model.showHelp)

	h.rune('q')
	require.NotNil(t, h.cmd)
	assert.Equal(t, tea.QuitMsg{}, h.cmd())
}

func TestRenderHeap(t *testing.T) {
	e := alloc.New(sysmem.NewOS(), nil)
	t.Cleanup(func() { require.NoError(t, e.Close()) })

	a, err := e.Malloc(1000)
	require.NoError(t, err)
	_, err = e.Malloc(1000)
	require.NoError(t, err)
	e.Free(a)

	const width = 40
	out := renderHeap(e, width, 16)

	assert.Equal(t, 63, strings.Count(out, inUseGlyph), "1008-byte chunk at 16 bytes per cell")
	assert.Equal(t, 63, strings.Count(out, freeGlyph))
	assert.Equal(t, int(e.Info().TopBytes/16), strings.Count(out, topGlyph))
	assert.Equal(t, 1, strings.Count(out, fenceGlyph))
	assert.True(t, strings.HasPrefix(out, "segment 0\n"))
	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, lipgloss.Width(line), width)
	}

	_, err = e.Malloc(1 << 20)
	require.NoError(t, err)
	out = renderHeap(e, width, 16)
	assert.Contains(t, out, "direct\n")
	assert.Equal(t, width, strings.Count(out, directGlyph))
}
