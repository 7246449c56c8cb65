package main

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard shortcuts
type KeyMap struct {
	// Workload
	Step    key.Binding
	Burst   key.Binding
	FreeAll key.Binding
	Trim    key.Binding
	Reset   key.Binding

	// Inspection
	Check   key.Binding
	Copy    key.Binding
	ZoomIn  key.Binding
	ZoomOut key.Binding

	// Scrolling
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding

	Help key.Binding
	Quit key.Binding
}

// DefaultKeyMap returns the default keybindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Step: key.NewBinding(
			key.WithKeys(" ", "s"),
			key.WithHelp("space", "step"),
		),
		Burst: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "100 steps"),
		),
		FreeAll: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "free all"),
		),
		Trim: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "trim"),
		),
		Reset: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reset"),
		),
		Check: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "validate heap"),
		),
		Copy: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy heap map"),
		),
		ZoomIn: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "zoom in"),
		),
		ZoomOut: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "zoom out"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "page down"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns key bindings for the short help view
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Step, k.Burst, k.FreeAll, k.Trim, k.Help, k.Quit}
}

// FullHelp returns key bindings for the expanded help view
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Step, k.Burst, k.FreeAll, k.Trim, k.Reset},
		{k.Check, k.Copy, k.ZoomIn, k.ZoomOut},
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Help, k.Quit},
	}
}
