package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard bindings for the TUI. While the identifier
// input has focus only Start, Blur and Interrupt are active.
type KeyMap struct {
	Start     key.Binding
	Stop      key.Binding
	Focus     key.Binding
	Blur      key.Binding
	Resync    key.Binding
	Help      key.Binding
	Events    key.Binding
	Up        key.Binding
	Down      key.Binding
	Quit      key.Binding
	Interrupt key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Start: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "start monitoring"),
		),
		Stop: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "stop monitoring"),
		),
		Focus: key.NewBinding(
			key.WithKeys("i", "/"),
			key.WithHelp("i", "edit identifier"),
		),
		Blur: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "leave input / close help"),
		),
		Resync: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "resync"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Events: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "event log"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "scroll log up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "scroll log down"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		Interrupt: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Stop, k.Focus, k.Events, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Start, k.Stop, k.Focus, k.Blur},
		{k.Resync, k.Events, k.Up, k.Down},
		{k.Help, k.Quit, k.Interrupt},
	}
}

// All lists every binding once, in help order.
func (k KeyMap) All() []key.Binding {
	var out []key.Binding
	for _, col := range k.FullHelp() {
		out = append(out, col...)
	}
	return out
}
