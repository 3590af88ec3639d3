package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the console key bindings.
type KeyMap struct {
	Add         key.Binding
	Delete      key.Binding
	Reload      key.Binding
	Rules       key.Binding
	Diagnostics key.Binding
	Next        key.Binding
	Cancel      key.Binding
	Help        key.Binding
	Quit        key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Add: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "add rule"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d", "delete"),
			key.WithHelp("d", "delete rule"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload"),
		),
		Rules: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "rules"),
		),
		Diagnostics: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "diagnostics"),
		),
		Next: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next view"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Add, k.Delete, k.Reload, k.Next, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Add, k.Delete, k.Reload},
		{k.Rules, k.Diagnostics, k.Next},
		{k.Cancel, k.Help, k.Quit},
	}
}
