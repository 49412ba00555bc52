package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the dashboard keybindings. Operation keys are shared
// between panes and only act on the focused one.
type KeyMap struct {
	Quit    key.Binding
	Help    key.Binding
	NextTab key.Binding
	PrevTab key.Binding
	Refresh key.Binding
	Back    key.Binding

	Start    key.Binding // b/i/m depending on pane
	Good     key.Binding
	Bad      key.Binding
	Skip     key.Binding
	Reset    key.Binding
	Continue key.Binding
	Abort    key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		NextTab: key.NewBinding(key.WithKeys("tab", "right", "l"), key.WithHelp("tab", "next pane")),
		PrevTab: key.NewBinding(key.WithKeys("shift+tab", "left", "h"), key.WithHelp("shift+tab", "prev pane")),
		Refresh: key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "refresh")),
		Back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),

		Start:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "start")),
		Good:     key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "mark good")),
		Bad:      key.NewBinding(key.WithKeys("B"), key.WithHelp("B", "mark bad")),
		Skip:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "skip")),
		Reset:    key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reset bisect")),
		Continue: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "continue/commit")),
		Abort:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "abort")),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextTab, k.Start, k.Refresh, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextTab, k.PrevTab, k.Refresh, k.Back},
		{k.Start, k.Good, k.Bad, k.Skip, k.Reset},
		{k.Continue, k.Abort, k.Help, k.Quit},
	}
}
