package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds every binding the chat view handles. The help dialog is
// rendered from it, so a binding added here shows up there too.
type keyMap struct {
	Send       key.Binding
	Complete   key.Binding
	Up         key.Binding
	Down       key.Binding
	RecallPrev key.Binding
	RecallNext key.Binding
	PageUp     key.Binding
	PageDown   key.Binding
	Stop       key.Binding
	Help       key.Binding
	Quit       key.Binding
}

var keys = keyMap{
	Send: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "Send message or run command"),
	),
	Complete: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "Complete the selected command"),
	),
	Up: key.NewBinding(
		key.WithKeys("up"),
		key.WithHelp("↑/↓", "Move through command suggestions"),
	),
	Down: key.NewBinding(
		key.WithKeys("down"),
	),
	RecallPrev: key.NewBinding(
		key.WithKeys("ctrl+p"),
		key.WithHelp("ctrl+p", "Previous prompt sent for this problem"),
	),
	RecallNext: key.NewBinding(
		key.WithKeys("ctrl+n"),
		key.WithHelp("ctrl+n", "Next prompt, back to the draft"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("pgup", "Scroll up, load older history at the top"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("pgdown", "Scroll down"),
	),
	Stop: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "Stop generating or close suggestions"),
	),
	Help: key.NewBinding(
		key.WithKeys("ctrl+?", "ctrl+h"),
		key.WithHelp("ctrl+h", "Toggle this help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "Quit"),
	),
}

// Bindings lists the bindings in the order the help dialog shows them
func (k keyMap) Bindings() []key.Binding {
	return []key.Binding{
		k.Send, k.Complete, k.Up, k.RecallPrev, k.RecallNext,
		k.PageUp, k.PageDown, k.Stop, k.Help, k.Quit,
	}
}
