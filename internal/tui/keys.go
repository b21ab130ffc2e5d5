package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings for the driver updater TUI.
type KeyMap struct {
	// Results list navigation.
	Up   key.Binding
	Down key.Binding

	// Scan page: start or cancel the scan.
	Scan key.Binding

	// Results page actions.
	Update    key.Binding // Install the driver under the cursor.
	UpdateAll key.Binding // Install every listed driver.
	Rescan    key.Binding // Back to the scan page and scan again.

	// Confirmation prompt.
	Confirm key.Binding
	Dismiss key.Binding // Also cancels an in-flight scan or install batch.

	Quit key.Binding
}

// DefaultKeyMap is the built-in key binding set. Vim-style navigation
// (j/k) alongside standard arrow keys.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	Scan: key.NewBinding(
		key.WithKeys("s", "enter"),
		key.WithHelp("s", "scan/cancel"),
	),
	Update: key.NewBinding(
		key.WithKeys("enter", "u"),
		key.WithHelp("Enter", "update"),
	),
	UpdateAll: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "update all"),
	),
	Rescan: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "rescan"),
	),
	Confirm: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "confirm"),
	),
	Dismiss: key.NewBinding(
		key.WithKeys("n", "esc"),
		key.WithHelp("n/Esc", "cancel"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}
