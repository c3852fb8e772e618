package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/maildeck/maildeck/internal/nav"
)

// handleKey dispatches one keypress. Global chords first, then the help
// overlay (which swallows everything), then per-mode bindings.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch key {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	}

	if m.machine.Mode() == nav.ModeHelp {
		// Any key dismisses the overlay.
		return m.dispatch(nav.CmdBack)
	}

	switch key {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "?":
		return m.dispatch(nav.CmdHelp)
	case "tab":
		return m.dispatch(nav.CmdFocusNext)
	case "shift+tab":
		return m.dispatch(nav.CmdFocusPrev)
	case "alt+f":
		m.machine.TogglePane(nav.PaneFolders)
		return m, nil
	case "alt+m":
		m.machine.TogglePane(nav.PaneList)
		return m, nil
	case "alt+c":
		m.machine.TogglePane(nav.PaneContent)
		return m, nil
	}

	switch m.machine.Mode() {
	case nav.ModeFolders:
		return m.handleFolderKey(key)
	case nav.ModeList:
		return m.handleListKey(key)
	case nav.ModeContent:
		return m.handleContentKey(msg)
	}
	return m, nil
}

func (m Model) handleFolderKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "j", "down":
		return m.dispatch(nav.CmdDown)
	case "k", "up":
		return m.dispatch(nav.CmdUp)
	case "l", "right":
		return m.dispatch(nav.CmdExpand)
	case "h", "left":
		return m.dispatch(nav.CmdCollapse)
	case "enter":
		return m.dispatch(nav.CmdActivate)
	}
	return m, nil
}

func (m Model) handleListKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "j", "down":
		return m.dispatch(nav.CmdDown)
	case "k", "up":
		return m.dispatch(nav.CmdUp)
	case "enter", "l", "right":
		return m.dispatch(nav.CmdActivate)
	case "h", "left", "backspace", "esc":
		return m.dispatch(nav.CmdBack)
	}
	return m, nil
}

// handleContentKey scrolls the viewport locally; only leaving the message
// goes through the machine.
func (m Model) handleContentKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "h", "left", "backspace", "esc":
		return m.dispatch(nav.CmdBack)
	}

	if m.viewportReady {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

// dispatch is apply with the tea.Model return shape key handlers need.
func (m Model) dispatch(cmd nav.Command) (tea.Model, tea.Cmd) {
	next, teaCmd := m.apply(cmd)
	return next, teaCmd
}
