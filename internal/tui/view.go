package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/maildeck/maildeck/internal/nav"
	"github.com/maildeck/maildeck/internal/textutil"
)

// Monochrome theme, adaptive for light and dark terminals.
var (
	titleBarStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#333333"}).
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"}).
			Padding(0, 1)

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#bbbbbb", Dark: "#444444"})

	focusedPaneStyle = paneStyle.
				BorderForeground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#cccccc"})

	paneTitleStyle = lipgloss.NewStyle().Bold(true)

	cursorRowStyle = lipgloss.NewStyle().
			Background(lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#282828"})

	unreadRowStyle = lipgloss.NewStyle().Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#999999"})

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#999999"}).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().Bold(true)

	helpStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(1, 2)
)

// paneWeights drives the horizontal split; the content pane absorbs what
// hidden panes give up.
var paneWeights = map[nav.Pane]int{
	nav.PaneFolders: 2,
	nav.PaneList:    3,
	nav.PaneContent: 4,
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "loading..."
	}

	title := padRight(titleBarStyle.Render("maildeck "+m.version), m.width)

	var body string
	if m.machine.Mode() == nav.ModeHelp {
		body = m.renderHelp()
	} else {
		body = m.renderPanes()
	}

	status := m.renderStatusBar()

	return lipgloss.JoinVertical(lipgloss.Left, title, body, status)
}

// paneLayout returns the visible panes and their outer widths, left to right.
func (m Model) paneLayout() ([]nav.Pane, []int) {
	vis := m.machine.Selection().Visible
	var shown []nav.Pane
	total := 0
	for _, p := range []nav.Pane{nav.PaneFolders, nav.PaneList, nav.PaneContent} {
		if vis.Has(p) {
			shown = append(shown, p)
			total += paneWeights[p]
		}
	}

	widths := make([]int, len(shown))
	used := 0
	for i, p := range shown {
		if i == len(shown)-1 {
			widths[i] = m.width - used
			break
		}
		widths[i] = m.width * paneWeights[p] / total
		used += widths[i]
	}
	return shown, widths
}

// bodyHeight is the pane area's outer height: everything but the title and
// status lines.
func (m Model) bodyHeight() int {
	h := m.height - 2
	if h < 3 {
		h = 3
	}
	return h
}

// contentPaneSize returns the inner size of the content pane for the
// viewport, accounting for the border and pane title line.
func (m Model) contentPaneSize() (int, int) {
	shown, widths := m.paneLayout()
	for i, p := range shown {
		if p == nav.PaneContent {
			w := widths[i] - 2
			h := m.bodyHeight() - 3
			if w < 1 {
				w = 1
			}
			if h < 1 {
				h = 1
			}
			return w, h
		}
	}
	return 1, 1
}

func (m Model) renderPanes() string {
	shown, widths := m.paneLayout()
	focused := m.machine.Selection().Focused

	cols := make([]string, len(shown))
	for i, p := range shown {
		innerW := widths[i] - 2
		innerH := m.bodyHeight() - 2
		if innerW < 1 {
			innerW = 1
		}
		if innerH < 1 {
			innerH = 1
		}

		var lines []string
		switch p {
		case nav.PaneFolders:
			lines = m.folderLines(innerW, innerH)
		case nav.PaneList:
			lines = m.messageLines(innerW, innerH)
		case nav.PaneContent:
			lines = m.contentLines(innerW, innerH)
		}

		for len(lines) < innerH {
			lines = append(lines, strings.Repeat(" ", innerW))
		}
		block := strings.Join(lines[:innerH], "\n")

		style := paneStyle
		if p == focused {
			style = focusedPaneStyle
		}
		cols[i] = style.Render(block)
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

// folderLines renders the folder tree pane, keeping the cursor in view.
func (m Model) folderLines(w, h int) []string {
	lines := []string{padRight(paneTitleStyle.Render("Folders"), w)}
	rows := m.machine.FolderRows()
	if len(rows) == 0 {
		return append(lines, padRight(mutedStyle.Render("(empty store)"), w))
	}

	visible := h - 1
	start := scrollStart(m.machine.FolderCursor(), len(rows), visible)
	selected := m.machine.Selection().FolderPath

	for i := start; i < len(rows) && i < start+visible; i++ {
		r := rows[i]
		marker := " "
		if r.Expandable {
			marker = "+"
			if r.Expanded {
				marker = "-"
			}
		}
		name := r.Name
		if r.Unread > 0 {
			name = fmt.Sprintf("%s (%d)", name, r.Unread)
		}
		line := truncateRunes(strings.Repeat("  ", r.Depth)+marker+" "+name, w)

		switch {
		case i == m.machine.FolderCursor() && m.machine.Mode() == nav.ModeFolders:
			line = cursorRowStyle.Render(padRight(line, w))
		case r.Path == selected:
			line = unreadRowStyle.Render(padRight(line, w))
		default:
			line = padRight(line, w)
		}
		lines = append(lines, line)
	}
	return lines
}

// messageLines renders the message list pane.
func (m Model) messageLines(w, h int) []string {
	lines := []string{padRight(paneTitleStyle.Render("Messages"), w)}
	msgs := m.machine.Messages()
	if len(msgs) == 0 {
		hint := "(no folder selected)"
		if m.machine.Selection().FolderPath != "" {
			hint = "(empty folder)"
		}
		return append(lines, padRight(mutedStyle.Render(hint), w))
	}

	visible := h - 1
	start := scrollStart(m.machine.MessageCursor(), len(msgs), visible)

	for i := start; i < len(msgs) && i < start+visible; i++ {
		s := msgs[i]
		flag := " "
		switch {
		case s.Malformed:
			flag = "!"
		case s.Unread:
			flag = "*"
		}
		att := " "
		if s.HasAttachments {
			att = "@"
		}
		date := ""
		if !s.Date.IsZero() {
			date = s.Date.Format("Jan 02")
		}
		line := truncateRunes(fmt.Sprintf("%s%s %-6s %s · %s", flag, att, date, s.From, s.Subject), w)

		switch {
		case i == m.machine.MessageCursor() && m.machine.Mode() == nav.ModeList:
			line = cursorRowStyle.Render(padRight(line, w))
		case s.Unread:
			line = unreadRowStyle.Render(padRight(line, w))
		default:
			line = padRight(line, w)
		}
		lines = append(lines, line)
	}
	return lines
}

// contentLines renders the content pane: a title line plus the viewport.
func (m Model) contentLines(w, h int) []string {
	lines := []string{padRight(paneTitleStyle.Render("Content"), w)}
	if m.viewportReady {
		lines = append(lines, strings.Split(m.viewport.View(), "\n")...)
	} else {
		lines = append(lines, wrapText(m.contentText(), w)...)
	}
	for i := range lines {
		lines[i] = padRight(lines[i], w)
	}
	if len(lines) > h {
		lines = lines[:h]
	}
	return lines
}

// contentText builds the text shown in the content pane.
func (m Model) contentText() string {
	switch {
	case m.machine.Loading():
		return mutedStyle.Render("loading...")
	case m.machine.ContentErr() != "":
		return errorStyle.Render(m.machine.ContentErr())
	}

	c := m.machine.Content()
	if c == nil {
		return mutedStyle.Render("nothing selected")
	}

	w, _ := m.contentPaneSize()
	var b strings.Builder
	fmt.Fprintf(&b, "Subject: %s\n", c.Subject)
	if len(c.From) > 0 {
		fmt.Fprintf(&b, "From: %s\n", formatAddresses(c.From))
	}
	if len(c.To) > 0 {
		fmt.Fprintf(&b, "To: %s\n", formatAddresses(c.To))
	}
	if len(c.Cc) > 0 {
		fmt.Fprintf(&b, "Cc: %s\n", formatAddresses(c.Cc))
	}
	if !c.Date.IsZero() {
		fmt.Fprintf(&b, "Date: %s\n", c.Date.Format("Mon, 02 Jan 2006 15:04"))
	}
	b.WriteString("\n")
	b.WriteString(strings.Join(wrapText(c.BodyDisplay(), w), "\n"))

	if len(c.Attachments) > 0 {
		b.WriteString("\n\nAttachments:\n")
		for _, a := range c.Attachments {
			fmt.Fprintf(&b, "  %s (%s, %s)\n", a.Filename, a.ContentType, textutil.FormatSize(a.Size))
		}
	}
	return b.String()
}

// renderHelp draws the key binding overlay centered in the pane area.
func (m Model) renderHelp() string {
	help := strings.Join([]string{
		paneTitleStyle.Render("maildeck keys"),
		"",
		"j/k, up/down     move cursor",
		"enter            open folder / message",
		"l, right         expand folder / open",
		"h, left          collapse folder / back",
		"backspace, esc   back",
		"tab, shift+tab   cycle pane focus",
		"alt+f            toggle folder pane",
		"alt+m            toggle message pane",
		"alt+c            toggle content pane",
		"?                this help",
		"q, ctrl+c        quit",
		"",
		mutedStyle.Render("any key to close"),
	}, "\n")

	return lipgloss.Place(m.width, m.bodyHeight(),
		lipgloss.Center, lipgloss.Center,
		helpStyle.Render(help))
}

// renderStatusBar summarizes where the user is and what is happening.
func (m Model) renderStatusBar() string {
	sel := m.machine.Selection()

	parts := []string{m.machine.Mode().String()}
	if sel.FolderPath != "" {
		parts = append(parts, sel.FolderPath)
		parts = append(parts, fmt.Sprintf("%d messages", len(m.machine.Messages())))
	}
	if m.machine.Loading() {
		parts = append(parts, "loading...")
	}
	if m.err != nil {
		parts = append(parts, errorStyle.Render(m.err.Error()))
	}
	left := strings.Join(parts, " | ")

	right := "? help  q quit"
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		return padRight(statusBarStyle.Render(left), m.width)
	}
	return statusBarStyle.Render(left + strings.Repeat(" ", gap) + right)
}

// scrollStart picks the first visible row so the cursor stays on screen.
func scrollStart(cursor, count, visible int) int {
	if visible <= 0 || count <= visible {
		return 0
	}
	start := cursor - visible/2
	if start < 0 {
		start = 0
	}
	if start > count-visible {
		start = count - visible
	}
	return start
}
