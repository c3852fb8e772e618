package nav

import (
	"errors"
	"log/slog"

	"github.com/maildeck/maildeck/internal/bus"
	"github.com/maildeck/maildeck/internal/mime"
	"github.com/maildeck/maildeck/internal/store"
)

// Command is one discrete navigation input.
type Command int

const (
	CmdDown Command = iota
	CmdUp
	CmdActivate
	CmdBack
	CmdFocusNext
	CmdFocusPrev
	CmdExpand
	CmdCollapse
	CmdHelp
)

// Index is the read-only store view the machine navigates over. The machine
// is the only component holding a handle that can trigger scans; network
// observers never get one.
type Index interface {
	Tree() *store.FolderNode
	Expand(path string) (*store.FolderNode, error)
	Refresh(path string) (*store.FolderNode, error)
	Messages(path string) ([]store.MessageSummary, error)
	Content(path, id string) (*mime.Content, error)
}

// LoadRequest asks the machine's owner to load one message's content off the
// input loop and report back via CompleteContent with the same identifiers.
type LoadRequest struct {
	Folder string
	ID     string
}

// Machine advances the navigation state. All calls must come from a single
// goroutine (the input loop); the machine publishes a snapshot event to the
// bus on every Selection or mode change, and publishing never blocks.
type Machine struct {
	index  Index
	bus    *bus.Bus[Event]
	logger *slog.Logger

	mode     Mode
	prevMode Mode // mode under the help overlay
	sel      Selection

	tree         *store.FolderNode
	expanded     map[string]bool
	rows         []FolderRow
	folderCursor int

	messages  []store.MessageSummary
	msgCursor int

	// At most one message's content is materialized at a time; navigating
	// away evicts it. Deliberately no cache: reloads are cheap and a cache
	// would be one more thing to invalidate.
	content    *mime.Content
	contentErr string
	loading    bool

	seq uint64
}

// NewMachine builds a machine over index, publishing to b. Call Start to
// publish the initial state.
func NewMachine(index Index, b *bus.Bus[Event], logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Machine{
		index:    index,
		bus:      b,
		logger:   logger.With("component", "nav"),
		mode:     ModeFolders,
		expanded: make(map[string]bool),
		sel: Selection{
			Focused: PaneFolders,
			Visible: AllPanes,
		},
	}
	m.tree = index.Tree()
	m.rebuildRows()
	return m
}

// Start publishes the initial snapshot so subscribers joining before any
// keypress still see the folder tree.
func (m *Machine) Start() {
	m.publish(EventNav)
}

// Apply runs one command through the transition table. The returned
// LoadRequest, when non-nil, must be serviced off the input loop and
// completed via CompleteContent.
func (m *Machine) Apply(cmd Command) *LoadRequest {
	if m.mode == ModeHelp {
		// Help swallows every key; the first one restores the prior mode.
		m.mode = m.prevMode
		m.publish(EventNav)
		return nil
	}
	if cmd == CmdHelp {
		m.prevMode = m.mode
		m.mode = ModeHelp
		m.publish(EventNav)
		return nil
	}

	switch m.mode {
	case ModeFolders:
		return m.applyFolders(cmd)
	case ModeList:
		return m.applyList(cmd)
	case ModeContent:
		m.applyContent(cmd)
	}
	return nil
}

func (m *Machine) applyFolders(cmd Command) *LoadRequest {
	switch cmd {
	case CmdDown:
		if m.folderCursor < len(m.rows)-1 {
			m.folderCursor++
		}
	case CmdUp:
		if m.folderCursor > 0 {
			m.folderCursor--
		}
	case CmdExpand:
		m.expandCursor()
	case CmdCollapse:
		m.collapseCursor()
	case CmdActivate:
		m.activateFolder()
	case CmdFocusNext:
		m.cycleFocus(1)
	case CmdFocusPrev:
		m.cycleFocus(-1)
	}
	return nil
}

func (m *Machine) applyList(cmd Command) *LoadRequest {
	switch cmd {
	case CmdDown:
		if m.msgCursor < len(m.messages)-1 {
			m.msgCursor++
		}
	case CmdUp:
		if m.msgCursor > 0 {
			m.msgCursor--
		}
	case CmdActivate:
		return m.activateMessage()
	case CmdBack:
		m.mode = ModeFolders
		m.sel = m.sel.withFocus(PaneFolders)
		m.publish(EventNav)
	case CmdFocusNext:
		m.cycleFocus(1)
	case CmdFocusPrev:
		m.cycleFocus(-1)
	}
	return nil
}

func (m *Machine) applyContent(cmd Command) {
	switch cmd {
	case CmdBack:
		// Leaving the message evicts its content.
		m.sel = m.sel.withMessage("")
		m.content = nil
		m.contentErr = ""
		m.loading = false
		m.mode = ModeList
		m.sel = m.sel.withFocus(PaneList)
		m.publish(EventNav)
	case CmdFocusNext:
		m.cycleFocus(1)
	case CmdFocusPrev:
		m.cycleFocus(-1)
	}
}

// expandCursor lazily enumerates the cursor folder's children.
func (m *Machine) expandCursor() {
	row, ok := m.cursorRow()
	if !ok || !row.Expandable || m.expanded[row.Path] {
		return
	}
	if _, err := m.index.Expand(row.Path); err != nil {
		m.logger.Warn("expand folder", "folder", row.Path, "error", err)
	}
	m.tree = m.index.Tree()
	m.expanded[row.Path] = true
	m.rebuildRows()
	m.publish(EventNav)
}

func (m *Machine) collapseCursor() {
	row, ok := m.cursorRow()
	if !ok || !m.expanded[row.Path] {
		return
	}
	delete(m.expanded, row.Path)
	m.rebuildRows()
	m.publish(EventNav)
}

// activateFolder selects the cursor folder and loads its summaries. The
// header-only listing is cheap enough to run inline.
func (m *Machine) activateFolder() {
	row, ok := m.cursorRow()
	if !ok {
		return
	}
	msgs, err := m.index.Messages(row.Path)
	if err != nil {
		m.logger.Warn("list folder", "folder", row.Path, "error", err)
		msgs = nil
	}
	m.messages = msgs
	m.msgCursor = 0
	m.content = nil
	m.contentErr = ""
	m.loading = false
	m.sel = m.sel.withFolder(row.Path).withFocus(PaneList)
	m.mode = ModeList
	m.publish(EventNav)
}

// activateMessage selects the cursor message and publishes immediately with
// Loading set, so every view can show an indicator while the parse runs
// elsewhere. The load itself is the caller's job.
func (m *Machine) activateMessage() *LoadRequest {
	if m.msgCursor >= len(m.messages) {
		return nil
	}
	id := m.messages[m.msgCursor].ID
	m.sel = m.sel.withMessage(id).withFocus(PaneContent)
	m.mode = ModeContent
	m.content = nil
	m.contentErr = ""
	m.loading = true
	m.publish(EventNav)
	return &LoadRequest{Folder: m.sel.FolderPath, ID: id}
}

// CompleteContent delivers the result of a LoadRequest. Results for anything
// other than the currently selected message are stale and discarded, so a
// late or failed load can never corrupt navigation state.
func (m *Machine) CompleteContent(folder, id string, c *mime.Content, err error) {
	if folder != m.sel.FolderPath || id != m.sel.MessageID {
		m.logger.Debug("stale content load discarded", "folder", folder, "id", id)
		return
	}
	m.loading = false
	m.content = c
	m.contentErr = ""
	if err != nil {
		m.content = nil
		switch {
		case errors.Is(err, store.ErrMessageVanished):
			m.contentErr = "message no longer exists"
		case errors.Is(err, store.ErrMalformedMessage):
			m.contentErr = "message could not be parsed"
		default:
			m.contentErr = err.Error()
		}
	}
	m.publish(EventContent)
}

// TogglePane flips one pane's visibility. Folder and message cursors and the
// Selection's folder/message never change; hiding the focused pane moves
// focus to the first visible one, and the last visible pane cannot be hidden.
func (m *Machine) TogglePane(p Pane) {
	vis := m.sel.Visible.Toggle(p)
	if vis.Count() == 0 {
		return
	}
	m.sel.Visible = vis
	if !vis.Has(m.sel.Focused) {
		for _, cand := range panes {
			if vis.Has(cand) {
				m.setFocus(cand)
				break
			}
		}
	}
	m.publish(EventNav)
}

// RefreshFolder re-scans one folder after an external change. When it is the
// selected folder its listing is re-read, keeping the cursor on the same
// message when it survived.
func (m *Machine) RefreshFolder(path string) {
	if _, err := m.index.Refresh(path); err != nil {
		m.logger.Warn("refresh folder", "folder", path, "error", err)
		return
	}
	m.tree = m.index.Tree()
	m.rebuildRows()

	if path == m.sel.FolderPath && m.sel.FolderPath != "" {
		var keep string
		if m.msgCursor < len(m.messages) {
			keep = m.messages[m.msgCursor].ID
		}
		msgs, err := m.index.Messages(path)
		if err != nil {
			m.logger.Warn("relist folder", "folder", path, "error", err)
		} else {
			m.messages = msgs
			m.msgCursor = 0
			for i, s := range msgs {
				if s.ID == keep {
					m.msgCursor = i
					break
				}
			}
		}
	}
	m.publish(EventNav)
}

// cycleFocus moves focus through the visible panes in layout order.
func (m *Machine) cycleFocus(dir int) {
	n := len(panes)
	cur := int(m.sel.Focused)
	for i := 1; i <= n; i++ {
		next := Pane((cur + dir*i%n + n) % n)
		if m.sel.Visible.Has(next) {
			m.setFocus(next)
			m.publish(EventNav)
			return
		}
	}
}

// setFocus points focus at p and aligns the mode with it.
func (m *Machine) setFocus(p Pane) {
	m.sel = m.sel.withFocus(p)
	switch p {
	case PaneFolders:
		m.mode = ModeFolders
	case PaneList:
		m.mode = ModeList
	case PaneContent:
		m.mode = ModeContent
	}
}

func (m *Machine) cursorRow() (FolderRow, bool) {
	if m.folderCursor >= len(m.rows) {
		return FolderRow{}, false
	}
	return m.rows[m.folderCursor], true
}

// rebuildRows flattens the tree into display rows, descending only into
// folders the user has expanded. The cursor is clamped to the new row count.
func (m *Machine) rebuildRows() {
	m.rows = m.rows[:0]
	m.flatten(m.tree, 0)
	if m.folderCursor >= len(m.rows) && len(m.rows) > 0 {
		m.folderCursor = len(m.rows) - 1
	}
}

func (m *Machine) flatten(node *store.FolderNode, depth int) {
	if node == nil {
		return
	}
	for _, c := range node.Children {
		// An unscanned folder may have children we have not looked for yet;
		// it stays expandable until a scan proves otherwise.
		m.rows = append(m.rows, FolderRow{
			Path:       c.Path,
			Name:       c.Name,
			Depth:      depth,
			Unread:     c.Unread,
			Total:      c.Total,
			Expanded:   m.expanded[c.Path],
			Expandable: !c.Scanned || len(c.Children) > 0,
		})
		if m.expanded[c.Path] {
			m.flatten(c, depth+1)
		}
	}
}

// publish snapshots the machine into an event and hands it to the bus. The
// bus never blocks, so control returns to the input loop immediately.
func (m *Machine) publish(kind EventKind) {
	m.seq++
	m.bus.Publish(m.snapshotEvent(kind))
}

func (m *Machine) snapshotEvent(kind EventKind) Event {
	ev := Event{
		Seq:        m.seq,
		Kind:       kind,
		Mode:       m.mode,
		Selection:  m.sel,
		Loading:    m.loading,
		ContentErr: m.contentErr,
		Content:    m.content,
	}
	ev.Folders = append(ev.Folders, m.rows...)
	ev.Messages = append(ev.Messages, m.messages...)
	return ev
}

// Accessors for the terminal renderer, which reads the machine directly from
// the same goroutine instead of round-tripping through the bus.

func (m *Machine) Mode() Mode                       { return m.mode }
func (m *Machine) Selection() Selection             { return m.sel }
func (m *Machine) FolderRows() []FolderRow          { return m.rows }
func (m *Machine) FolderCursor() int                { return m.folderCursor }
func (m *Machine) Messages() []store.MessageSummary { return m.messages }
func (m *Machine) MessageCursor() int               { return m.msgCursor }
func (m *Machine) Content() *mime.Content           { return m.content }
func (m *Machine) ContentErr() string               { return m.contentErr }
func (m *Machine) Loading() bool                    { return m.loading }
