// Package tui provides the terminal interface for maildeck.
package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/maildeck/maildeck/internal/mime"
	"github.com/maildeck/maildeck/internal/nav"
)

// Options configuration for the TUI.
type Options struct {
	Version string
}

// Watcher re-points live refresh at the selected folder. Satisfied by
// store.Watcher; nil disables live updates.
type Watcher interface {
	Watch(folder string)
}

// Model is the terminal front end, following the Elm architecture. It owns
// the navigation machine and is the single goroutine that mutates it; async
// work (content loads, watch notifications) re-enters through messages.
type Model struct {
	machine *nav.Machine
	index   nav.Index
	watcher Watcher
	version string

	width  int
	height int

	// Content pane scrolling. Other panes scroll by cursor.
	viewport      viewport.Model
	viewportReady bool

	err      error
	quitting bool
}

// New creates a TUI model over an already-started machine. watcher may be
// nil when live refresh is disabled.
func New(machine *nav.Machine, index nav.Index, watcher Watcher, opts Options) Model {
	return Model{
		machine: machine,
		index:   index,
		watcher: watcher,
		version: opts.Version,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// contentLoadedMsg carries one finished content load back to the update
// loop, stamped with the identifiers it was requested for.
type contentLoadedMsg struct {
	folder  string
	id      string
	content *mime.Content
	err     error
}

// WatchMsg reports an external change to a folder. The watcher goroutine
// posts it into the program with Send.
type WatchMsg struct {
	Folder string
}

// loadContent parses one message off the input loop. The machine has
// already published the selection with a loading flag; this only delivers
// the body later.
func (m Model) loadContent(req *nav.LoadRequest) tea.Cmd {
	return func() (msg tea.Msg) {
		// Recover from parser panics so one broken message cannot take
		// down the terminal.
		defer func() {
			if r := recover(); r != nil {
				msg = contentLoadedMsg{folder: req.Folder, id: req.ID, err: fmt.Errorf("content load panic: %v", r)}
			}
		}()

		c, err := m.index.Content(req.Folder, req.ID)
		return contentLoadedMsg{folder: req.Folder, id: req.ID, content: c, err: err}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case contentLoadedMsg:
		// The machine discards results for anything no longer selected.
		m.machine.CompleteContent(msg.folder, msg.id, msg.content, msg.err)
		m.syncViewport()
		return m, nil

	case WatchMsg:
		m.machine.RefreshFolder(msg.Folder)
		return m, nil
	}

	return m, nil
}

// apply routes one command through the machine and services any content
// load it requests.
func (m Model) apply(cmd nav.Command) (Model, tea.Cmd) {
	folderBefore := m.machine.Selection().FolderPath
	req := m.machine.Apply(cmd)

	if folder := m.machine.Selection().FolderPath; folder != folderBefore && m.watcher != nil {
		m.watcher.Watch(folder)
	}
	m.syncViewport()

	if req != nil {
		return m, m.loadContent(req)
	}
	return m, nil
}

// syncViewport reloads the content pane text after anything that may have
// changed it.
func (m *Model) syncViewport() {
	if !m.viewportReady {
		return
	}
	m.viewport.SetContent(m.contentText())
	m.viewport.GotoTop()
}

func (m *Model) resizeViewport() {
	w, h := m.contentPaneSize()
	if !m.viewportReady {
		m.viewport = viewport.New(w, h)
		m.viewportReady = true
		m.viewport.SetContent(m.contentText())
		return
	}
	m.viewport.Width = w
	m.viewport.Height = h
}
