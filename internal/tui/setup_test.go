package tui

import (
	"fmt"
	"regexp"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/maildeck/maildeck/internal/bus"
	"github.com/maildeck/maildeck/internal/mime"
	"github.com/maildeck/maildeck/internal/nav"
	"github.com/maildeck/maildeck/internal/store"
)

// colorProfileMu serializes tests that mutate the global lipgloss color profile.
var colorProfileMu sync.Mutex

// forceColorProfile pins lipgloss to ASCII output so rendered views are
// stable strings regardless of the terminal running the tests.
func forceColorProfile(t *testing.T) {
	t.Helper()
	colorProfileMu.Lock()
	orig := lipgloss.ColorProfile()
	lipgloss.SetColorProfile(termenv.Ascii)
	t.Cleanup(func() {
		lipgloss.SetColorProfile(orig)
		colorProfileMu.Unlock()
	})
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// fakeIndex is an in-memory nav.Index for driving the model without a
// maildir on disk.
type fakeIndex struct {
	tree     *store.FolderNode
	messages map[string][]store.MessageSummary
	contents map[string]*mime.Content
}

func (f *fakeIndex) Tree() *store.FolderNode { return f.tree }

func (f *fakeIndex) Expand(string) (*store.FolderNode, error)  { return f.tree, nil }
func (f *fakeIndex) Refresh(string) (*store.FolderNode, error) { return f.tree, nil }

func (f *fakeIndex) Messages(path string) ([]store.MessageSummary, error) {
	return f.messages[path], nil
}

func (f *fakeIndex) Content(path, id string) (*mime.Content, error) {
	c, ok := f.contents[path+"/"+id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrMessageVanished, id)
	}
	return c, nil
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		tree: &store.FolderNode{
			Scanned: true,
			Children: []*store.FolderNode{
				{Name: "INBOX", Path: "INBOX", Total: 2, Unread: 1, Scanned: true},
				{Name: "Archive", Path: "Archive", Scanned: true},
			},
		},
		messages: map[string][]store.MessageSummary{
			"INBOX": {
				{ID: "m2", From: "ana@example.com", Subject: "second", Unread: true},
				{ID: "m1", From: "bob@example.com", Subject: "first"},
			},
		},
		contents: map[string]*mime.Content{
			"INBOX/m1": {Subject: "first", BodyText: "body of first"},
			"INBOX/m2": {Subject: "second", BodyText: "body of second"},
		},
	}
}

// recordingWatcher remembers Watch calls for assertions.
type recordingWatcher struct {
	folders []string
}

func (w *recordingWatcher) Watch(folder string) {
	w.folders = append(w.folders, folder)
}

// newTestModel builds a sized model over a fake index with the machine
// already started.
func newTestModel(t *testing.T, ix *fakeIndex, w Watcher) Model {
	t.Helper()
	b := bus.New[nav.Event](64, nil)
	machine := nav.NewMachine(ix, b, nil)
	machine.Start()

	m := New(machine, ix, w, Options{Version: "test"})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 36})
	return next.(Model)
}

// press sends one key string through the model.
func press(t *testing.T, m Model, key string) (Model, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		msg = tea.KeyMsg{Type: tea.KeyShiftTab}
	case "backspace":
		msg = tea.KeyMsg{Type: tea.KeyBackspace}
	case "ctrl+c":
		msg = tea.KeyMsg{Type: tea.KeyCtrlC}
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "alt+f", "alt+m", "alt+c":
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key[4:]), Alt: true}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}
