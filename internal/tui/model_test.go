package tui

import (
	"strings"
	"testing"

	"github.com/maildeck/maildeck/internal/nav"
	"github.com/maildeck/maildeck/internal/store"
)

func TestKeyNavigationMovesCursor(t *testing.T) {
	m := newTestModel(t, newFakeIndex(), nil)

	m, _ = press(t, m, "j")
	if got := m.machine.FolderCursor(); got != 1 {
		t.Errorf("cursor after j = %d, want 1", got)
	}
	m, _ = press(t, m, "k")
	if got := m.machine.FolderCursor(); got != 0 {
		t.Errorf("cursor after k = %d, want 0", got)
	}
}

func TestEnterOpensFolderThenMessage(t *testing.T) {
	m := newTestModel(t, newFakeIndex(), nil)

	m, cmd := press(t, m, "enter")
	if cmd != nil {
		t.Error("folder activation returned a command; summaries load inline")
	}
	if m.machine.Mode() != nav.ModeList {
		t.Fatalf("mode = %v, want list", m.machine.Mode())
	}

	m, cmd = press(t, m, "enter")
	if cmd == nil {
		t.Fatal("message activation returned no load command")
	}
	if !m.machine.Loading() {
		t.Error("machine not in loading state while content load is in flight")
	}

	// Run the load worker and deliver its result.
	msg := cmd()
	loaded, ok := msg.(contentLoadedMsg)
	if !ok {
		t.Fatalf("load command returned %T, want contentLoadedMsg", msg)
	}
	if loaded.id != "m2" || loaded.err != nil {
		t.Fatalf("loaded = %+v, want m2 with no error", loaded)
	}

	next, _ := m.Update(loaded)
	m = next.(Model)
	if m.machine.Loading() {
		t.Error("still loading after completion delivered")
	}
	if c := m.machine.Content(); c == nil || c.BodyText != "body of second" {
		t.Errorf("content = %+v, want body of second", c)
	}
}

func TestStaleLoadResultIgnored(t *testing.T) {
	m := newTestModel(t, newFakeIndex(), nil)

	m, _ = press(t, m, "enter") // INBOX
	m, cmdM := press(t, m, "enter") // open m2, load pending
	m, _ = press(t, m, "esc")   // back before it lands
	m, _ = press(t, m, "j")
	m, cmdN := press(t, m, "enter") // open m1

	// m2's late result arrives after the user moved to m1.
	next, _ := m.Update(cmdM())
	m = next.(Model)
	if c := m.machine.Content(); c != nil {
		t.Errorf("stale result applied: content = %+v", c)
	}

	next, _ = m.Update(cmdN())
	m = next.(Model)
	if c := m.machine.Content(); c == nil || c.BodyText != "body of first" {
		t.Errorf("content = %+v, want body of first", c)
	}

	forceColorProfile(t)
	view := stripANSI(m.View())
	if strings.Contains(view, "body of second") {
		t.Error("view shows the stale message's body")
	}
}

func TestVanishedMessageShowsError(t *testing.T) {
	ix := newFakeIndex()
	delete(ix.contents, "INBOX/m2")
	m := newTestModel(t, ix, nil)

	m, _ = press(t, m, "enter")
	m, cmd := press(t, m, "enter")
	next, _ := m.Update(cmd())
	m = next.(Model)

	if m.machine.ContentErr() == "" {
		t.Fatal("no content error after vanished message load")
	}
	forceColorProfile(t)
	if !strings.Contains(stripANSI(m.View()), "no longer exists") {
		t.Error("view does not surface the vanished-message error")
	}
	if got := m.machine.Selection().MessageID; got != "m2" {
		t.Errorf("MessageID = %q, want selection intact after failed load", got)
	}
}

func TestWatchMsgRefreshesSelectedFolder(t *testing.T) {
	ix := newFakeIndex()
	m := newTestModel(t, ix, nil)
	m, _ = press(t, m, "enter")

	arrived := store.MessageSummary{ID: "m3", From: "cy@example.com", Subject: "third", Unread: true}
	ix.messages["INBOX"] = append([]store.MessageSummary{arrived}, ix.messages["INBOX"]...)
	next, _ := m.Update(WatchMsg{Folder: "INBOX"})
	m = next.(Model)

	if len(m.machine.Messages()) != 3 {
		t.Errorf("messages after watch refresh = %d, want 3", len(m.machine.Messages()))
	}
}

func TestWatcherFollowsSelectedFolder(t *testing.T) {
	w := &recordingWatcher{}
	m := newTestModel(t, newFakeIndex(), w)

	m, _ = press(t, m, "enter")
	if len(w.folders) != 1 || w.folders[0] != "INBOX" {
		t.Errorf("watcher folders = %v, want [INBOX]", w.folders)
	}

	// Moving within the folder does not re-point the watcher.
	m, _ = press(t, m, "j")
	if len(w.folders) != 1 {
		t.Errorf("watcher re-pointed on cursor move: %v", w.folders)
	}
}

func TestQuitKeys(t *testing.T) {
	for _, key := range []string{"q", "ctrl+c"} {
		m := newTestModel(t, newFakeIndex(), nil)
		m, cmd := press(t, m, key)
		if cmd == nil {
			t.Errorf("%s returned no command, want tea.Quit", key)
			continue
		}
		if !m.quitting {
			t.Errorf("%s did not set quitting", key)
		}
	}
}
