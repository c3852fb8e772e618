package nav

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/maildeck/maildeck/internal/bus"
	"github.com/maildeck/maildeck/internal/mime"
	"github.com/maildeck/maildeck/internal/store"
)

// fakeIndex is an in-memory Index: a fixed tree plus per-folder summaries
// and contents. Content loads can be forced to fail.
type fakeIndex struct {
	tree     *store.FolderNode
	messages map[string][]store.MessageSummary
	contents map[string]*mime.Content
	loadErr  error

	expandCalls  []string
	refreshCalls []string
}

func (f *fakeIndex) Tree() *store.FolderNode { return f.tree }

func (f *fakeIndex) Expand(path string) (*store.FolderNode, error) {
	f.expandCalls = append(f.expandCalls, path)
	return f.tree, nil
}

func (f *fakeIndex) Refresh(path string) (*store.FolderNode, error) {
	f.refreshCalls = append(f.refreshCalls, path)
	return f.tree, nil
}

func (f *fakeIndex) Messages(path string) ([]store.MessageSummary, error) {
	return f.messages[path], nil
}

func (f *fakeIndex) Content(path, id string) (*mime.Content, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
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
				{Name: "Archive", Path: "Archive", Scanned: true, Children: []*store.FolderNode{
					{Name: "2024", Path: "Archive/2024", Total: 1, Unread: 1, Scanned: true},
				}},
			},
		},
		messages: map[string][]store.MessageSummary{
			"INBOX": {
				{ID: "m2", Subject: "newer"},
				{ID: "m1", Subject: "older"},
			},
			"Archive/2024": {
				{ID: "a1", Subject: "archived"},
			},
		},
		contents: map[string]*mime.Content{
			"INBOX/m1": {Subject: "older", BodyText: "first body"},
			"INBOX/m2": {Subject: "newer", BodyText: "second body"},
		},
	}
}

func newTestMachine(t *testing.T, ix Index) (*Machine, *bus.Bus[Event]) {
	t.Helper()
	b := bus.New[Event](64, nil)
	m := NewMachine(ix, b, nil)
	m.Start()
	return m, b
}

// drain empties a subscriber's queued events without blocking.
func drain(sub *bus.Subscriber[Event]) []Event {
	var out []Event
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestInitialState(t *testing.T) {
	m, b := newTestMachine(t, newFakeIndex())

	if m.Mode() != ModeFolders {
		t.Errorf("Mode() = %v, want ModeFolders", m.Mode())
	}
	sel := m.Selection()
	if sel.FolderPath != "" || sel.MessageID != "" {
		t.Errorf("Selection = %+v, want empty folder and message", sel)
	}
	if sel.Visible != AllPanes {
		t.Errorf("Visible = %v, want all panes", sel.Visible)
	}

	ev, ok := b.Current()
	if !ok {
		t.Fatal("no event published by Start")
	}
	if len(ev.Folders) != 2 {
		t.Fatalf("initial event has %d folder rows, want 2", len(ev.Folders))
	}
	if ev.Folders[0].Name != "INBOX" {
		t.Errorf("first folder row = %q, want INBOX first", ev.Folders[0].Name)
	}
}

func TestActivateFolderLoadsMessages(t *testing.T) {
	m, b := newTestMachine(t, newFakeIndex())

	if req := m.Apply(CmdActivate); req != nil {
		t.Fatalf("folder activate returned load request %+v", req)
	}
	if m.Mode() != ModeList {
		t.Errorf("Mode() = %v, want ModeList", m.Mode())
	}
	if got := m.Selection().FolderPath; got != "INBOX" {
		t.Errorf("FolderPath = %q, want INBOX", got)
	}
	if len(m.Messages()) != 2 {
		t.Fatalf("Messages() has %d entries, want 2", len(m.Messages()))
	}

	ev, _ := b.Current()
	if ev.Mode != ModeList || len(ev.Messages) != 2 {
		t.Errorf("published event mode=%v messages=%d, want list with 2", ev.Mode, len(ev.Messages))
	}
}

func TestActivateMessagePublishesLoadingThenContent(t *testing.T) {
	ix := newFakeIndex()
	m, b := newTestMachine(t, ix)

	m.Apply(CmdActivate) // INBOX
	req := m.Apply(CmdActivate)
	if req == nil {
		t.Fatal("message activate returned no load request")
	}
	if req.Folder != "INBOX" || req.ID != "m2" {
		t.Errorf("load request = %+v, want INBOX/m2", req)
	}

	ev, _ := b.Current()
	if !ev.Loading || ev.Kind != EventNav {
		t.Errorf("event after activate: loading=%v kind=%v, want loading nav event", ev.Loading, ev.Kind)
	}
	if ev.Selection.MessageID != "m2" {
		t.Errorf("published MessageID = %q, want m2 before content arrives", ev.Selection.MessageID)
	}

	c, err := ix.Content(req.Folder, req.ID)
	m.CompleteContent(req.Folder, req.ID, c, err)

	ev, _ = b.Current()
	if ev.Kind != EventContent || ev.Loading {
		t.Errorf("event after completion: kind=%v loading=%v, want content event", ev.Kind, ev.Loading)
	}
	if ev.Content == nil || ev.Content.BodyText != "second body" {
		t.Errorf("event content = %+v, want second body", ev.Content)
	}
}

func TestStaleContentDiscarded(t *testing.T) {
	ix := newFakeIndex()
	m, b := newTestMachine(t, ix)

	m.Apply(CmdActivate)        // INBOX
	reqM := m.Apply(CmdActivate) // select m2, load pending
	m.Apply(CmdBack)             // back to list before it lands
	m.Apply(CmdDown)
	reqN := m.Apply(CmdActivate) // select m1

	before, _ := b.Current()
	m.CompleteContent(reqM.Folder, reqM.ID, &mime.Content{BodyText: "second body"}, nil)
	after, _ := b.Current()

	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("stale completion changed published state:\n%s", diff)
	}
	if m.Content() != nil {
		t.Errorf("Content() = %+v, want nil while the live load is pending", m.Content())
	}

	m.CompleteContent(reqN.Folder, reqN.ID, &mime.Content{BodyText: "first body"}, nil)
	if m.Content() == nil || m.Content().BodyText != "first body" {
		t.Errorf("Content() = %+v, want first body", m.Content())
	}
}

func TestContentErrorsBecomeEvents(t *testing.T) {
	ix := newFakeIndex()
	m, b := newTestMachine(t, ix)

	m.Apply(CmdActivate)
	req := m.Apply(CmdActivate)

	m.CompleteContent(req.Folder, req.ID, nil, fmt.Errorf("%w: m2", store.ErrMessageVanished))

	ev, _ := b.Current()
	if ev.Kind != EventContent {
		t.Fatalf("event kind = %v, want EventContent", ev.Kind)
	}
	if ev.ContentErr == "" || ev.Content != nil {
		t.Errorf("event = %+v, want error and no content", ev)
	}
	if ev.Selection.MessageID != "m2" {
		t.Errorf("MessageID = %q, want selection preserved on failed load", ev.Selection.MessageID)
	}
}

func TestBackFromContentEvictsContent(t *testing.T) {
	ix := newFakeIndex()
	m, _ := newTestMachine(t, ix)

	m.Apply(CmdActivate)
	req := m.Apply(CmdActivate)
	m.CompleteContent(req.Folder, req.ID, &mime.Content{BodyText: "second body"}, nil)

	m.Apply(CmdBack)
	if m.Mode() != ModeList {
		t.Errorf("Mode() = %v, want ModeList", m.Mode())
	}
	if m.Content() != nil {
		t.Error("Content() retained after navigating away")
	}
	if m.Selection().MessageID != "" {
		t.Errorf("MessageID = %q, want cleared", m.Selection().MessageID)
	}
}

func TestTogglePaneInvariants(t *testing.T) {
	ix := newFakeIndex()
	m, _ := newTestMachine(t, ix)
	m.Apply(CmdActivate)
	m.Apply(CmdActivate)

	before := m.Selection()
	m.TogglePane(PaneFolders)
	after := m.Selection()

	if after.FolderPath != before.FolderPath || after.MessageID != before.MessageID {
		t.Errorf("toggle changed folder/message: %+v -> %+v", before, after)
	}
	if after.Visible.Has(PaneFolders) {
		t.Error("PaneFolders still visible after toggle")
	}

	m.TogglePane(PaneFolders)
	if got := m.Selection().Visible; got != before.Visible {
		t.Errorf("double toggle visibility = %v, want original %v", got, before.Visible)
	}
}

func TestTogglePaneMovesFocusOffHiddenPane(t *testing.T) {
	m, _ := newTestMachine(t, newFakeIndex())

	if m.Selection().Focused != PaneFolders {
		t.Fatalf("Focused = %v, want PaneFolders", m.Selection().Focused)
	}
	m.TogglePane(PaneFolders)
	if got := m.Selection().Focused; got == PaneFolders {
		t.Error("focus stayed on a hidden pane")
	}
}

func TestCannotHideLastPane(t *testing.T) {
	m, _ := newTestMachine(t, newFakeIndex())

	m.TogglePane(PaneFolders)
	m.TogglePane(PaneList)
	m.TogglePane(PaneContent) // last one standing

	if got := m.Selection().Visible.Count(); got != 1 {
		t.Errorf("visible pane count = %d, want 1", got)
	}
	if !m.Selection().Visible.Has(PaneContent) {
		t.Error("content pane hidden even though it was the last visible pane")
	}
}

func TestHelpOverlaySuspendsAndRestores(t *testing.T) {
	m, _ := newTestMachine(t, newFakeIndex())
	m.Apply(CmdActivate) // ModeList

	m.Apply(CmdHelp)
	if m.Mode() != ModeHelp {
		t.Fatalf("Mode() = %v, want ModeHelp", m.Mode())
	}

	// Any key exits help without reaching the underlying state.
	cursorBefore := m.MessageCursor()
	m.Apply(CmdDown)
	if m.Mode() != ModeList {
		t.Errorf("Mode() = %v, want ModeList restored", m.Mode())
	}
	if m.MessageCursor() != cursorBefore {
		t.Error("key that dismissed help leaked into the underlying state")
	}
}

func TestExpandAndCollapseFolder(t *testing.T) {
	ix := newFakeIndex()
	m, b := newTestMachine(t, ix)

	m.Apply(CmdDown) // cursor on Archive
	m.Apply(CmdExpand)

	if len(ix.expandCalls) != 1 || ix.expandCalls[0] != "Archive" {
		t.Errorf("expandCalls = %v, want [Archive]", ix.expandCalls)
	}
	ev, _ := b.Current()
	if len(ev.Folders) != 3 {
		t.Fatalf("rows after expand = %d, want 3", len(ev.Folders))
	}
	if ev.Folders[2].Path != "Archive/2024" || ev.Folders[2].Depth != 1 {
		t.Errorf("expanded row = %+v, want Archive/2024 at depth 1", ev.Folders[2])
	}
	if ev.Selection.FolderPath != "" {
		t.Errorf("expand changed Selection.FolderPath to %q", ev.Selection.FolderPath)
	}

	m.Apply(CmdCollapse)
	ev, _ = b.Current()
	if len(ev.Folders) != 2 {
		t.Errorf("rows after collapse = %d, want 2", len(ev.Folders))
	}
}

func TestRefreshFolderKeepsCursorOnSurvivingMessage(t *testing.T) {
	ix := newFakeIndex()
	m, _ := newTestMachine(t, ix)
	m.Apply(CmdActivate) // INBOX
	m.Apply(CmdDown)     // cursor on m1

	// A new message arrives at the top; m1 survives the re-list.
	ix.messages["INBOX"] = []store.MessageSummary{
		{ID: "m3", Subject: "newest"},
		{ID: "m2", Subject: "newer"},
		{ID: "m1", Subject: "older"},
	}
	m.RefreshFolder("INBOX")

	if len(m.Messages()) != 3 {
		t.Fatalf("Messages() = %d entries, want 3", len(m.Messages()))
	}
	if got := m.Messages()[m.MessageCursor()].ID; got != "m1" {
		t.Errorf("cursor message = %q, want m1 kept selected", got)
	}
}

// TestReplayDeterminism drives a command sequence, then checks that a fresh
// subscriber's snapshot plus subsequent events reconstructs the same final
// state the machine reached.
func TestReplayDeterminism(t *testing.T) {
	ix := newFakeIndex()
	m, b := newTestMachine(t, ix)

	sub := b.Subscribe()

	seq := []Command{CmdDown, CmdUp, CmdActivate, CmdDown, CmdActivate, CmdBack, CmdUp, CmdActivate}
	for _, cmd := range seq {
		if req := m.Apply(cmd); req != nil {
			c, err := ix.Content(req.Folder, req.ID)
			m.CompleteContent(req.Folder, req.ID, c, err)
		}
	}

	events := drain(sub)
	if len(events) == 0 {
		t.Fatal("subscriber received no events")
	}

	// Monotonic, gap-free delivery in publish order.
	for i := 1; i < len(events); i++ {
		if events[i].Seq != events[i-1].Seq+1 {
			t.Fatalf("event %d has seq %d after %d", i, events[i].Seq, events[i-1].Seq)
		}
	}

	final := events[len(events)-1]
	if diff := cmp.Diff(m.Selection(), final.Selection); diff != "" {
		t.Errorf("replayed selection differs from machine state:\n%s", diff)
	}
	if final.Mode != m.Mode() {
		t.Errorf("replayed mode = %v, machine mode = %v", final.Mode, m.Mode())
	}

	// The same inputs against a fresh machine land on the same Selection.
	m2, _ := newTestMachine(t, newFakeIndex())
	for _, cmd := range seq {
		if req := m2.Apply(cmd); req != nil {
			c, err := ix.Content(req.Folder, req.ID)
			m2.CompleteContent(req.Folder, req.ID, c, err)
		}
	}
	if diff := cmp.Diff(m.Selection(), m2.Selection()); diff != "" {
		t.Errorf("replay against fresh machine diverged:\n%s", diff)
	}
}

func TestFocusCycleSkipsHiddenPanes(t *testing.T) {
	m, _ := newTestMachine(t, newFakeIndex())
	m.TogglePane(PaneList)

	m.Apply(CmdFocusNext)
	if got := m.Selection().Focused; got != PaneContent {
		t.Errorf("Focused = %v, want PaneContent (list hidden)", got)
	}
	m.Apply(CmdFocusNext)
	if got := m.Selection().Focused; got != PaneFolders {
		t.Errorf("Focused = %v, want wrap to PaneFolders", got)
	}
	m.Apply(CmdFocusPrev)
	if got := m.Selection().Focused; got != PaneContent {
		t.Errorf("Focused = %v, want PaneContent going backwards", got)
	}
}

func TestUnknownContentErrorSurfaced(t *testing.T) {
	ix := newFakeIndex()
	ix.loadErr = errors.New("disk exploded")
	m, b := newTestMachine(t, ix)
	m.Apply(CmdActivate)
	req := m.Apply(CmdActivate)

	_, err := ix.Content(req.Folder, req.ID)
	m.CompleteContent(req.Folder, req.ID, nil, err)

	ev, _ := b.Current()
	if ev.ContentErr != "disk exploded" {
		t.Errorf("ContentErr = %q, want underlying message for unknown errors", ev.ContentErr)
	}
}
