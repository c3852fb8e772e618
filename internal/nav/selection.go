// Package nav owns navigation state: the Selection value shared by every
// view and the state machine that advances it.
package nav

// Pane identifies one of the independently toggleable terminal regions.
type Pane int

const (
	PaneFolders Pane = iota
	PaneList
	PaneContent
)

// String returns the pane's display name.
func (p Pane) String() string {
	switch p {
	case PaneFolders:
		return "folders"
	case PaneList:
		return "list"
	case PaneContent:
		return "content"
	default:
		return "unknown"
	}
}

// panes lists all panes in layout order, left to right.
var panes = []Pane{PaneFolders, PaneList, PaneContent}

// PaneSet is a visibility bitmask over the three panes.
type PaneSet uint8

// AllPanes has every pane visible, the startup layout.
const AllPanes = PaneSet(1<<PaneFolders | 1<<PaneList | 1<<PaneContent)

// Has reports whether p is visible in the set.
func (s PaneSet) Has(p Pane) bool {
	return s&(1<<p) != 0
}

// Toggle returns the set with p's visibility flipped.
func (s PaneSet) Toggle(p Pane) PaneSet {
	return s ^ (1 << p)
}

// Count returns how many panes are visible.
func (s PaneSet) Count() int {
	n := 0
	for _, p := range panes {
		if s.Has(p) {
			n++
		}
	}
	return n
}

// Selection is where the user currently is. It has value semantics: every
// transition builds a new Selection, none mutates one in place, so a copy
// handed to a renderer or a network subscriber can never change under it.
type Selection struct {
	FolderPath string  `json:"folder_path"`
	MessageID  string  `json:"message_id,omitempty"`
	Focused    Pane    `json:"focused_pane"`
	Visible    PaneSet `json:"visible_panes"`
}

// withFolder returns the selection pointed at a folder, with any message
// selection cleared.
func (s Selection) withFolder(path string) Selection {
	s.FolderPath = path
	s.MessageID = ""
	return s
}

// withMessage returns the selection pointed at a message in the current folder.
func (s Selection) withMessage(id string) Selection {
	s.MessageID = id
	return s
}

// withFocus returns the selection with focus moved to p.
func (s Selection) withFocus(p Pane) Selection {
	s.Focused = p
	return s
}
