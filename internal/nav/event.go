package nav

import (
	"fmt"

	"github.com/maildeck/maildeck/internal/mime"
	"github.com/maildeck/maildeck/internal/store"
)

// Mode is the state machine's current state. Outside the help overlay it
// mirrors the focused pane.
type Mode int

const (
	ModeFolders Mode = iota
	ModeList
	ModeContent
	ModeHelp
)

// String returns the mode's wire/display name.
func (m Mode) String() string {
	switch m {
	case ModeFolders:
		return "folders"
	case ModeList:
		return "list"
	case ModeContent:
		return "content"
	case ModeHelp:
		return "help"
	default:
		return "unknown"
	}
}

// MarshalText makes modes readable in JSON payloads.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses a wire name back into a mode.
func (m *Mode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "folders":
		*m = ModeFolders
	case "list":
		*m = ModeList
	case "content":
		*m = ModeContent
	case "help":
		*m = ModeHelp
	default:
		return fmt.Errorf("unknown mode %q", text)
	}
	return nil
}

// EventKind distinguishes navigation transitions from content-load
// completions on the change stream.
type EventKind int

const (
	EventNav EventKind = iota
	EventContent
)

// String returns the kind's wire name.
func (k EventKind) String() string {
	if k == EventContent {
		return "content"
	}
	return "nav"
}

// MarshalText makes kinds readable in JSON payloads.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a wire name back into a kind.
func (k *EventKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "nav":
		*k = EventNav
	case "content":
		*k = EventContent
	default:
		return fmt.Errorf("unknown event kind %q", text)
	}
	return nil
}

// FolderRow is one visible line of the folder tree, flattened for display.
type FolderRow struct {
	Path       string `json:"path"`
	Name       string `json:"name"`
	Depth      int    `json:"depth"`
	Unread     int    `json:"unread"`
	Total      int    `json:"total"`
	Expanded   bool   `json:"expanded"`
	Expandable bool   `json:"expandable"`
}

// Event is one full-state snapshot on the change stream. Every event carries
// everything a view needs to render, so a subscriber can join at any point
// and never has to reassemble diffs.
type Event struct {
	Seq        uint64                 `json:"seq"`
	Kind       EventKind              `json:"kind"`
	Mode       Mode                   `json:"mode"`
	Selection  Selection              `json:"selection"`
	Folders    []FolderRow            `json:"folders"`
	Messages   []store.MessageSummary `json:"messages"`
	Content    *mime.Content          `json:"content,omitempty"`
	ContentErr string                 `json:"content_error,omitempty"`
	Loading    bool                   `json:"loading"`
}
