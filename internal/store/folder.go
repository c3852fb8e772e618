package store

import (
	"fmt"
	"sort"
	"strings"
)

// FolderNode is one folder in the store tree. Nodes are immutable once
// published: every rescan builds a replacement node and the index swaps the
// whole tree atomically, so readers hold consistent snapshots without locks.
type FolderNode struct {
	Name     string // last path segment; empty for the root
	Path     string // slash-joined, relative to the store root
	Unread   int    // entries without the seen flag, as of the last scan
	Total    int    // entries in cur/ plus new/, as of the last scan
	Scanned  bool   // children have been enumerated
	Children []*FolderNode
}

// Find returns the node at path within this subtree, or nil.
func (n *FolderNode) Find(path string) *FolderNode {
	if n == nil {
		return nil
	}
	if path == n.Path {
		return n
	}
	if !isAncestor(n.Path, path) {
		return nil
	}
	rel := path
	if n.Path != "" {
		rel = strings.TrimPrefix(path, n.Path+"/")
	}
	seg, _, _ := strings.Cut(rel, "/")
	for _, c := range n.Children {
		if c.Name == seg {
			return c.Find(path)
		}
	}
	return nil
}

// DisplayName renders the folder for list rows: "Name (unread)" when any
// messages are unread.
func (n *FolderNode) DisplayName() string {
	name := n.Name
	if name == "" {
		name = "/"
	}
	if n.Unread > 0 {
		return fmt.Sprintf("%s (%d)", name, n.Unread)
	}
	return name
}

// replace returns a copy of the tree rooted at n with the node at
// target.Path swapped for target. Only nodes on the path to the target are
// copied; all other subtrees are shared with the original.
func (n *FolderNode) replace(target *FolderNode) *FolderNode {
	if n.Path == target.Path {
		return target
	}
	if !isAncestor(n.Path, target.Path) {
		return n
	}
	cp := *n
	cp.Children = make([]*FolderNode, len(n.Children))
	for i, c := range n.Children {
		cp.Children[i] = c.replace(target)
	}
	return &cp
}

// isAncestor reports whether path lies strictly inside ancestor. The root
// (empty path) is an ancestor of everything.
func isAncestor(ancestor, path string) bool {
	if ancestor == path {
		return false
	}
	if ancestor == "" {
		return true
	}
	return strings.HasPrefix(path, ancestor+"/")
}

// sortFolders orders children by name. At the top level INBOX sorts first,
// matching how every mail client presents a store.
func sortFolders(nodes []*FolderNode, topLevel bool) {
	sort.Slice(nodes, func(i, j int) bool {
		if topLevel {
			iInbox := nodes[i].Name == "INBOX"
			jInbox := nodes[j].Name == "INBOX"
			if iInbox != jInbox {
				return iInbox
			}
		}
		return nodes[i].Name < nodes[j].Name
	})
}

// joinPath joins slash-separated folder paths, treating "" as the root.
func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}
