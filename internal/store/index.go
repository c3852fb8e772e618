package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// countConcurrency bounds how many folders are counted at once during a scan.
const countConcurrency = 8

// Options configure an Index.
type Options struct {
	// ScanBudget caps how long one scan spends counting child folders.
	// Children past the deadline stay at zero counts until a later refresh.
	// Zero means no ceiling.
	ScanBudget time.Duration
	Logger     *slog.Logger
}

// Index is a lazy, read-only view over one maildir store. It never writes to
// the store: no flag changes, no new/ to cur/ moves, no tmp/ access. The
// folder tree is held behind an atomic pointer; scans build replacement
// subtrees and swap, so a snapshot handed to a reader never changes under it.
//
// Expand, Refresh, and the other mutating calls must come from a single
// goroutine (the input loop). Tree, Messages, and Content are safe anywhere.
type Index struct {
	root   string
	budget time.Duration
	logger *slog.Logger

	tree atomic.Pointer[FolderNode]

	now func() time.Time // stubbed in budget tests
}

// Open validates root and enumerates its top level. The root must exist and
// be a directory; anything else is ErrStoreUnavailable and the caller should
// treat it as fatal.
func Open(root string, opts Options) (*Index, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s: not a directory", ErrStoreUnavailable, root)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ix := &Index{
		root:   filepath.Clean(root),
		budget: opts.ScanBudget,
		logger: logger.With("component", "store"),
		now:    time.Now,
	}
	top, err := ix.scanChildren(&FolderNode{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	ix.tree.Store(top)
	return ix, nil
}

// Root returns the store root directory.
func (ix *Index) Root() string {
	return ix.root
}

// Tree returns the current folder tree snapshot.
func (ix *Index) Tree() *FolderNode {
	return ix.tree.Load()
}

// Expand enumerates the children of the folder at path, counts them, and
// publishes a new tree with that node replaced. Expanding an already-scanned
// folder is a no-op. Returns the current root either way.
func (ix *Index) Expand(path string) (*FolderNode, error) {
	cur := ix.tree.Load()
	node := cur.Find(path)
	if node == nil {
		return cur, fmt.Errorf("%w: no folder %q", ErrFolderScan, path)
	}
	if node.Scanned {
		return cur, nil
	}
	next, err := ix.scanChildren(node)
	if err != nil {
		return cur, err
	}
	root := cur.replace(next)
	ix.tree.Store(root)
	return root, nil
}

// Refresh re-counts the folder at path and, when it was previously scanned,
// re-enumerates and re-counts its direct children. Subtrees under children
// that survive the rescan are carried over. Publishes and returns the new
// root.
func (ix *Index) Refresh(path string) (*FolderNode, error) {
	cur := ix.tree.Load()
	node := cur.Find(path)
	if node == nil {
		return cur, fmt.Errorf("%w: no folder %q", ErrFolderScan, path)
	}

	next := &FolderNode{
		Name:     node.Name,
		Path:     node.Path,
		Scanned:  node.Scanned,
		Children: node.Children,
	}
	dir, err := ix.abs(path)
	if err != nil {
		return cur, err
	}
	next.Total, next.Unread, err = countMaildir(dir)
	if err != nil {
		return cur, fmt.Errorf("%w: count %s: %v", ErrFolderScan, dir, err)
	}

	if node.Scanned {
		rescanned, err := ix.scanChildren(next)
		if err != nil {
			return cur, err
		}
		prev := make(map[string]*FolderNode, len(node.Children))
		for _, c := range node.Children {
			prev[c.Name] = c
		}
		for i, c := range rescanned.Children {
			if old, ok := prev[c.Name]; ok && old.Scanned {
				cp := *c
				cp.Scanned = true
				cp.Children = old.Children
				rescanned.Children[i] = &cp
			}
		}
		next = rescanned
	}

	root := cur.replace(next)
	ix.tree.Store(root)
	return root, nil
}

// scanChildren returns a copy of node with Scanned set, children enumerated
// from disk, and each child's counts filled in (budget permitting). The copy
// is not yet published, so the count goroutines may write to it directly.
func (ix *Index) scanChildren(node *FolderNode) (*FolderNode, error) {
	dir, err := ix.abs(node.Path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrFolderScan, dir, err)
	}

	next := &FolderNode{
		Name:    node.Name,
		Path:    node.Path,
		Total:   node.Total,
		Unread:  node.Unread,
		Scanned: true,
	}
	for _, e := range entries {
		if !e.IsDir() || skipDir(e.Name()) {
			continue
		}
		next.Children = append(next.Children, &FolderNode{
			Name: e.Name(),
			Path: joinPath(node.Path, e.Name()),
		})
	}
	sortFolders(next.Children, node.Path == "")
	ix.countChildren(next.Children)
	return next, nil
}

// countChildren fills in Total/Unread for freshly built child nodes, a
// bounded number at a time. A child that cannot be counted is logged and left
// at zero; it still appears in the tree.
func (ix *Index) countChildren(children []*FolderNode) {
	var deadline time.Time
	if ix.budget > 0 {
		deadline = ix.now().Add(ix.budget)
	}

	g := new(errgroup.Group)
	g.SetLimit(countConcurrency)
	for i, child := range children {
		if ix.budget > 0 && ix.now().After(deadline) {
			ix.logger.Debug("scan budget exhausted",
				"budget", ix.budget, "uncounted", len(children)-i)
			break
		}
		g.Go(func() error {
			dir, err := ix.abs(child.Path)
			if err == nil {
				child.Total, child.Unread, err = countMaildir(dir)
			}
			if err != nil {
				ix.logger.Warn("count folder", "folder", child.Path, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// countMaildir counts messages in one folder: cur/ plus new/. Everything in
// new/ is unread by construction. A folder without cur/ or new/ is a plain
// container and counts as empty.
func countMaildir(dir string) (total, unread int, err error) {
	curTotal, curUnread, err := countEntries(filepath.Join(dir, "cur"), true)
	if err != nil {
		return 0, 0, err
	}
	newTotal, _, err := countEntries(filepath.Join(dir, "new"), false)
	if err != nil {
		return 0, 0, err
	}
	return curTotal + newTotal, curUnread + newTotal, nil
}

func countEntries(dir string, parseFlags bool) (total, unread int, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, err
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		total++
		if !parseFlags {
			unread++
			continue
		}
		if _, flags := parseKeyAndFlags(e.Name()); !flags.Seen {
			unread++
		}
	}
	return total, unread, nil
}

// abs resolves a slash-joined folder path under the store root, rejecting
// anything that escapes it.
func (ix *Index) abs(path string) (string, error) {
	if path == "" {
		return ix.root, nil
	}
	dir := filepath.Join(ix.root, filepath.FromSlash(path))
	if dir != ix.root && !strings.HasPrefix(dir, ix.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path %q escapes store root", ErrFolderScan, path)
	}
	return dir, nil
}

// skipDir reports whether a directory entry is maildir machinery or hidden
// rather than a subfolder.
func skipDir(name string) bool {
	switch name {
	case "cur", "new", "tmp":
		return true
	}
	return strings.HasPrefix(name, ".")
}
