package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/maildeck/maildeck/internal/store"
)

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "Print the folder tree and exit",
	Long: `Print every folder in the store with its message counts, one per line.

Useful for checking what maildeck sees without opening the UI.`,
	RunE: runFolders,
}

func init() {
	rootCmd.AddCommand(foldersCmd)
}

func runFolders(cmd *cobra.Command, args []string) error {
	ix, err := openIndex()
	if err != nil {
		return err
	}

	root, err := expandAll(ix, ix.Tree())
	if err != nil {
		return err
	}

	printTree(cmd, root, 0)
	return nil
}

// expandAll walks the whole tree, scanning every folder. Subtrees that fail
// to scan are logged by the index and simply stay leaf nodes here.
func expandAll(ix *store.Index, node *store.FolderNode) (*store.FolderNode, error) {
	queue := []*store.FolderNode{node}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if !n.Scanned {
			if _, err := ix.Expand(n.Path); err != nil {
				continue
			}
		}
		// Re-find in the current tree: Expand published a replacement node.
		cur := ix.Tree().Find(n.Path)
		if cur == nil && n.Path == "" {
			cur = ix.Tree()
		}
		if cur != nil {
			queue = append(queue, cur.Children...)
		}
	}
	return ix.Tree(), nil
}

func printTree(cmd *cobra.Command, node *store.FolderNode, depth int) {
	for _, c := range node.Children {
		cmd.Printf("%s%s (%d unread / %d total)\n",
			strings.Repeat("  ", depth), c.Name, c.Unread, c.Total)
		printTree(cmd, c, depth+1)
	}
}
