// Package churn maintains a mirror of a repository tree that remembers, per
// node, the object id it was last inspected at, and counts how many applied
// revisions changed each file. Subtrees whose id did not change are skipped
// without being read.
package churn

import (
	"context"
	"fmt"

	"github.com/Sumatoshi-tech/treechurn/pkg/vcs"
)

// Node is a mirrored tree node: either *File or *Dir.
type Node interface {
	// LastRevision returns the id of the snapshot most recently applied to the node.
	LastRevision() vcs.Hash

	node()
}

// File is a tracked file.
type File struct {
	Revision vcs.Hash
	// Changes counts applied revisions at which the file's id differed.
	Changes int
}

// Dir is a tracked directory. Revision is the id of the directory's own tree.
type Dir struct {
	Revision vcs.Hash
	Children map[string]Node
}

// LastRevision implements Node.
func (f *File) LastRevision() vcs.Hash { return f.Revision }

// LastRevision implements Node.
func (d *Dir) LastRevision() vcs.Hash { return d.Revision }

func (*File) node() {}
func (*Dir) node()  {}

// Build mirrors the tree rooted at root with zero change counts.
func Build(ctx context.Context, src vcs.TreeReader, root vcs.Hash) (*Dir, error) {
	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	entries, err := src.TreeEntries(root)
	if err != nil {
		return nil, fmt.Errorf("build tree %s: %w", root.Short(), err)
	}

	dir := &Dir{Revision: root, Children: make(map[string]Node, len(entries))}

	for _, entry := range entries {
		child, childErr := buildEntry(ctx, src, entry)
		if childErr != nil {
			return nil, childErr
		}

		dir.Children[entry.Name] = child
	}

	return dir, nil
}

func buildEntry(ctx context.Context, src vcs.TreeReader, entry vcs.TreeEntry) (Node, error) {
	if entry.Kind == vcs.KindFile {
		return &File{Revision: entry.Hash}, nil
	}

	return Build(ctx, src, entry.Hash)
}
