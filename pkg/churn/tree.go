package churn

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/treechurn/pkg/vcs"
)

// Options configures how a Tree absorbs revisions.
type Options struct {
	// TrackNew inserts entries that appear in an applied tree but were absent
	// when the mirror was built, counted from zero. By default the tracked set
	// is fixed at construction and such entries are ignored.
	TrackNew bool
}

// Stats counts the work done by Apply calls.
type Stats struct {
	// Applied is the number of revisions applied to the root.
	Applied int
	// Visited is the number of node updates performed, pruned or not.
	Visited int
	// Pruned is the number of node updates skipped because the id was unchanged.
	Pruned int
	// Absorbed is the number of directories whose new id was not a readable tree.
	Absorbed int
	// Inserted is the number of nodes added under TrackNew.
	Inserted int
}

// Tree is the churn state for one walk. It is not safe for concurrent use;
// revisions must be applied in walk order.
type Tree struct {
	root  *Dir
	src   vcs.TreeReader
	opts  Options
	stats Stats
}

// NewTree wraps a mirror built by Build. src is used to read the trees of
// applied revisions.
func NewTree(src vcs.TreeReader, root *Dir, opts Options) *Tree {
	return &Tree{root: root, src: src, opts: opts}
}

// Root returns the root directory node.
func (t *Tree) Root() *Dir {
	return t.root
}

// Stats returns the accumulated counters.
func (t *Tree) Stats() Stats {
	return t.stats
}

// Apply records the transition from the last applied revision to the root
// tree rev. rev must be older than every revision applied so far.
func (t *Tree) Apply(ctx context.Context, rev vcs.Hash) error {
	err := ctx.Err()
	if err != nil {
		return err
	}

	t.stats.Applied++

	return t.update(ctx, t.root, rev)
}

func (t *Tree) update(ctx context.Context, node Node, rev vcs.Hash) error {
	t.stats.Visited++

	if node.LastRevision() == rev {
		t.stats.Pruned++

		return nil
	}

	switch typed := node.(type) {
	case *File:
		typed.Changes++
		typed.Revision = rev

		return nil
	case *Dir:
		return t.updateDir(ctx, typed, rev)
	default:
		panic(fmt.Sprintf("churn: unexpected node type %T", node))
	}
}

func (t *Tree) updateDir(ctx context.Context, dir *Dir, rev vcs.Hash) error {
	entries, err := t.src.TreeEntries(rev)

	switch {
	case errors.Is(err, vcs.ErrTreeNotFound):
		// The path is no longer a directory; keep the counts gathered so far.
		t.stats.Absorbed++
		dir.Revision = rev

		return nil
	case err != nil:
		return fmt.Errorf("read tree %s: %w", rev.Short(), err)
	}

	for _, entry := range entries {
		child, ok := dir.Children[entry.Name]
		if !ok {
			if t.opts.TrackNew {
				err = t.insert(ctx, dir, entry)
				if err != nil {
					return err
				}
			}

			continue
		}

		err = t.update(ctx, child, entry.Hash)
		if err != nil {
			return err
		}
	}

	dir.Revision = rev

	return nil
}

func (t *Tree) insert(ctx context.Context, dir *Dir, entry vcs.TreeEntry) error {
	child, err := buildEntry(ctx, t.src, entry)
	if err != nil {
		return err
	}

	dir.Children[entry.Name] = child
	t.stats.Inserted++

	return nil
}

// TotalChanges sums the change counts of every file under node.
func TotalChanges(node Node) int {
	switch typed := node.(type) {
	case *File:
		return typed.Changes
	case *Dir:
		total := 0
		for _, child := range typed.Children {
			total += TotalChanges(child)
		}

		return total
	default:
		return 0
	}
}
