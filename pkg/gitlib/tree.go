package gitlib

import (
	git2go "github.com/libgit2/git2go/v34"

	"github.com/Sumatoshi-tech/treechurn/pkg/vcs"
)

// Tree wraps a libgit2 tree.
type Tree struct {
	tree *git2go.Tree
}

// Entries returns the file and directory entries in libgit2's name order.
func (t *Tree) Entries() []vcs.TreeEntry {
	count := t.tree.EntryCount()
	entries := make([]vcs.TreeEntry, 0, count)

	for i := range count {
		entry, ok := convertEntry(t.tree.EntryByIndex(i))
		if ok {
			entries = append(entries, entry)
		}
	}

	return entries
}

// EntryByName returns the named entry, or nil when absent or a submodule.
func (t *Tree) EntryByName(name string) *vcs.TreeEntry {
	entry, ok := convertEntry(t.tree.EntryByName(name))
	if !ok {
		return nil
	}

	return &entry
}

// Free releases the tree resources.
func (t *Tree) Free() {
	if t.tree != nil {
		t.tree.Free()
		t.tree = nil
	}
}

func convertEntry(entry *git2go.TreeEntry) (vcs.TreeEntry, bool) {
	if entry == nil {
		return vcs.TreeEntry{}, false
	}

	var kind vcs.EntryKind

	switch entry.Type {
	case git2go.ObjectTree:
		kind = vcs.KindDirectory
	case git2go.ObjectBlob:
		kind = vcs.KindFile
	default:
		// Submodule commits live in another repository.
		return vcs.TreeEntry{}, false
	}

	return vcs.TreeEntry{Name: entry.Name, Kind: kind, Hash: HashFromOid(entry.Id)}, true
}
