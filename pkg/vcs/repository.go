package vcs

import (
	"errors"
	"time"
)

// Lookup errors shared by all repository backends.
var (
	// ErrTreeNotFound is returned by TreeEntries when the id does not name a tree,
	// either because the object is missing or because it is a blob.
	ErrTreeNotFound = errors.New("tree not found")
	// ErrPathNotFound is returned by ResolvePath when a segment does not exist.
	ErrPathNotFound = errors.New("path not found")
	// ErrNotADirectory is returned by ResolvePath when a segment names a file.
	ErrNotADirectory = errors.New("path is not a directory")
	// ErrNoHead is returned when the repository has no resolvable HEAD commit.
	ErrNoHead = errors.New("repository has no HEAD commit")
)

// EntryKind distinguishes files from directories inside a tree.
type EntryKind int

const (
	// KindFile is a blob entry (regular file, executable or symlink).
	KindFile EntryKind = iota
	// KindDirectory is a subtree entry.
	KindDirectory
)

// String returns the entry kind name.
func (k EntryKind) String() string {
	if k == KindDirectory {
		return "directory"
	}

	return "file"
}

// TreeEntry is one immediate child of a tree.
type TreeEntry struct {
	Name string
	Kind EntryKind
	Hash Hash
}

// TreeReader loads the immediate entries of a tree.
type TreeReader interface {
	// TreeEntries returns the entries of the tree in name order.
	// Returns ErrTreeNotFound when the id is not a readable tree.
	TreeEntries(tree Hash) ([]TreeEntry, error)
}

// Repository is the read-only data source the churn engines consume.
// Implementations need not be safe for concurrent use; concurrent callers
// open their own handle through an Opener.
type Repository interface {
	TreeReader

	// Head returns the commit HEAD points at.
	Head() (Hash, error)
	// FirstParent returns the first parent of commit, or false for a root commit.
	FirstParent(commit Hash) (Hash, bool, error)
	// CommitTime returns the committer timestamp of commit.
	CommitTime(commit Hash) (time.Time, error)
	// CommitTree returns the root tree of commit.
	CommitTree(commit Hash) (Hash, error)
	// ResolvePath descends segments from tree and returns the subtree id.
	ResolvePath(tree Hash, segments []string) (Hash, error)
	// DiffChangedFileCount returns the number of files that differ between two trees.
	DiffChangedFileCount(oldTree, newTree Hash) (int, error)
	// Close releases the handle. Safe to call more than once.
	Close()
}

// Opener opens an independent repository handle.
type Opener func() (Repository, error)
