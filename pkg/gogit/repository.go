// Package gogit implements the vcs repository data source with go-git, a pure
// Go git implementation. It needs no cgo and also reads in-memory repositories.
package gogit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/Sumatoshi-tech/treechurn/pkg/vcs"
)

// Repository adapts a go-git repository to vcs.Repository.
type Repository struct {
	repo *git.Repository
}

var _ vcs.Repository = (*Repository)(nil)

// OpenRepository opens the repository containing path.
func OpenRepository(path string) (*Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &Repository{repo: repo}, nil
}

// Wrap adapts an already opened go-git repository, e.g. one on memory storage.
func Wrap(repo *git.Repository) *Repository {
	return &Repository{repo: repo}
}

// Opener returns a vcs.Opener opening a new handle on path for every call.
func Opener(path string) vcs.Opener {
	return func() (vcs.Repository, error) {
		repo, err := OpenRepository(path)
		if err != nil {
			return nil, err
		}

		return repo, nil
	}
}

// SharedOpener returns a vcs.Opener handing out wrappers of the same go-git
// repository. go-git storages tolerate concurrent readers.
func SharedOpener(repo *git.Repository) vcs.Opener {
	return func() (vcs.Repository, error) {
		return Wrap(repo), nil
	}
}

// Head returns the commit HEAD points at.
func (r *Repository) Head() (vcs.Hash, error) {
	ref, err := r.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return vcs.Hash{}, fmt.Errorf("%w: %w", vcs.ErrNoHead, err)
		}

		return vcs.Hash{}, fmt.Errorf("get HEAD: %w", err)
	}

	return vcs.Hash(ref.Hash()), nil
}

func (r *Repository) commit(hash vcs.Hash) (*object.Commit, error) {
	commit, err := r.repo.CommitObject(plumbing.Hash(hash))
	if err != nil {
		return nil, fmt.Errorf("lookup commit %s: %w", hash.Short(), err)
	}

	return commit, nil
}

// FirstParent returns the first parent of commit.
func (r *Repository) FirstParent(hash vcs.Hash) (vcs.Hash, bool, error) {
	commit, err := r.commit(hash)
	if err != nil {
		return vcs.Hash{}, false, err
	}

	if len(commit.ParentHashes) == 0 {
		return vcs.Hash{}, false, nil
	}

	return vcs.Hash(commit.ParentHashes[0]), true, nil
}

// CommitTime returns the committer timestamp of commit.
func (r *Repository) CommitTime(hash vcs.Hash) (time.Time, error) {
	commit, err := r.commit(hash)
	if err != nil {
		return time.Time{}, err
	}

	return commit.Committer.When, nil
}

// CommitTree returns the root tree id of commit.
func (r *Repository) CommitTree(hash vcs.Hash) (vcs.Hash, error) {
	commit, err := r.commit(hash)
	if err != nil {
		return vcs.Hash{}, err
	}

	return vcs.Hash(commit.TreeHash), nil
}

func (r *Repository) tree(hash vcs.Hash) (*object.Tree, error) {
	tree, err := r.repo.TreeObject(plumbing.Hash(hash))
	if err != nil {
		// Typed lookups of a blob id also report ErrObjectNotFound.
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", vcs.ErrTreeNotFound, hash)
		}

		return nil, fmt.Errorf("lookup tree %s: %w", hash.Short(), err)
	}

	return tree, nil
}

// TreeEntries returns the immediate entries of tree. Submodule links are skipped.
func (r *Repository) TreeEntries(hash vcs.Hash) ([]vcs.TreeEntry, error) {
	tree, err := r.tree(hash)
	if err != nil {
		return nil, err
	}

	entries := make([]vcs.TreeEntry, 0, len(tree.Entries))

	for _, entry := range tree.Entries {
		converted, ok := convertEntry(entry)
		if ok {
			entries = append(entries, converted)
		}
	}

	return entries, nil
}

// ResolvePath descends segments from tree one level at a time.
func (r *Repository) ResolvePath(hash vcs.Hash, segments []string) (vcs.Hash, error) {
	current := hash

	for idx, segment := range segments {
		entries, err := r.TreeEntries(current)
		if err != nil {
			return vcs.Hash{}, err
		}

		prefix := strings.Join(segments[:idx+1], "/")
		found := false

		for _, entry := range entries {
			if entry.Name != segment {
				continue
			}

			if entry.Kind != vcs.KindDirectory {
				return vcs.Hash{}, fmt.Errorf("%w: %s", vcs.ErrNotADirectory, prefix)
			}

			current = entry.Hash
			found = true

			break
		}

		if !found {
			return vcs.Hash{}, fmt.Errorf("%w: %s", vcs.ErrPathNotFound, prefix)
		}
	}

	return current, nil
}

// DiffChangedFileCount returns the number of file changes between two trees,
// ignoring submodule links and mode-only changes, since object ids are the
// only change signal. Renames are not detected.
func (r *Repository) DiffChangedFileCount(oldHash, newHash vcs.Hash) (int, error) {
	if oldHash == newHash {
		return 0, nil
	}

	oldTree, err := r.tree(oldHash)
	if err != nil {
		return 0, err
	}

	newTree, err := r.tree(newHash)
	if err != nil {
		return 0, err
	}

	changes, err := oldTree.Diff(newTree)
	if err != nil {
		return 0, fmt.Errorf("diff trees: %w", err)
	}

	count := 0

	for _, change := range changes {
		if change.From.TreeEntry.Mode == filemode.Submodule || change.To.TreeEntry.Mode == filemode.Submodule {
			continue
		}

		if change.From.TreeEntry.Hash == change.To.TreeEntry.Hash {
			continue
		}

		count++
	}

	return count, nil
}

// Close is a no-op; go-git releases resources through the garbage collector.
func (r *Repository) Close() {}

func convertEntry(entry object.TreeEntry) (vcs.TreeEntry, bool) {
	switch entry.Mode {
	case filemode.Dir:
		return vcs.TreeEntry{Name: entry.Name, Kind: vcs.KindDirectory, Hash: vcs.Hash(entry.Hash)}, true
	case filemode.Submodule:
		return vcs.TreeEntry{}, false
	default:
		return vcs.TreeEntry{Name: entry.Name, Kind: vcs.KindFile, Hash: vcs.Hash(entry.Hash)}, true
	}
}
