package gitlib

import (
	"fmt"
	"time"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/Sumatoshi-tech/treechurn/pkg/vcs"
)

// Repository wraps a libgit2 repository handle. A handle must not be shared
// between goroutines; open one per worker.
type Repository struct {
	repo *git2go.Repository
	path string
}

// OpenRepository opens the repository containing path, searching parent
// directories for the git directory.
func OpenRepository(path string) (*Repository, error) {
	repo, err := git2go.OpenRepositoryExtended(path, 0, "")
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &Repository{repo: repo, path: path}, nil
}

// Path returns the repository path.
func (r *Repository) Path() string {
	return r.path
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Close releases the repository resources.
func (r *Repository) Close() {
	r.Free()
}

// Head returns the HEAD reference target.
func (r *Repository) Head() (vcs.Hash, error) {
	ref, err := r.repo.Head()
	if err != nil {
		if git2go.IsErrorCode(err, git2go.ErrorCodeUnbornBranch) || git2go.IsErrorCode(err, git2go.ErrorCodeNotFound) {
			return vcs.Hash{}, fmt.Errorf("%w: %w", vcs.ErrNoHead, err)
		}

		return vcs.Hash{}, fmt.Errorf("get HEAD: %w", err)
	}
	defer ref.Free()

	return HashFromOid(ref.Target()), nil
}

// LookupCommit returns the commit with the given hash.
func (r *Repository) LookupCommit(hash vcs.Hash) (*Commit, error) {
	commit, err := r.repo.LookupCommit(ToOid(hash))
	if err != nil {
		return nil, fmt.Errorf("lookup commit %s: %w", hash.Short(), err)
	}

	return &Commit{commit: commit}, nil
}

// LookupTree returns the tree with the given hash. Ids that are missing or
// name a non-tree object yield vcs.ErrTreeNotFound.
func (r *Repository) LookupTree(hash vcs.Hash) (*Tree, error) {
	tree, err := r.repo.LookupTree(ToOid(hash))
	if err != nil {
		if git2go.IsErrorCode(err, git2go.ErrorCodeNotFound) {
			return nil, fmt.Errorf("%w: %s", vcs.ErrTreeNotFound, hash)
		}

		return nil, fmt.Errorf("lookup tree %s: %w", hash.Short(), err)
	}

	return &Tree{tree: tree}, nil
}

// FirstParent returns the first parent of commit.
func (r *Repository) FirstParent(hash vcs.Hash) (vcs.Hash, bool, error) {
	commit, err := r.LookupCommit(hash)
	if err != nil {
		return vcs.Hash{}, false, err
	}
	defer commit.Free()

	if commit.NumParents() == 0 {
		return vcs.Hash{}, false, nil
	}

	return commit.ParentHash(0), true, nil
}

// CommitTime returns the committer timestamp of commit.
func (r *Repository) CommitTime(hash vcs.Hash) (time.Time, error) {
	commit, err := r.LookupCommit(hash)
	if err != nil {
		return time.Time{}, err
	}
	defer commit.Free()

	return commit.CommittedAt(), nil
}

// CommitTree returns the root tree id of commit.
func (r *Repository) CommitTree(hash vcs.Hash) (vcs.Hash, error) {
	commit, err := r.LookupCommit(hash)
	if err != nil {
		return vcs.Hash{}, err
	}
	defer commit.Free()

	return commit.TreeHash(), nil
}

// TreeEntries returns the immediate entries of tree. Submodule links are skipped.
func (r *Repository) TreeEntries(hash vcs.Hash) ([]vcs.TreeEntry, error) {
	tree, err := r.LookupTree(hash)
	if err != nil {
		return nil, err
	}
	defer tree.Free()

	return tree.Entries(), nil
}

// ResolvePath descends segments from tree one level at a time.
func (r *Repository) ResolvePath(hash vcs.Hash, segments []string) (vcs.Hash, error) {
	current := hash

	for idx, segment := range segments {
		tree, err := r.LookupTree(current)
		if err != nil {
			return vcs.Hash{}, err
		}

		entry := tree.EntryByName(segment)
		tree.Free()

		if entry == nil {
			return vcs.Hash{}, fmt.Errorf("%w: %s", vcs.ErrPathNotFound, joinSegments(segments[:idx+1]))
		}

		if entry.Kind != vcs.KindDirectory {
			return vcs.Hash{}, fmt.Errorf("%w: %s", vcs.ErrNotADirectory, joinSegments(segments[:idx+1]))
		}

		current = entry.Hash
	}

	return current, nil
}

// DiffTreeToTree computes the diff between two trees.
func (r *Repository) DiffTreeToTree(oldTree, newTree *Tree) (*Diff, error) {
	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("get diff options: %w", err)
	}

	// A file turning into a symlink is one delta, not a delete plus an add.
	opts.Flags |= git2go.DiffIncludeTypeChange

	var oldT, newT *git2go.Tree
	if oldTree != nil {
		oldT = oldTree.tree
	}

	if newTree != nil {
		newT = newTree.tree
	}

	diff, err := r.repo.DiffTreeToTree(oldT, newT, &opts)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	return &Diff{diff: diff}, nil
}

// DiffChangedFileCount returns the number of files whose id differs between
// two trees. Skips the diff when both ids are equal.
func (r *Repository) DiffChangedFileCount(oldHash, newHash vcs.Hash) (int, error) {
	if oldHash == newHash {
		return 0, nil
	}

	oldTree, err := r.LookupTree(oldHash)
	if err != nil {
		return 0, err
	}
	defer oldTree.Free()

	newTree, err := r.LookupTree(newHash)
	if err != nil {
		return 0, err
	}
	defer newTree.Free()

	diff, err := r.DiffTreeToTree(oldTree, newTree)
	if err != nil {
		return 0, err
	}
	defer diff.Free()

	return diff.ChangedFileCount()
}

var _ vcs.Repository = (*Repository)(nil)
