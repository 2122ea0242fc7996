// Package walker produces the first-parent revision sequence consumed by the
// churn engines, newest first, optionally bounded by age and narrowed to a
// subdirectory.
package walker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/treechurn/pkg/vcs"
)

// ErrNoCommits is returned when no commit is reachable from the start point.
var ErrNoCommits = errors.New("no commits reachable")

const hoursPerWeek = 7 * 24

// Options bounds a walk.
type Options struct {
	// Start is the first commit to visit. Zero means HEAD.
	Start vcs.Hash
	// Since stops the walk after the first commit at or before this time.
	Since *time.Time
	// Subdir narrows every revision to the subtree at this path.
	Subdir []string
	// Logger receives debug output. Nil uses slog.Default().
	Logger *slog.Logger
}

// Revision is one point of the walked history.
type Revision struct {
	Commit vcs.Hash
	// Tree is the root tree, or the subdirectory tree when the walk is narrowed.
	Tree vcs.Hash
	When time.Time
}

// Walker iterates the first-parent chain. It is not restartable.
type Walker struct {
	repo   vcs.Repository
	opts   Options
	logger *slog.Logger
	next   vcs.Hash
	done   bool
}

// SplitPath turns a slash-separated path into segments, dropping empty ones.
func SplitPath(path string) []string {
	var segments []string

	for segment := range strings.SplitSeq(path, "/") {
		if segment != "" && segment != "." {
			segments = append(segments, segment)
		}
	}

	return segments
}

// SinceWeeks returns the cutoff weeks before now, or nil when weeks is not positive.
func SinceWeeks(now time.Time, weeks int) *time.Time {
	if weeks <= 0 {
		return nil
	}

	cutoff := now.Add(-time.Duration(weeks) * hoursPerWeek * time.Hour)

	return &cutoff
}

// New validates the start point and subdirectory and returns a walker
// positioned at the starting commit. Configuration problems are reported
// here, before any traversal.
func New(ctx context.Context, repo vcs.Repository, opts Options) (*Walker, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	start := opts.Start
	if start.IsZero() {
		head, err := repo.Head()
		if err != nil {
			if errors.Is(err, vcs.ErrNoHead) {
				return nil, fmt.Errorf("%w: %w", ErrNoCommits, err)
			}

			return nil, err
		}

		start = head
	}

	if len(opts.Subdir) > 0 {
		root, err := repo.CommitTree(start)
		if err != nil {
			return nil, err
		}

		_, err = repo.ResolvePath(root, opts.Subdir)
		if err != nil {
			return nil, fmt.Errorf("resolve subdirectory at %s: %w", start.Short(), err)
		}
	}

	logger.DebugContext(ctx, "history walk configured",
		"start", start.Short(), "subdir", strings.Join(opts.Subdir, "/"), "bounded", opts.Since != nil)

	return &Walker{repo: repo, opts: opts, logger: logger, next: start}, nil
}

// Next returns the next older revision, or io.EOF once the walk is over.
func (w *Walker) Next() (Revision, error) {
	if w.done {
		return Revision{}, io.EOF
	}

	commit := w.next

	tree, ok, err := w.treeOf(commit)
	if err != nil {
		w.done = true

		return Revision{}, err
	}

	if !ok {
		w.logger.Debug("subdirectory absent, walk ends", "commit", commit.Short())

		w.done = true

		return Revision{}, io.EOF
	}

	when, err := w.repo.CommitTime(commit)
	if err != nil {
		w.done = true

		return Revision{}, fmt.Errorf("commit time %s: %w", commit.Short(), err)
	}

	parent, hasParent, err := w.repo.FirstParent(commit)
	if err != nil {
		w.done = true

		return Revision{}, fmt.Errorf("first parent of %s: %w", commit.Short(), err)
	}

	// The first commit at or before the cutoff is still yielded.
	if !hasParent || (w.opts.Since != nil && !when.After(*w.opts.Since)) {
		w.done = true
	}

	w.next = parent

	return Revision{Commit: commit, Tree: tree, When: when}, nil
}

// treeOf returns the tree the walk tracks at commit; ok is false when the
// subdirectory does not exist there.
func (w *Walker) treeOf(commit vcs.Hash) (vcs.Hash, bool, error) {
	root, err := w.repo.CommitTree(commit)
	if err != nil {
		return vcs.Hash{}, false, fmt.Errorf("commit tree %s: %w", commit.Short(), err)
	}

	if len(w.opts.Subdir) == 0 {
		return root, true, nil
	}

	sub, err := w.repo.ResolvePath(root, w.opts.Subdir)

	switch {
	case err == nil:
		return sub, true, nil
	case errors.Is(err, vcs.ErrPathNotFound), errors.Is(err, vcs.ErrNotADirectory):
		return vcs.Hash{}, false, nil
	default:
		return vcs.Hash{}, false, fmt.Errorf("resolve subdirectory at %s: %w", commit.Short(), err)
	}
}

// Collect drains the walker into a slice, newest first.
func Collect(w *Walker) ([]Revision, error) {
	var revisions []Revision

	for {
		rev, err := w.Next()
		if errors.Is(err, io.EOF) {
			return revisions, nil
		}

		if err != nil {
			return nil, err
		}

		revisions = append(revisions, rev)
	}
}
