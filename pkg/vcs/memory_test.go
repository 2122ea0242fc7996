package vcs_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treechurn/pkg/vcs"
)

var memoryBaseTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func TestMemoryDiffChangedFileCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		before map[string]string
		after  map[string]string
		want   int
	}{
		{
			name:   "equal trees",
			before: map[string]string{"a": "1", "dir/b": "2"},
			after:  map[string]string{"a": "1", "dir/b": "2"},
			want:   0,
		},
		{
			name:   "modified file",
			before: map[string]string{"a": "1"},
			after:  map[string]string{"a": "2"},
			want:   1,
		},
		{
			name:   "nested modification",
			before: map[string]string{"a": "1", "dir/sub/b": "2", "dir/c": "3"},
			after:  map[string]string{"a": "1", "dir/sub/b": "9", "dir/c": "3"},
			want:   1,
		},
		{
			name:   "added file",
			before: map[string]string{"a": "1"},
			after:  map[string]string{"a": "1", "b": "2"},
			want:   1,
		},
		{
			name:   "deleted directory",
			before: map[string]string{"a": "1", "dir/b": "2", "dir/c": "3"},
			after:  map[string]string{"a": "1"},
			want:   2,
		},
		{
			name:   "file replaced by directory",
			before: map[string]string{"x": "1"},
			after:  map[string]string{"x/a": "1", "x/b": "2"},
			want:   3,
		},
		{
			name:   "directory replaced by file",
			before: map[string]string{"x/a": "1", "x/b": "2"},
			after:  map[string]string{"x": "1"},
			want:   3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := vcs.NewMemoryRepository()

			count, err := repo.DiffChangedFileCount(repo.TreeFromPaths(tt.before), repo.TreeFromPaths(tt.after))
			require.NoError(t, err)
			assert.Equal(t, tt.want, count)
		})
	}
}

func TestMemoryDiffChangedFileCountUnknownTree(t *testing.T) {
	t.Parallel()

	repo := vcs.NewMemoryRepository()
	root := repo.TreeFromPaths(map[string]string{"a": "1"})

	_, err := repo.DiffChangedFileCount(root, repo.Blob("not a tree"))
	require.ErrorIs(t, err, vcs.ErrTreeNotFound)
}

func TestMemoryResolvePath(t *testing.T) {
	t.Parallel()

	repo := vcs.NewMemoryRepository()
	root := repo.TreeFromPaths(map[string]string{"src/pkg/a.go": "1", "README": "r"})

	resolved, err := repo.ResolvePath(root, []string{"src", "pkg"})
	require.NoError(t, err)

	entries, err := repo.TreeEntries(resolved)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.go", entries[0].Name)
	assert.Equal(t, vcs.KindFile, entries[0].Kind)

	self, err := repo.ResolvePath(root, nil)
	require.NoError(t, err)
	assert.Equal(t, root, self)

	_, err = repo.ResolvePath(root, []string{"src", "missing"})
	require.ErrorIs(t, err, vcs.ErrPathNotFound)
	assert.Contains(t, err.Error(), "src/missing")

	_, err = repo.ResolvePath(root, []string{"README", "x"})
	require.ErrorIs(t, err, vcs.ErrNotADirectory)
	assert.Contains(t, err.Error(), "README")
}

func TestMemoryTreeEntriesNotATree(t *testing.T) {
	t.Parallel()

	repo := vcs.NewMemoryRepository()

	_, err := repo.TreeEntries(repo.Blob("content"))
	require.ErrorIs(t, err, vcs.ErrTreeNotFound)
}

func TestMemoryCommits(t *testing.T) {
	t.Parallel()

	repo := vcs.NewMemoryRepository()

	_, err := repo.Head()
	require.ErrorIs(t, err, vcs.ErrNoHead)

	firstTree := repo.TreeFromPaths(map[string]string{"a": "1"})
	first := repo.Commit(firstTree, memoryBaseTime)
	second := repo.Commit(repo.TreeFromPaths(map[string]string{"a": "2"}), memoryBaseTime.Add(time.Hour))

	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, second, head)

	parent, ok, err := repo.FirstParent(second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, first, parent)

	_, ok, err = repo.FirstParent(first)
	require.NoError(t, err)
	assert.False(t, ok)

	when, err := repo.CommitTime(second)
	require.NoError(t, err)
	assert.True(t, when.Equal(memoryBaseTime.Add(time.Hour)))

	tree, err := repo.CommitTree(first)
	require.NoError(t, err)
	assert.Equal(t, firstTree, tree)

	_, err = repo.CommitTree(repo.Blob("no commit"))
	require.ErrorIs(t, err, vcs.ErrUnknownCommit)
}

func TestMemoryOpenerSharesObjects(t *testing.T) {
	t.Parallel()

	repo := vcs.NewMemoryRepository()
	commit := repo.Commit(repo.TreeFromPaths(map[string]string{"a": "1"}), memoryBaseTime)

	handle, err := repo.Opener()()
	require.NoError(t, err)

	defer handle.Close()

	head, err := handle.Head()
	require.NoError(t, err)
	assert.Equal(t, commit, head)
}
