package reducer_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treechurn/pkg/churn"
	"github.com/Sumatoshi-tech/treechurn/pkg/reducer"
	"github.com/Sumatoshi-tech/treechurn/pkg/vcs"
	"github.com/Sumatoshi-tech/treechurn/pkg/walker"
)

var baseTime = time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)

func history(t *testing.T, repo *vcs.MemoryRepository, snapshots ...map[string]string) []walker.Revision {
	t.Helper()

	for idx, files := range snapshots {
		repo.Commit(repo.TreeFromPaths(files), baseTime.Add(time.Duration(idx)*time.Hour))
	}

	w, err := walker.New(context.Background(), repo, walker.Options{})
	require.NoError(t, err)

	revisions, err := walker.Collect(w)
	require.NoError(t, err)

	return revisions
}

// hookRepo lets a test intercept diffs.
type hookRepo struct {
	*vcs.MemoryRepository
	diff   func(oldTree, newTree vcs.Hash) (int, error)
	closed *atomic.Int32
}

func (h hookRepo) DiffChangedFileCount(oldTree, newTree vcs.Hash) (int, error) {
	if h.diff != nil {
		return h.diff(oldTree, newTree)
	}

	return h.MemoryRepository.DiffChangedFileCount(oldTree, newTree)
}

func (h hookRepo) Close() {
	if h.closed != nil {
		h.closed.Add(1)
	}
}

func opener(h hookRepo) vcs.Opener {
	return func() (vcs.Repository, error) {
		return h, nil
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  reducer.Config
		want error
	}{
		{name: "default", cfg: reducer.DefaultConfig()},
		{name: "single", cfg: reducer.Config{Workers: 1, QueueSize: 1}},
		{name: "no workers", cfg: reducer.Config{Workers: 0, QueueSize: 1}, want: reducer.ErrInvalidWorkers},
		{name: "no queue", cfg: reducer.Config{Workers: 2, QueueSize: 0}, want: reducer.ErrInvalidQueueSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.cfg.Validate()
			if tt.want == nil {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestJobsPairsAdjacentRevisions(t *testing.T) {
	t.Parallel()

	revisions := []walker.Revision{
		{Tree: vcs.Hash{3}},
		{Tree: vcs.Hash{2}},
		{Tree: vcs.Hash{1}},
	}

	assert.Equal(t, []reducer.DeltaJob{
		{Old: vcs.Hash{2}, New: vcs.Hash{3}},
		{Old: vcs.Hash{1}, New: vcs.Hash{2}},
	}, reducer.Jobs(revisions))

	assert.Empty(t, reducer.Jobs(revisions[:1]))
	assert.Empty(t, reducer.Jobs(nil))
}

func TestRunSumsChangedFiles(t *testing.T) {
	t.Parallel()

	repo := vcs.NewMemoryRepository()
	revisions := history(t, repo,
		map[string]string{"a": "F1", "dir/b": "F2"},
		map[string]string{"a": "F1", "dir/b": "F3"},
		map[string]string{"a": "F5", "dir/b": "F3"},
		map[string]string{"a": "F6", "dir/b": "F4"},
	)

	res, err := reducer.Run(context.Background(), repo.Opener(), revisions,
		reducer.Config{Workers: 3, QueueSize: 1}, nil)
	require.NoError(t, err)

	assert.Equal(t, reducer.Result{ChangedFiles: 4, Jobs: 3}, res)

	tree, err := churn.Run(context.Background(), repo, revisions, churn.Options{})
	require.NoError(t, err)
	assert.Equal(t, res.ChangedFiles, churn.TotalChanges(tree.Root()))
}

func TestRunCountsAddsAndDeletes(t *testing.T) {
	t.Parallel()

	repo := vcs.NewMemoryRepository()
	revisions := history(t, repo,
		map[string]string{"a": "1"},
		map[string]string{"a": "1", "b": "1"},
		map[string]string{"b": "1"},
	)

	res, err := reducer.Run(context.Background(), repo.Opener(), revisions, reducer.DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.ChangedFiles)
}

func TestRunSingleRevision(t *testing.T) {
	t.Parallel()

	repo := vcs.NewMemoryRepository()
	revisions := history(t, repo, map[string]string{"a": "1"})

	res, err := reducer.Run(context.Background(), repo.Opener(), revisions, reducer.DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, reducer.Result{}, res)
}

func TestRunSkipsFailedJobs(t *testing.T) {
	t.Parallel()

	repo := vcs.NewMemoryRepository()
	revisions := history(t, repo,
		map[string]string{"a": "1"},
		map[string]string{"a": "2"},
		map[string]string{"a": "3"},
	)

	errCorrupt := errors.New("corrupt tree")
	failing := revisions[2].Tree

	h := hookRepo{MemoryRepository: repo, diff: func(oldTree, newTree vcs.Hash) (int, error) {
		if oldTree == failing {
			return 7, errCorrupt
		}

		return repo.DiffChangedFileCount(oldTree, newTree)
	}}

	var (
		mu       sync.Mutex
		observed []reducer.DeltaJobOutput
	)

	res, err := reducer.Run(context.Background(), opener(h), revisions,
		reducer.Config{Workers: 2, QueueSize: 2}, nil,
		reducer.WithJobObserver(func(_ context.Context, out reducer.DeltaJobOutput) {
			mu.Lock()
			observed = append(observed, out)
			mu.Unlock()
		}))
	require.NoError(t, err)

	assert.Equal(t, reducer.Result{ChangedFiles: 1, Jobs: 2, Failed: 1}, res)
	require.Len(t, observed, 2)

	failed := 0

	for _, out := range observed {
		if out.Err != nil {
			failed++

			require.ErrorIs(t, out.Err, errCorrupt)
			assert.Equal(t, failing, out.Job.Old)
		}
	}

	assert.Equal(t, 1, failed)
}

func TestRunIsolatesPanics(t *testing.T) {
	t.Parallel()

	repo := vcs.NewMemoryRepository()
	revisions := history(t, repo,
		map[string]string{"a": "1"},
		map[string]string{"a": "2"},
		map[string]string{"a": "3"},
		map[string]string{"a": "4"},
	)

	poisoned := revisions[1].Tree

	h := hookRepo{MemoryRepository: repo, diff: func(oldTree, newTree vcs.Hash) (int, error) {
		if newTree == poisoned {
			panic("boom")
		}

		return repo.DiffChangedFileCount(oldTree, newTree)
	}}

	var seen []error

	res, err := reducer.Run(context.Background(), opener(h), revisions,
		reducer.Config{Workers: 1, QueueSize: 1}, nil,
		reducer.WithJobObserver(func(_ context.Context, out reducer.DeltaJobOutput) {
			if out.Err != nil {
				seen = append(seen, out.Err)
			}
		}))
	require.NoError(t, err)

	assert.Equal(t, reducer.Result{ChangedFiles: 2, Jobs: 3, Failed: 1}, res)
	require.Len(t, seen, 1)
	require.ErrorIs(t, seen[0], reducer.ErrJobPanic)
}

func TestRunFailsWhenHandleCannotOpen(t *testing.T) {
	t.Parallel()

	repo := vcs.NewMemoryRepository()
	revisions := history(t, repo,
		map[string]string{"a": "1"},
		map[string]string{"a": "2"},
		map[string]string{"a": "3"},
		map[string]string{"a": "4"},
	)

	errDisk := errors.New("disk on fire")
	open := func() (vcs.Repository, error) { return nil, errDisk }

	_, err := reducer.Run(context.Background(), open, revisions, reducer.Config{Workers: 2, QueueSize: 1}, nil)
	require.ErrorIs(t, err, reducer.ErrOpenRepository)
	require.ErrorIs(t, err, errDisk)
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	repo := vcs.NewMemoryRepository()

	_, err := reducer.Run(context.Background(), repo.Opener(), nil, reducer.Config{Workers: 0, QueueSize: 1}, nil)
	require.ErrorIs(t, err, reducer.ErrInvalidWorkers)
}

func TestEveryWorkerOpensAndClosesItsHandle(t *testing.T) {
	t.Parallel()

	repo := vcs.NewMemoryRepository()
	revisions := history(t, repo,
		map[string]string{"a": "1"},
		map[string]string{"a": "2"},
	)

	var opened, closed atomic.Int32

	h := hookRepo{MemoryRepository: repo, closed: &closed}
	open := func() (vcs.Repository, error) {
		opened.Add(1)

		return h, nil
	}

	_, err := reducer.Run(context.Background(), open, revisions, reducer.Config{Workers: 4, QueueSize: 4}, nil)
	require.NoError(t, err)

	assert.Equal(t, int32(4), opened.Load())
	assert.Equal(t, int32(4), closed.Load())
}

func TestSubmitBlocksWhenQueueIsFull(t *testing.T) {
	t.Parallel()

	repo := vcs.NewMemoryRepository()
	release := make(chan struct{})

	h := hookRepo{MemoryRepository: repo, diff: func(vcs.Hash, vcs.Hash) (int, error) {
		<-release

		return 1, nil
	}}

	r := reducer.New(opener(h), reducer.Config{Workers: 1, QueueSize: 1}, nil)
	require.NoError(t, r.Start(context.Background()))

	// The first job occupies the worker; the second can only enter the queue
	// once the worker has taken the first.
	require.NoError(t, r.Submit(context.Background(), reducer.DeltaJob{Old: vcs.Hash{1}}))
	require.NoError(t, r.Submit(context.Background(), reducer.DeltaJob{Old: vcs.Hash{2}}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := r.Submit(ctx, reducer.DeltaJob{Old: vcs.Hash{3}})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)

	res, err := r.Wait()
	require.NoError(t, err)
	assert.Equal(t, reducer.Result{ChangedFiles: 2, Jobs: 2}, res)
}

func TestWaitReportsCancellation(t *testing.T) {
	t.Parallel()

	repo := vcs.NewMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())

	r := reducer.New(repo.Opener(), reducer.Config{Workers: 2, QueueSize: 2}, nil)
	require.NoError(t, r.Start(ctx))

	cancel()

	err := r.Submit(context.Background(), reducer.DeltaJob{})
	if err != nil {
		require.ErrorIs(t, err, context.Canceled)
	}

	_, err = r.Wait()
	require.ErrorIs(t, err, context.Canceled)
}
