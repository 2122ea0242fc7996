// Package reducer computes the total number of changed files over a walk by
// diffing every adjacent pair of revisions on a pool of workers, each holding
// its own repository handle, and summing the results.
package reducer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/treechurn/pkg/vcs"
	"github.com/Sumatoshi-tech/treechurn/pkg/walker"
)

var (
	// ErrInvalidWorkers is returned for a worker count below one.
	ErrInvalidWorkers = errors.New("invalid worker count")
	// ErrInvalidQueueSize is returned for a queue capacity below one.
	ErrInvalidQueueSize = errors.New("invalid queue size")
	// ErrOpenRepository wraps a failure to open a worker's repository handle.
	ErrOpenRepository = errors.New("open worker repository")
	// ErrJobPanic wraps a panic recovered while diffing one pair.
	ErrJobPanic = errors.New("diff job panicked")
	// ErrAborted is returned by Submit after a worker failed fatally.
	ErrAborted = errors.New("reducer aborted")
)

// queueSizeMultiplier scales the default queue capacity with the worker count.
const queueSizeMultiplier = 2

// Config sizes the worker pool.
type Config struct {
	// Workers is the number of goroutines diffing in parallel.
	Workers int
	// QueueSize is the capacity of the job and result queues.
	QueueSize int
}

// DefaultConfig uses one worker per CPU.
func DefaultConfig() Config {
	workers := max(runtime.NumCPU(), 1)

	return Config{
		Workers:   workers,
		QueueSize: workers * queueSizeMultiplier,
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Workers)
	}

	if c.QueueSize < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidQueueSize, c.QueueSize)
	}

	return nil
}

// DeltaJob asks for the number of files that differ between two trees.
type DeltaJob struct {
	Old vcs.Hash
	New vcs.Hash
}

// DeltaJobOutput is the outcome of one DeltaJob. When Err is set the count is
// not meaningful and is excluded from the total.
type DeltaJobOutput struct {
	Job          DeltaJob
	ChangedFiles int
	Duration     time.Duration
	Err          error
}

// Result is the reduction over all completed jobs.
type Result struct {
	// ChangedFiles is the sum over successful jobs.
	ChangedFiles int
	// Jobs counts every job that produced an output.
	Jobs int
	// Failed counts jobs whose output carried an error.
	Failed int
}

// JobObserver is called from the fold goroutine once per job output.
type JobObserver func(ctx context.Context, out DeltaJobOutput)

// Option customizes a Reducer.
type Option func(*Reducer)

// WithJobObserver registers fn to see every job output.
func WithJobObserver(fn JobObserver) Option {
	return func(r *Reducer) {
		r.observe = fn
	}
}

// Reducer runs DeltaJobs on a bounded worker pool. Use it as
// Start, then any number of Submit calls from one goroutine, then Wait.
type Reducer struct {
	open    vcs.Opener
	cfg     Config
	logger  *slog.Logger
	observe JobObserver

	ctx      context.Context //nolint:containedctx // owned for the Start..Wait lifetime.
	groupCtx context.Context //nolint:containedctx // canceled on fatal worker errors.
	group    *errgroup.Group
	jobs     chan DeltaJob
	results  chan DeltaJobOutput
	foldDone chan struct{}
	result   Result
}

// New creates a reducer. Each worker obtains its own handle through open.
func New(open vcs.Opener, cfg Config, logger *slog.Logger, opts ...Option) *Reducer {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Reducer{open: open, cfg: cfg, logger: logger}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Start validates the configuration and launches the workers and the fold.
func (r *Reducer) Start(ctx context.Context) error {
	err := r.cfg.Validate()
	if err != nil {
		return err
	}

	r.ctx = ctx
	r.group, r.groupCtx = errgroup.WithContext(ctx)
	r.jobs = make(chan DeltaJob, r.cfg.QueueSize)
	r.results = make(chan DeltaJobOutput, r.cfg.QueueSize)
	r.foldDone = make(chan struct{})

	for id := range r.cfg.Workers {
		r.group.Go(func() error {
			return r.work(id)
		})
	}

	go r.fold()

	return nil
}

// Submit enqueues job, blocking while the queue is full. It returns ctx.Err()
// when ctx ends first, and ErrAborted after a worker failed fatally.
func (r *Reducer) Submit(ctx context.Context, job DeltaJob) error {
	select {
	case r.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.groupCtx.Done():
		err := r.ctx.Err()
		if err != nil {
			return err
		}

		return ErrAborted
	}
}

// Wait closes the job queue, joins the workers and returns the reduction.
// The error is the first fatal worker error, or the Start context's error
// when it was canceled.
func (r *Reducer) Wait() (Result, error) {
	close(r.jobs)

	err := r.group.Wait()

	close(r.results)
	<-r.foldDone

	if err == nil {
		err = r.ctx.Err()
	}

	return r.result, err
}

// work runs one worker. libgit2 handles stay on the thread that opened them.
func (r *Reducer) work(id int) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	repo, err := r.open()
	if err != nil {
		return fmt.Errorf("%w: worker %d: %w", ErrOpenRepository, id, err)
	}
	defer repo.Close()

	for {
		select {
		case <-r.groupCtx.Done():
			return nil
		case job, ok := <-r.jobs:
			if !ok {
				return nil
			}

			select {
			case r.results <- r.process(repo, job):
			case <-r.groupCtx.Done():
				return nil
			}
		}
	}
}

func (r *Reducer) process(repo vcs.Repository, job DeltaJob) (out DeltaJobOutput) {
	start := time.Now()
	out.Job = job

	defer func() {
		if rec := recover(); rec != nil {
			out.ChangedFiles = 0
			out.Err = fmt.Errorf("%w: %v", ErrJobPanic, rec)
		}

		out.Duration = time.Since(start)
	}()

	out.ChangedFiles, out.Err = repo.DiffChangedFileCount(job.Old, job.New)

	return out
}

func (r *Reducer) fold() {
	defer close(r.foldDone)

	for out := range r.results {
		r.result.Jobs++

		if out.Err != nil {
			r.result.Failed++
			r.logger.WarnContext(r.ctx, "diff job failed, skipping",
				"old", out.Job.Old.Short(), "new", out.Job.New.Short(), "error", out.Err)
		} else {
			r.result.ChangedFiles += out.ChangedFiles
		}

		if r.observe != nil {
			r.observe(r.ctx, out)
		}
	}
}

// Jobs pairs adjacent revisions of a newest-first walk.
func Jobs(revisions []walker.Revision) []DeltaJob {
	if len(revisions) < 2 {
		return nil
	}

	jobs := make([]DeltaJob, 0, len(revisions)-1)

	for idx := range len(revisions) - 1 {
		jobs = append(jobs, DeltaJob{Old: revisions[idx+1].Tree, New: revisions[idx].Tree})
	}

	return jobs
}
