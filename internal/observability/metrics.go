package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRevisionsTotal = "treechurn.revisions.total"
	metricPrunedTotal    = "treechurn.nodes.pruned.total"
	metricJobsTotal      = "treechurn.jobs.total"
	metricJobDuration    = "treechurn.job.duration.seconds"
	metricRunDuration    = "treechurn.run.duration.seconds"

	attrStatus   = "status"
	attrStrategy = "strategy"

	// StatusOK labels a job that produced a count.
	StatusOK = "ok"
	// StatusError labels a job whose count was discarded.
	StatusError = "error"

	// StrategyIncremental labels runs of the pruning tree engine.
	StrategyIncremental = "incremental"
	// StrategyFullDiff labels runs of the parallel reducer.
	StrategyFullDiff = "full_diff"
)

// jobBucketBoundaries covers single tree diffs, from sub-millisecond to tens of seconds.
var jobBucketBoundaries = []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30}

// runBucketBoundaries covers whole runs, from 10ms to 30 minutes.
var runBucketBoundaries = []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 600, 1800}

// ChurnMetrics holds the instruments recorded by the churn commands.
type ChurnMetrics struct {
	revisionsTotal metric.Int64Counter
	prunedTotal    metric.Int64Counter
	jobsTotal      metric.Int64Counter
	jobDuration    metric.Float64Histogram
	runDuration    metric.Float64Histogram
}

// NewChurnMetrics creates the instruments from the given meter.
func NewChurnMetrics(mt metric.Meter) (*ChurnMetrics, error) {
	b := newMetricBuilder(mt)

	cm := &ChurnMetrics{
		revisionsTotal: b.counter(metricRevisionsTotal, "Revisions walked", "{revision}"),
		prunedTotal:    b.counter(metricPrunedTotal, "Tree nodes skipped because their id was unchanged", "{node}"),
		jobsTotal:      b.counter(metricJobsTotal, "Full-diff jobs completed", "{job}"),
		jobDuration:    b.histogram(metricJobDuration, "Duration of one tree-to-tree diff", "s", jobBucketBoundaries...),
		runDuration:    b.histogram(metricRunDuration, "Duration of a whole churn run", "s", runBucketBoundaries...),
	}

	if b.err != nil {
		return nil, b.err
	}

	return cm, nil
}

// RecordRevisions adds n walked revisions.
func (cm *ChurnMetrics) RecordRevisions(ctx context.Context, n int) {
	cm.revisionsTotal.Add(ctx, int64(n))
}

// RecordPruned adds n pruned node updates.
func (cm *ChurnMetrics) RecordPruned(ctx context.Context, n int) {
	cm.prunedTotal.Add(ctx, int64(n))
}

// RecordJob records one completed full-diff job.
func (cm *ChurnMetrics) RecordJob(ctx context.Context, status string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String(attrStatus, status))

	cm.jobsTotal.Add(ctx, 1, attrs)
	cm.jobDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordRun records the duration of a run of strategy.
func (cm *ChurnMetrics) RecordRun(ctx context.Context, strategy string, duration time.Duration) {
	cm.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(attrStrategy, strategy)))
}
