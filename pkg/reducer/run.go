package reducer

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/treechurn/pkg/vcs"
	"github.com/Sumatoshi-tech/treechurn/pkg/walker"
)

const tracerName = "treechurn"

// Run reduces every adjacent pair of revisions and returns the total.
func Run(
	ctx context.Context, open vcs.Opener, revisions []walker.Revision,
	cfg Config, logger *slog.Logger, opts ...Option,
) (Result, error) {
	jobs := Jobs(revisions)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "treechurn.reduce",
		trace.WithAttributes(
			attribute.Int("treechurn.jobs", len(jobs)),
			attribute.Int("treechurn.workers", cfg.Workers),
		))
	defer span.End()

	res, err := run(ctx, New(open, cfg, logger, opts...), jobs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reduce failed")

		return Result{}, err
	}

	span.SetAttributes(
		attribute.Int("treechurn.changed_files", res.ChangedFiles),
		attribute.Int("treechurn.jobs.failed", res.Failed),
	)

	return res, nil
}

func run(ctx context.Context, r *Reducer, jobs []DeltaJob) (Result, error) {
	err := r.Start(ctx)
	if err != nil {
		return Result{}, err
	}

	for _, job := range jobs {
		submitErr := r.Submit(ctx, job)
		if submitErr != nil {
			_, waitErr := r.Wait()
			if waitErr != nil {
				return Result{}, waitErr
			}

			return Result{}, submitErr
		}
	}

	return r.Wait()
}
