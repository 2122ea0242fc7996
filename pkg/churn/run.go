package churn

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/treechurn/pkg/vcs"
	"github.com/Sumatoshi-tech/treechurn/pkg/walker"
)

const tracerName = "treechurn"

// ErrNoRevisions is returned by Run when the walk produced nothing to build from.
var ErrNoRevisions = errors.New("no revisions to analyze")

// Run builds the mirror from the newest revision and applies every older one
// in order. revisions must be newest first, as produced by the walker.
func Run(ctx context.Context, src vcs.TreeReader, revisions []walker.Revision, opts Options) (*Tree, error) {
	if len(revisions) == 0 {
		return nil, ErrNoRevisions
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "treechurn.churn",
		trace.WithAttributes(
			attribute.Int("treechurn.revisions", len(revisions)),
			attribute.Bool("treechurn.track_new", opts.TrackNew),
		))
	defer span.End()

	root, err := Build(ctx, src, revisions[0].Tree)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build failed")

		return nil, err
	}

	tree := NewTree(src, root, opts)

	for _, rev := range revisions[1:] {
		err = tree.Apply(ctx, rev.Tree)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "apply failed")

			return nil, fmt.Errorf("apply %s: %w", rev.Commit.Short(), err)
		}
	}

	stats := tree.Stats()
	span.SetAttributes(
		attribute.Int("treechurn.nodes.visited", stats.Visited),
		attribute.Int("treechurn.nodes.pruned", stats.Pruned),
		attribute.Int("treechurn.nodes.absorbed", stats.Absorbed),
	)

	return tree, nil
}
