package commands

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/codes"

	"github.com/Sumatoshi-tech/treechurn/internal/observability"
	"github.com/Sumatoshi-tech/treechurn/pkg/churn"
	"github.com/Sumatoshi-tech/treechurn/pkg/config"
	"github.com/Sumatoshi-tech/treechurn/pkg/report"
)

// ChurnCommand holds the configuration for the churn command.
type ChurnCommand struct {
	globals     *GlobalOptions
	walk        walkFlags
	format      string
	trackNew    bool
	changedOnly bool
}

// NewChurnCommand creates the per-file churn command.
func NewChurnCommand(globals *GlobalOptions) *cobra.Command {
	cc := &ChurnCommand{globals: globals}

	cobraCmd := &cobra.Command{
		Use:   "churn [repository]",
		Short: "Count how often each file changed",
		Long: `Walk the first-parent history from HEAD and count, for every file present
at HEAD, the number of commits that changed it. Unchanged directories are
skipped without being read.`,
		Args: cobra.MaximumNArgs(1),
		RunE: cc.run,
	}

	cc.walk.register(cobraCmd)
	cobraCmd.Flags().StringVarP(&cc.format, "format", "f", string(report.FormatTSV), "Output format (tsv, table, json, yaml)")
	cobraCmd.Flags().BoolVar(&cc.trackNew, "track-new", config.DefaultChurnTrackNew, "Also count files absent at HEAD, from their first appearance")
	cobraCmd.Flags().BoolVar(&cc.changedOnly, "changed-only", false, "Omit files that never changed")

	return cobraCmd
}

func (cc *ChurnCommand) run(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(cc.format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cc.globals, func(cfg *config.Config) {
		cc.walk.apply(cmd, cfg)

		if cmd.Flags().Changed("track-new") {
			cfg.Churn.TrackNew = cc.trackNew
		}
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	sess, err := openSession(ctx, cfg, args, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer sess.Close(ctx)

	ctx, span := sess.startSpan(ctx, "treechurn.command.churn")
	defer span.End()

	start := time.Now()

	tree, err := churn.Run(ctx, sess.repo, sess.revisions, churn.Options{TrackNew: cfg.Churn.TrackNew})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "churn failed")

		return err
	}

	elapsed := time.Since(start)
	stats := tree.Stats()

	sess.metrics.RecordPruned(ctx, stats.Pruned)
	sess.metrics.RecordRun(ctx, observability.StrategyIncremental, elapsed)
	sess.logger.DebugContext(ctx, "churn tree applied",
		"applied", stats.Applied, "visited", stats.Visited, "pruned", stats.Pruned,
		"absorbed", stats.Absorbed, "inserted", stats.Inserted)

	files, err := report.Collect(tree.Root())
	if err != nil {
		return err
	}

	if cc.changedOnly {
		files = report.Changed(files)
	}

	err = report.Write(cmd.OutOrStdout(), format, files)
	if err != nil {
		return err
	}

	if !cc.globals.Quiet {
		color.New(color.FgCyan).Fprintf(cmd.ErrOrStderr(), "%s changes in %s files over %s revisions (%s)\n",
			humanize.Comma(int64(report.Total(files))), humanize.Comma(int64(len(files))),
			humanize.Comma(int64(len(sess.revisions))), elapsed.Round(time.Millisecond))
	}

	return nil
}
