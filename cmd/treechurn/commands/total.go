package commands

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/codes"

	"github.com/Sumatoshi-tech/treechurn/internal/observability"
	"github.com/Sumatoshi-tech/treechurn/pkg/config"
	"github.com/Sumatoshi-tech/treechurn/pkg/reducer"
	"github.com/Sumatoshi-tech/treechurn/pkg/report"
)

// reducerFlags size the full-diff worker pool.
type reducerFlags struct {
	workers   int
	queueSize int
}

func (rf *reducerFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&rf.workers, "workers", config.DefaultReducerWorkers, "Number of parallel diff workers (0 = use CPU count)")
	cmd.Flags().IntVar(&rf.queueSize, "queue-size", config.DefaultReducerQueueSize, "Capacity of the job queue (0 = workers×2)")
}

func (rf *reducerFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("workers") {
		cfg.Reducer.Workers = rf.workers
	}

	if cmd.Flags().Changed("queue-size") {
		cfg.Reducer.QueueSize = rf.queueSize
	}
}

// TotalCommand holds the configuration for the total command.
type TotalCommand struct {
	globals *GlobalOptions
	walk    walkFlags
	reducer reducerFlags
	format  string
}

// NewTotalCommand creates the aggregate changed-file count command.
func NewTotalCommand(globals *GlobalOptions) *cobra.Command {
	tc := &TotalCommand{globals: globals}

	cobraCmd := &cobra.Command{
		Use:   "total [repository]",
		Short: "Sum changed files over history with parallel full diffs",
		Long: `Diff every adjacent pair of first-parent commits on a pool of workers and
print the total number of changed files. Added and deleted files count too.`,
		Args: cobra.MaximumNArgs(1),
		RunE: tc.run,
	}

	tc.walk.register(cobraCmd)
	tc.reducer.register(cobraCmd)
	cobraCmd.Flags().StringVarP(&tc.format, "format", "f", string(report.FormatTSV), "Output format (tsv, table, json, yaml)")

	return cobraCmd
}

func (tc *TotalCommand) run(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(tc.format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(tc.globals, func(cfg *config.Config) {
		tc.walk.apply(cmd, cfg)
		tc.reducer.apply(cmd, cfg)
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

	ctx, span := sess.startSpan(ctx, "treechurn.command.total")
	defer span.End()

	start := time.Now()

	res, err := reducer.Run(ctx, sess.open, sess.revisions, sess.reducerConfig(), sess.logger, sess.jobObserver())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reduce failed")

		return err
	}

	elapsed := time.Since(start)
	sess.metrics.RecordRun(ctx, observability.StrategyFullDiff, elapsed)

	err = report.WriteTotal(cmd.OutOrStdout(), format, res.ChangedFiles)
	if err != nil {
		return err
	}

	if !tc.globals.Quiet {
		color.New(color.FgCyan).Fprintf(cmd.ErrOrStderr(), "%s diffs in %s\n",
			humanize.Comma(int64(res.Jobs)), elapsed.Round(time.Millisecond))

		if res.Failed > 0 {
			color.New(color.FgYellow).Fprintf(cmd.ErrOrStderr(), "%s diffs failed and were skipped\n",
				humanize.Comma(int64(res.Failed)))
		}
	}

	return nil
}
