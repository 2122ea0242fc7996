package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/treechurn/internal/observability"
	"github.com/Sumatoshi-tech/treechurn/pkg/churn"
	"github.com/Sumatoshi-tech/treechurn/pkg/config"
	"github.com/Sumatoshi-tech/treechurn/pkg/reducer"
)

// ErrStrategiesDiffer is returned by check --strict when the totals disagree.
var ErrStrategiesDiffer = errors.New("strategies disagree")

// CheckCommand holds the configuration for the check command.
type CheckCommand struct {
	globals  *GlobalOptions
	walk     walkFlags
	reducer  reducerFlags
	strict   bool
	trackNew bool
}

// strategyOutcome is one row of the comparison.
type strategyOutcome struct {
	name         string
	changedFiles int
	elapsed      time.Duration
}

// NewCheckCommand creates the command that runs both strategies on the same
// range and compares their totals.
func NewCheckCommand(globals *GlobalOptions) *cobra.Command {
	cc := &CheckCommand{globals: globals}

	cobraCmd := &cobra.Command{
		Use:   "check [repository]",
		Short: "Cross-check the incremental and full-diff totals",
		Long: `Run the incremental churn tree and the parallel full-diff reducer over the
same commits and compare the totals. They agree whenever no file was added or
deleted in the walked range; the full-diff total also counts adds and deletes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: cc.run,
	}

	cc.walk.register(cobraCmd)
	cc.reducer.register(cobraCmd)
	cobraCmd.Flags().BoolVar(&cc.strict, "strict", false, "Exit with an error when the totals differ")
	cobraCmd.Flags().BoolVar(&cc.trackNew, "track-new", config.DefaultChurnTrackNew, "Also count files absent at HEAD in the incremental total")

	return cobraCmd
}

func (cc *CheckCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cc.globals, func(cfg *config.Config) {
		cc.walk.apply(cmd, cfg)
		cc.reducer.apply(cmd, cfg)

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

	ctx, span := sess.startSpan(ctx, "treechurn.command.check")
	defer span.End()

	start := time.Now()

	tree, err := churn.Run(ctx, sess.repo, sess.revisions, churn.Options{TrackNew: cfg.Churn.TrackNew})
	if err != nil {
		return err
	}

	incremental := strategyOutcome{
		name:         observability.StrategyIncremental,
		changedFiles: churn.TotalChanges(tree.Root()),
		elapsed:      time.Since(start),
	}
	sess.metrics.RecordPruned(ctx, tree.Stats().Pruned)
	sess.metrics.RecordRun(ctx, incremental.name, incremental.elapsed)

	start = time.Now()

	res, err := reducer.Run(ctx, sess.open, sess.revisions, sess.reducerConfig(), sess.logger, sess.jobObserver())
	if err != nil {
		return err
	}

	fullDiff := strategyOutcome{
		name:         observability.StrategyFullDiff,
		changedFiles: res.ChangedFiles,
		elapsed:      time.Since(start),
	}
	sess.metrics.RecordRun(ctx, fullDiff.name, fullDiff.elapsed)

	outcomes := []strategyOutcome{incremental, fullDiff}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(cmd.OutOrStdout())
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Strategy", "Changed files", "Duration"})

	for _, outcome := range outcomes {
		tbl.AppendRow(table.Row{outcome.name, humanize.Comma(int64(outcome.changedFiles)), outcome.elapsed.Round(time.Millisecond)})
	}

	tbl.AppendFooter(table.Row{"revisions", humanize.Comma(int64(len(sess.revisions))), ""})
	tbl.Render()

	totals := lo.Uniq(lo.Map(outcomes, func(outcome strategyOutcome, _ int) int { return outcome.changedFiles }))
	if len(totals) == 1 {
		color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "strategies agree")

		return nil
	}

	diff := fullDiff.changedFiles - incremental.changedFiles
	color.New(color.FgYellow).Fprintf(cmd.OutOrStdout(),
		"strategies differ by %d (added and deleted files are only counted by %s)\n", diff, fullDiff.name)

	if res.Failed > 0 {
		color.New(color.FgRed).Fprintf(cmd.OutOrStdout(), "%d diffs failed and were skipped\n", res.Failed)
	}

	if cc.strict {
		return fmt.Errorf("%w: %s=%d %s=%d", ErrStrategiesDiffer,
			incremental.name, incremental.changedFiles, fullDiff.name, fullDiff.changedFiles)
	}

	return nil
}
