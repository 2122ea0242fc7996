// Package main provides the entry point for the treechurn CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/treechurn/cmd/treechurn/commands"
	"github.com/Sumatoshi-tech/treechurn/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	err := newRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	globals := &commands.GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:   "treechurn",
		Short: "Per-file change counts over git history",
		Long: `treechurn counts how often files changed along the first-parent history.

Commands:
  churn     Per-file counts from an incremental, pruning tree walk
  total     Aggregate changed-file count from parallel full diffs
  check     Run both and compare the totals`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&globals.Verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&globals.Quiet, "quiet", "q", false, "suppress output")
	rootCmd.PersistentFlags().StringVar(&globals.ConfigPath, "config", "", "config file (default .treechurn.yaml)")

	rootCmd.AddCommand(commands.NewChurnCommand(globals))
	rootCmd.AddCommand(commands.NewTotalCommand(globals))
	rootCmd.AddCommand(commands.NewCheckCommand(globals))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "treechurn %s\n", version.String())
		},
	}
}
