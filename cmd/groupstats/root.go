package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "groupstats",
		Short:         "GroupMe chat statistics and hidden-phrase reconstruction",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "path to a YAML config file")
	root.PersistentFlags().String("log-level", "", "override the configured log level")

	root.AddCommand(
		newBootstrapCmd(),
		newGroupsCmd(),
		newFetchCmd(),
		newStatsCmd(),
		newReconstructCmd(),
		newVerifyCmd(),
		newServeCmd(),
		newWatchCmd(),
	)
	return root
}
