package main

import (
	"github.com/spf13/cobra"

	"github.com/taintgraph/taintgraph/pkg/logging"
)

var (
	verboseFlag bool
	configFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "taintgraph",
	Short: "Streaming source-to-sink taint path discovery",
	Long: `taintgraph searches a repository for sources of untrusted input, sinks
where that input would be dangerous, and sanitizers that neutralize it,
then reports the code-graph paths connecting sources to sinks.`,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		if verboseFlag {
			logging.SetLevel(logging.LevelDebug)
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verboseFlag, "verbose", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(scanCmd)
}
