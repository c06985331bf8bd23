package commands

import (
	"github.com/spf13/cobra"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "pathfuzz",
	Short: "pathfuzz - Target distance computation for directed fuzzing",
	Long: `pathfuzz computes distance maps that steer a directed fuzzer toward
its targets. It extracts call graphs from bytecode artifacts, merges
them, and derives per-function and per-basic-block distances.

Commands:
  run        Run the two-step distance pipeline
  graph      Inspect a persisted call graph
  constrain  Compute the instrumentation function set
  doctor     Check the toolchain and configuration
  init       Create a configuration file interactively

Use "pathfuzz [command] --help" for more information about a command.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	// Add subcommands
	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(graphCmd)
	RootCmd.AddCommand(constrainCmd)
	RootCmd.AddCommand(doctorCmd)
	RootCmd.AddCommand(initCmd)
}
