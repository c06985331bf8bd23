package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/julianzuo526/pathfuzz/pkg/instrument"
)

// constrainCmd represents the constrain command
var constrainCmd = &cobra.Command{
	Use:   "constrain <temp-dir>",
	Short: "Compute the instrumentation function set",
	Long: `Reads call_graph.txt, target_funcs.txt, and entry_func.txt from
<temp-dir> and writes instrumented_funcs.txt: the functions on forward
paths from the entry point to the targets, their preceding dependents,
and the transitive closure of everything either set calls.

The pipeline's second step honors this file as a whitelist, restricting
basic-block distances to the functions worth instrumenting.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		written, err := instrument.Run(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %d functions to instrumented_funcs.txt\n", written)
		return nil
	},
}
