package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/julianzuo526/pathfuzz/internal/config"
	"github.com/julianzuo526/pathfuzz/internal/pipeline"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <binaries-dir> <temp-dir> [fuzzer]",
	Short: "Run the two-step distance pipeline",
	Long: `Runs the distance pipeline over the bytecode artifacts in
<binaries-dir>, reading target files from and writing distance maps to
<temp-dir>. With a third argument, only the call graph of that fuzzer's
artifact is used; otherwise every artifact is merged.

Completed steps are checkpointed in <temp-dir>/state.yaml, so re-running
after a failure resumes instead of starting over.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			cfg.Verbose = true
		}
		if agg, _ := cmd.Flags().GetString("aggregation"); agg != "" {
			cfg.Aggregation = agg
		}

		source := pipeline.WholeProgram()
		if len(args) == 3 {
			source = pipeline.SingleFuzzer(args[2])
		}

		o, err := pipeline.New(pipeline.Options{
			BinariesDir: args[0],
			TempDir:     args[1],
			Source:      source,
			Config:      cfg,
		})
		if err != nil {
			return err
		}
		return reportRunError(o.Run(cmd.Context()))
	},
}

// reportRunError prints the failing step's log tail and the resume
// command before handing the error back to cobra.
func reportRunError(err error) error {
	var serr *pipeline.StepError
	if errors.As(err, &serr) {
		if serr.LogTail != "" {
			fmt.Fprintf(os.Stderr, "\n--- step%d.log (tail) ---\n%s\n", serr.Step, serr.LogTail)
		}
		fmt.Fprintf(os.Stderr, "\nAfter fixing the cause, resume with:\n  %s\n", serr.Resume)
	}
	return err
}

func init() {
	runCmd.Flags().BoolP("verbose", "v", false, "Verbose logging")
	runCmd.Flags().String("aggregation", "", "Distance aggregation strategy (harmonic, arithmetic, minimum)")
}
