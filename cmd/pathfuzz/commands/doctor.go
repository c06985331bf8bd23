package commands

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/julianzuo526/pathfuzz/internal/config"
)

// doctorCmd represents the doctor command
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the toolchain and configuration",
	Long: `Verifies that the configuration is valid and the external
extraction tool it names is on PATH.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		failed := false
		if err := cfg.Validate(); err != nil {
			fmt.Printf("✗ config: %v\n", err)
			failed = true
		} else {
			fmt.Println("✓ config: valid")
		}

		tool := strings.Fields(cfg.ExtractCommand)
		if len(tool) == 0 {
			fmt.Println("✗ extract command: empty")
			failed = true
		} else if path, err := exec.LookPath(tool[0]); err != nil {
			fmt.Printf("✗ extraction tool: %q not found on PATH\n", tool[0])
			failed = true
		} else {
			fmt.Printf("✓ extraction tool: %s\n", path)
		}

		fmt.Printf("  aggregation:      %s\n", cfg.Aggregation)
		fmt.Printf("  extract attempts: %d\n", cfg.MaxExtractAttempts)
		fmt.Printf("  extract backoff:  %s\n", cfg.ExtractBackoff)

		if failed {
			return fmt.Errorf("doctor found problems")
		}
		return nil
	},
}
