package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/julianzuo526/pathfuzz/internal/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize pathfuzz configuration interactively",
	Long: `Guides you through setting up pathfuzz configuration step by step.
Creates .pathfuzz/config.yaml in the current directory.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit()
	},
}

func runInit() error {
	cfg := config.DefaultConfig()

	extractCommand := cfg.ExtractCommand
	aggregation := cfg.Aggregation
	attempts := strconv.Itoa(cfg.MaxExtractAttempts)
	backoff := cfg.ExtractBackoff.String()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Extraction command").
				Description("Toolchain invocation that dumps a call graph; the artifact path is appended").
				Placeholder("opt -passes=dot-callgraph").
				Value(&extractCommand),
			huh.NewSelect[string]().
				Title("Distance aggregation").
				Description("How multi-target distances fold into one scalar").
				Options(
					huh.NewOption("Harmonic mean (favors closeness to any target)", "harmonic"),
					huh.NewOption("Arithmetic mean", "arithmetic"),
					huh.NewOption("Minimum", "minimum"),
				).
				Value(&aggregation),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Max extraction attempts").
				Placeholder("5").
				Value(&attempts).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n < 1 {
						return fmt.Errorf("must be a positive integer")
					}
					return nil
				}),
			huh.NewInput().
				Title("Extraction backoff").
				Description("Base delay between attempts, doubled each retry").
				Placeholder("1s").
				Value(&backoff).
				Validate(func(s string) error {
					d, err := time.ParseDuration(s)
					if err != nil || d <= 0 {
						return fmt.Errorf("must be a positive duration like 1s or 500ms")
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	cfg.ExtractCommand = extractCommand
	cfg.Aggregation = aggregation
	cfg.MaxExtractAttempts, _ = strconv.Atoi(attempts)
	cfg.ExtractBackoff, _ = time.ParseDuration(backoff)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	path := ".pathfuzz/config.yaml"
	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("Configuration saved to %s\n", path)
	return nil
}
