package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/depadvise/depadvise"
)

// NewAdviseCmd creates the "advise" command.
func NewAdviseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "advise [packages...]",
		Short: "Recommend a dependency configuration",
		Long: "Advise resolves the latest versions of the named packages, generates candidate " +
			"configurations under the selected strategy, verifies them, and prints the best one.",
		Args: cobra.ArbitraryArgs,
		RunE: runAdvise,
	}

	cmd.Flags().String("manifest", "", "YAML manifest supplying the current configuration")
	cmd.Flags().String("strategy", string(depadvise.StrategyBalanced), "Update strategy (conservative, balanced, aggressive, automatic)")
	cmd.Flags().Int("max-combinations", 10, "Maximum candidate configurations to consider")
	cmd.Flags().Int("concurrency", 4, "Parallel verification workers")
	cmd.Flags().Duration("test-timeout", 30*time.Second, "Per-candidate verification budget")
	cmd.Flags().Bool("skip-tests", false, "Rank candidates without verifying them")
	cmd.Flags().String("priority-mode", string(depadvise.PriorityHybrid), "Prefilter scoring mode (heuristic, predictive, hybrid)")
	cmd.Flags().Float64("impact-threshold", 0.5, "Maximum per-change impact for the incremental plan")
	cmd.Flags().String("catalog-url", "", "Base URL of the package catalog")
	cmd.Flags().String("catalog-file", "", "YAML catalog snapshot for offline runs")
	cmd.Flags().String("history-dir", "", "Directory for persistent advisory history")
	cmd.Flags().Int64("seed", 0, "Random seed for simulated verification (0 derives from the clock)")

	return cmd
}

func runAdvise(cmd *cobra.Command, args []string) error {
	cfg, logger, err := runtime(cmd)
	if err != nil {
		return err
	}
	opts, err := cfg.Options(logger)
	if err != nil {
		return err
	}

	manifestPath, _ := cmd.Flags().GetString("manifest")
	if len(args) == 0 && manifestPath == "" {
		return errors.New("name packages to advise on or pass --manifest")
	}

	var result *depadvise.ConfigurationResult
	if manifestPath != "" {
		manifest, err := depadvise.LoadManifest(manifestPath)
		if err != nil {
			return fmt.Errorf("load manifest: %w", err)
		}
		names := args
		if len(names) == 0 {
			names = manifest.PackageNames()
		}
		m, err := depadvise.NewManager(opts...)
		if err != nil {
			return err
		}
		current := manifest.ToConfigurationSet()
		result, err = m.GenerateOptimalConfiguration(cmd.Context(), names, &current)
		if err != nil {
			return err
		}
	} else {
		result, err = depadvise.Advise(cmd.Context(), args, opts...)
		if err != nil {
			return err
		}
	}

	return emitResult(cmd, result)
}

func emitResult(cmd *cobra.Command, result *depadvise.ConfigurationResult) error {
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		data, err := depadvise.ResultJSON(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), depadvise.FormatResult(result))
	return nil
}
