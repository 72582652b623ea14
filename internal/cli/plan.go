package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/depadvise/depadvise"
)

// NewPlanCmd creates the "plan" command.
func NewPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan an incremental update for a manifest",
		Long: "Plan compares the manifest's configuration against the catalog and proposes " +
			"the lowest-risk set of worthwhile changes.",
		Args: cobra.NoArgs,
		RunE: runPlan,
	}

	cmd.Flags().String("manifest", "", "YAML manifest holding the current configuration (required)")
	cmd.Flags().Bool("verify", false, "Test the updated configuration before reporting")
	cmd.Flags().Float64("impact-threshold", 0.5, "Maximum per-change impact")
	cmd.Flags().String("catalog-url", "", "Base URL of the package catalog")
	cmd.Flags().String("catalog-file", "", "YAML catalog snapshot for offline runs")
	cmd.Flags().String("history-dir", "", "Directory for persistent advisory history")
	cmd.Flags().Int64("seed", 0, "Random seed for simulated verification (0 derives from the clock)")
	_ = cmd.MarkFlagRequired("manifest")

	return cmd
}

func runPlan(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := runtime(cmd)
	if err != nil {
		return err
	}
	opts, err := cfg.Options(logger)
	if err != nil {
		return err
	}

	manifestPath, _ := cmd.Flags().GetString("manifest")
	manifest, err := depadvise.LoadManifest(manifestPath)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}

	m, err := depadvise.NewManager(opts...)
	if err != nil {
		return err
	}
	verify, _ := cmd.Flags().GetBool("verify")
	plan, err := m.PlanIncrementalUpdate(cmd.Context(), manifest.ToConfigurationSet(), verify)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		data, err := depadvise.PlanJSON(plan)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), depadvise.FormatPlan(plan))
	return nil
}
