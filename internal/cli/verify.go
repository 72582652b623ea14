package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/depadvise/depadvise"
)

// NewTestCmd creates the "test" command.
func NewTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Verify the configuration declared in a manifest",
		Long: "Test runs compatibility checks and layered verification against the manifest's " +
			"configuration and reports the verdict.",
		Args: cobra.NoArgs,
		RunE: runTest,
	}

	cmd.Flags().String("manifest", "", "YAML manifest holding the configuration (required)")
	cmd.Flags().String("history-dir", "", "Directory for persistent advisory history")
	cmd.Flags().Int64("seed", 0, "Random seed for simulated verification (0 derives from the clock)")
	_ = cmd.MarkFlagRequired("manifest")

	return cmd
}

func runTest(cmd *cobra.Command, _ []string) error {
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
	result, err := m.TestConfiguration(cmd.Context(), manifest.ToConfigurationSet())
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	out := cmd.OutOrStdout()
	if result.Success {
		fmt.Fprintf(out, "PASS %s (%s)\n", result.Configuration.Name, result.Duration())
	} else {
		fmt.Fprintf(out, "FAIL %s (%s): %s\n", result.Configuration.Name, result.Duration(), result.Failure)
	}
	for _, line := range result.Logs {
		fmt.Fprintf(out, "  %s\n", line)
	}
	return nil
}
