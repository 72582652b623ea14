package cli

import (
	"log/slog"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the top-level depadvise command.
func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "depadvise",
		Short: "Dependency configuration advisor",
		Long:  "Depadvise recommends, verifies, and incrementally updates versioned dependency configurations.",
	}

	cmd.Version = version
	cmd.PersistentFlags().String("config", "", "Path to a config file (default: ./depadvise.yaml)")
	cmd.PersistentFlags().Bool("verbose", false, "Enable structured log output on stderr")
	cmd.PersistentFlags().Bool("json", false, "Emit JSON instead of text")

	cmd.AddCommand(NewAdviseCmd(), NewPlanCmd(), NewTestCmd())
	return cmd
}

// runtime loads the merged configuration and builds the logger every
// subcommand shares.
func runtime(cmd *cobra.Command) (Config, *slog.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := LoadConfig(configPath, cmd.Flags())
	if err != nil {
		return Config{}, nil, err
	}

	var logger *slog.Logger
	if cfg.Verbose {
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return cfg, logger, nil
}
