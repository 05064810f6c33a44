// Package cli implements the freight-reconcile command line.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/freight-reconcile/internal/infrastructure/config"
	"github.com/eshaffer321/freight-reconcile/internal/infrastructure/logging"
)

// Version is set at build time with -ldflags "-X ...cli.Version=..."
var Version = "dev"

// GlobalFlags are shared by every subcommand.
type GlobalFlags struct {
	ConfigPath string
	Verbose    bool
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	flags := &GlobalFlags{}

	rootCmd := &cobra.Command{
		Use:     "freight-reconcile",
		Short:   "Bank statement reconciliation for freight payables and receivables",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.ConfigPath, "config", "c", "config.yaml", "Path to config file (falls back to environment variables)")
	rootCmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(newServeCommand(flags))
	rootCmd.AddCommand(newReconcileCommand(flags))
	rootCmd.AddCommand(newMigrateCommand(flags))

	return rootCmd
}

// loadConfig reads the config file. An explicitly passed path must exist;
// the default path falls back to environment variables.
func loadConfig(cmd *cobra.Command, flags *GlobalFlags) (*config.Config, error) {
	if cmd.Flags().Changed("config") {
		cfg, err := config.Load(flags.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", flags.ConfigPath, err)
		}
		return cfg, nil
	}
	return config.LoadOrEnv_WithPath(flags.ConfigPath), nil
}

func newLogger(cfg *config.Config, flags *GlobalFlags, system string) *slog.Logger {
	loggingCfg := cfg.Observability.Logging
	if flags.Verbose {
		loggingCfg.Level = "debug"
	}
	return logging.NewLoggerWithSystem(loggingCfg, system)
}
