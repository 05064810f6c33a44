package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/freight-reconcile/internal/infrastructure/config"
	"github.com/eshaffer321/freight-reconcile/internal/infrastructure/storage"
)

func newMigrateCommand(global *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQLite schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, global)
			if err != nil {
				return err
			}
			if cfg.Storage.Driver == config.DriverPostgres {
				return fmt.Errorf("the postgres schema is managed outside this tool")
			}

			// Opening the store applies migrations
			store, err := storage.NewStorage(cfg.Storage.DatabasePath, newLogger(cfg, global, "storage"))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			version, err := store.SchemaVersion(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: schema version %d\n", cfg.Storage.DatabasePath, version)
			return nil
		},
	}
}
