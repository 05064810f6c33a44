package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eshaffer321/freight-reconcile/internal/infrastructure/config"
	"github.com/eshaffer321/freight-reconcile/internal/infrastructure/storage"
)

// OpenStore connects to the configured obligation store.
// SQLite databases are migrated on open.
func OpenStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (storage.Repository, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		store, err := storage.NewPostgresStorage(ctx, cfg.PostgresURL, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverSQLite, "":
		store, err := storage.NewStorage(cfg.DatabasePath, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
