package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"

	"github.com/eshaffer321/freight-reconcile/internal/infrastructure/storage/migrations"
)

// latestSchemaVersion is the highest migration in the migrations package.
// Update this when adding new migrations.
const latestSchemaVersion = 2

// runMigrations applies all pending goose migrations
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	provider, err := goose.NewProvider(database.DialectSQLite3, db, migrations.FS)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("migration applied",
			"version", r.Source.Version,
			"file", r.Source.Path,
			"duration", r.Duration)
	}

	return nil
}

// SchemaVersion returns the current goose schema version
func (s *Storage) SchemaVersion(ctx context.Context) (int64, error) {
	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(version_id) FROM goose_db_version WHERE is_applied = 1`,
	).Scan(&version)
	if err != nil {
		return 0, err
	}
	return version.Int64, nil
}
