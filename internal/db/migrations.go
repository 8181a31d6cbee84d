package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aliuyar1234/taskhub/migrations"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
)

// NewMigrator builds a goose provider over the embedded migrations of driver
func NewMigrator(sqlDB *sql.DB, driver string, quiet bool) (*goose.Provider, error) {
	dialect, err := gooseDialect(driver)
	if err != nil {
		return nil, err
	}

	dir, err := migrations.Dir(driver)
	if err != nil {
		return nil, err
	}

	var opts []goose.ProviderOption
	if quiet {
		opts = append(opts, goose.WithLogger(goose.NopLogger()))
	}

	provider, err := goose.NewProvider(dialect, sqlDB, dir, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create goose provider: %w", err)
	}
	return provider, nil
}

// RunMigrations applies all pending database migrations
func RunMigrations(ctx context.Context, sqlDB *sql.DB, driver string) error {
	log.Info().Str("driver", driver).Msg("Running database migrations...")

	provider, err := NewMigrator(sqlDB, driver, true)
	if err != nil {
		return err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	for _, r := range results {
		log.Info().
			Str("migration", r.Source.Path).
			Dur("duration", r.Duration).
			Msg("Applied migration")
	}

	log.Info().Int("applied", len(results)).Msg("All migrations applied successfully")
	return nil
}

func gooseDialect(driver string) (goose.Dialect, error) {
	switch driver {
	case DriverPostgres:
		return goose.DialectPostgres, nil
	case DriverSQLite:
		return goose.DialectSQLite3, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}
