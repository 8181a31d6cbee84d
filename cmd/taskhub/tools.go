package main

import (
	"context"

	"github.com/aliuyar1234/taskhub/internal/app"
	"github.com/aliuyar1234/taskhub/internal/config"
	"github.com/aliuyar1234/taskhub/internal/db"
	"github.com/aliuyar1234/taskhub/internal/store"
	"github.com/spf13/cobra"
)

// addDBFlags registers --driver and --dsn, which override TH_DB_DRIVER and
// TH_DB_DSN for offline commands
func addDBFlags(cmd *cobra.Command) {
	cmd.Flags().String("driver", "", "Database driver: sqlite or postgres (defaults to TH_DB_DRIVER)")
	cmd.Flags().String("dsn", "", "Database DSN (defaults to TH_DB_DSN)")
}

func loadToolConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadForTools()
	if err != nil {
		return nil, err
	}
	if driver, _ := cmd.Flags().GetString("driver"); driver != "" {
		cfg.DBDriver = driver
	}
	if dsn, _ := cmd.Flags().GetString("dsn"); dsn != "" {
		cfg.DBDSN = dsn
	}
	app.SetupLogger(cfg.LogLevel, true)
	return cfg, nil
}

func openToolStore(ctx context.Context, cmd *cobra.Command) (*config.Config, *db.Handle, *store.Store, error) {
	cfg, err := loadToolConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	h, s, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, h, s, nil
}
