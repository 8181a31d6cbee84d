package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aliuyar1234/taskhub/internal/app"
	"github.com/aliuyar1234/taskhub/internal/config"
	"github.com/aliuyar1234/taskhub/internal/provision"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		return serve(cmd.Context(), cfg)
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	if cfg.SeedOnStart {
		groups, err := provision.Source(cfg.SeedFile)
		if err != nil {
			application.Close()
			return err
		}
		application.Provisioner.Run(ctx, groups)
	}

	var scheduler *cron.Cron
	if cfg.SeedSchedule != "" {
		scheduler = provision.NewScheduler()
		if _, err := provision.Schedule(scheduler, cfg.SeedSchedule, application.Provisioner, func() ([]provision.Group, error) {
			return provision.Source(cfg.SeedFile)
		}); err != nil {
			application.Close()
			return err
		}
		scheduler.Start()
		log.Info().Str("schedule", cfg.SeedSchedule).Msg("Scheduled provisioning enabled")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- application.Start()
	}()

	select {
	case err := <-errChan:
		stopScheduler(scheduler)
		application.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server error")
			return err
		}
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		stopScheduler(scheduler)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := application.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Shutdown failed")
			return err
		}
	}

	return nil
}

// stopScheduler waits for a running provisioning job to finish
func stopScheduler(c *cron.Cron) {
	if c == nil {
		return
	}
	<-c.Stop().Done()
}
