package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aliuyar1234/taskhub/internal/audit"
	"github.com/aliuyar1234/taskhub/internal/auth"
	"github.com/aliuyar1234/taskhub/internal/config"
	"github.com/aliuyar1234/taskhub/internal/db"
	"github.com/aliuyar1234/taskhub/internal/metrics"
	"github.com/aliuyar1234/taskhub/internal/provision"
	"github.com/aliuyar1234/taskhub/internal/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// App holds the application state
type App struct {
	Config      *config.Config
	DB          *db.Handle
	Store       *store.Store
	Metrics     *metrics.Metrics
	Provisioner *provision.Provisioner
	Router      http.Handler

	server *http.Server
}

// New creates and initializes a new application instance
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	SetupLogger(cfg.LogLevel, cfg.IsDev())

	log.Info().Msg("Initializing TaskHub application")
	log.Info().Interface("config", cfg.RedactedValues()).Msg("Configuration loaded")

	h, s, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.IsDev() {
		log.Info().Msg("Development mode: applying migrations")
		if err := db.RunMigrations(ctx, h.DB, h.Driver); err != nil {
			h.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	} else {
		log.Info().Msg("Production mode: run `taskhub migrate up` to apply migrations")
	}

	m := metrics.New()

	router, err := NewRouter(cfg, s, m)
	if err != nil {
		h.Close()
		return nil, err
	}

	app := &App{
		Config:      cfg,
		DB:          h,
		Store:       s,
		Metrics:     m,
		Provisioner: NewProvisioner(cfg, s, m),
		Router:      router,
	}

	log.Info().Msg("Application initialized successfully")
	return app, nil
}

// OpenStore connects to the configured database and returns a store over it
func OpenStore(ctx context.Context, cfg *config.Config) (*db.Handle, *store.Store, error) {
	log.Info().Str("driver", cfg.DBDriver).Msg("Connecting to database...")
	h, err := db.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info().Msg("Database connection established")

	s, err := store.New(h.DB, store.Dialect(h.Driver))
	if err != nil {
		h.Close()
		return nil, nil, err
	}
	return h, s, nil
}

// NewProvisioner builds the provisioner used by serve and seed
func NewProvisioner(cfg *config.Config, s *store.Store, m *metrics.Metrics) *provision.Provisioner {
	return provision.NewProvisioner(s, auth.NewBcryptHasher(cfg.BcryptCost), audit.NewWriter(s), m, cfg.DefaultMemberPassword)
}

// Start starts the HTTP server
func (a *App) Start() error {
	addr := a.Config.HTTPAddr
	log.Info().Str("addr", addr).Msg("Starting HTTP server")

	a.server = &http.Server{
		Addr:         addr,
		Handler:      a.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a.server.ListenAndServe()
}

// Shutdown stops the HTTP server, waiting for in-flight requests, and
// closes the database
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	if a.server != nil {
		err = a.server.Shutdown(ctx)
	}
	a.Close()
	return err
}

// Close releases the database connection
func (a *App) Close() {
	log.Info().Msg("Shutting down application")
	if a.DB != nil {
		log.Info().Msg("Closing database connection")
		a.DB.Close()
	}
}

// SetupLogger configures the global logger: human-readable console output
// in development, JSON otherwise. An unknown level falls back to info.
func SetupLogger(level string, pretty bool) {
	if pretty {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", "taskhub").Logger()
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	log.Debug().Str("level", lvl.String()).Msg("Logger configured")
}
