package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
)

// envPrefix namespaces every variable, e.g. TH_DB_DSN
const envPrefix = "TH"

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultSQLiteDSN = "file:taskhub.db?_foreign_keys=on"
)

// Config holds all application configuration.
type Config struct {
	Env      string `envconfig:"ENV" default:"dev"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	BaseURL  string `envconfig:"BASE_URL" default:"http://localhost:4200"`

	DBDriver string `envconfig:"DB_DRIVER" default:"sqlite"`
	DBDSN    string `envconfig:"DB_DSN"`

	JWTSecret  string        `envconfig:"JWT_SECRET"`
	JWTTTL     time.Duration `envconfig:"JWT_TTL" default:"1h"`
	BcryptCost int           `envconfig:"BCRYPT_COST" default:"12"`

	DefaultMemberPassword string `envconfig:"DEFAULT_MEMBER_PASSWORD" default:"ChangeMe123!"`
	ProtectLastOwner      bool   `envconfig:"PROTECT_LAST_OWNER" default:"false"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	SeedOnStart  bool   `envconfig:"SEED_ON_START" default:"false"`
	SeedFile     string `envconfig:"SEED_FILE"`
	SeedSchedule string `envconfig:"SEED_SCHEDULE"`

	// LoginRateLimit is the number of login attempts allowed per client IP
	// per minute
	LoginRateLimit int `envconfig:"LOGIN_RATE_LIMIT" default:"10"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	return load(true)
}

// LoadForTools reads configuration for offline commands (migrate, seed,
// admin) that never issue tokens, so TH_JWT_SECRET may be unset.
func LoadForTools() (*Config, error) {
	return load(false)
}

func load(serving bool) (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, err
	}

	cfg.Env = strings.TrimSpace(cfg.Env)
	if cfg.Env != "dev" && cfg.Env != "prod" {
		return nil, fmt.Errorf("TH_ENV must be one of: dev, prod (got: %s)", cfg.Env)
	}

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	cfg.DBDSN = strings.TrimSpace(cfg.DBDSN)
	switch cfg.DBDriver {
	case DriverSQLite:
		if cfg.DBDSN == "" {
			cfg.DBDSN = defaultSQLiteDSN
		}
	case DriverPostgres:
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("TH_DB_DSN is required when TH_DB_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("TH_DB_DRIVER must be one of: sqlite, postgres (got: %s)", cfg.DBDriver)
	}

	if serving {
		if cfg.JWTSecret == "" {
			return nil, fmt.Errorf("TH_JWT_SECRET is required")
		}
		if cfg.Env == "prod" && len(cfg.JWTSecret) < 32 {
			return nil, fmt.Errorf("TH_JWT_SECRET must be at least 32 characters (currently %d)", len(cfg.JWTSecret))
		}
	}
	if cfg.JWTTTL <= 0 {
		return nil, fmt.Errorf("TH_JWT_TTL must be positive (got: %s)", cfg.JWTTTL)
	}

	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, fmt.Errorf("TH_BCRYPT_COST must be between 4 and 31 (got: %d)", cfg.BcryptCost)
	}

	if len(cfg.DefaultMemberPassword) < 8 {
		return nil, fmt.Errorf("TH_DEFAULT_MEMBER_PASSWORD must be at least 8 characters")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("TH_LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", cfg.LogLevel)
	}

	cfg.SeedSchedule = strings.TrimSpace(cfg.SeedSchedule)
	if cfg.SeedSchedule != "" {
		if _, err := cron.ParseStandard(cfg.SeedSchedule); err != nil {
			return nil, fmt.Errorf("TH_SEED_SCHEDULE is not a valid cron expression: %w", err)
		}
	}

	if cfg.LoginRateLimit <= 0 {
		return nil, fmt.Errorf("TH_LOGIN_RATE_LIMIT must be positive (got: %d)", cfg.LoginRateLimit)
	}

	return cfg, nil
}

// IsDev returns true if running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// SeedingEnabled reports whether provisioning runs at startup or on a
// schedule
func (c *Config) SeedingEnabled() bool {
	return c.SeedOnStart || c.SeedSchedule != ""
}

// RedactedValues returns a map of config values with secrets redacted.
func (c *Config) RedactedValues() map[string]string {
	return map[string]string{
		"TH_ENV":                     c.Env,
		"TH_HTTP_ADDR":               c.HTTPAddr,
		"TH_BASE_URL":                c.BaseURL,
		"TH_DB_DRIVER":               c.DBDriver,
		"TH_DB_DSN":                  redactDSN(c.DBDSN),
		"TH_JWT_SECRET":              "[REDACTED]",
		"TH_JWT_TTL":                 c.JWTTTL.String(),
		"TH_BCRYPT_COST":             fmt.Sprintf("%d", c.BcryptCost),
		"TH_DEFAULT_MEMBER_PASSWORD": "[REDACTED]",
		"TH_PROTECT_LAST_OWNER":      fmt.Sprintf("%t", c.ProtectLastOwner),
		"TH_LOG_LEVEL":               c.LogLevel,
		"TH_SEED_ON_START":           fmt.Sprintf("%t", c.SeedOnStart),
		"TH_SEED_FILE":               c.SeedFile,
		"TH_SEED_SCHEDULE":           c.SeedSchedule,
		"TH_LOGIN_RATE_LIMIT":        fmt.Sprintf("%d", c.LoginRateLimit),
	}
}

func redactDSN(dsn string) string {
	if start := strings.Index(dsn, "://"); start != -1 {
		if end := strings.Index(dsn[start+3:], "@"); end != -1 {
			return dsn[:start+3] + "[REDACTED]" + dsn[start+3+end:]
		}
	}
	return dsn
}
