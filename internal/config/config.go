package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-envconfig"
)

const (
	defaultDatabaseDSN = "host=localhost user=postgres password=postgres dbname=faulty_assets port=5432 sslmode=disable"
	defaultCORSOrigins = "http://localhost:5173"
)

type Config struct {
	AppEnv         string `env:"APP_ENV,default=dev"`
	HTTPPort       string `env:"HTTP_PORT,default=8080"`
	DatabaseDriver string `env:"DATABASE_DRIVER,default=postgres"`
	DatabaseDSN    string `env:"DATABASE_DSN,default=host=localhost user=postgres password=postgres dbname=faulty_assets port=5432 sslmode=disable"`

	JWTSecret   string        `env:"JWT_SECRET"`
	JWTIssuer   string        `env:"JWT_ISSUER,default=faulty-asset-tracker"`
	JWTAudience string        `env:"JWT_AUDIENCE,default=faulty-asset-tracker"`
	JWTTTL      time.Duration `env:"JWT_TTL,default=3h"`

	CORSOrigins        string `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:5173"`
	RateLimitPerMinute int    `env:"RATE_LIMIT_PER_MINUTE,default=300"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=console"`

	NATSURL      string `env:"NATS_URL"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads a local .env file when present and then the process environment.
func Load(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith populates a Config from the given lookuper and validates it.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.warnDefaults()
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("config: JWT_SECRET must be at least 32 characters")
	}
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.JWTTTL <= 0 {
		return errors.New("config: JWT_TTL must be positive")
	}
	return nil
}

// AllowedOrigins splits the comma separated CORS origin list.
func (c *Config) AllowedOrigins() []string {
	parts := strings.Split(c.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "prod") || strings.EqualFold(c.AppEnv, "production")
}

func (c *Config) warnDefaults() {
	if c.DatabaseDriver == "postgres" && c.DatabaseDSN == defaultDatabaseDSN {
		log.Warn().Msg("DATABASE_DSN is using the default value, set your own Postgres DSN for production")
	}
	if c.CORSOrigins == defaultCORSOrigins {
		log.Warn().Msg("CORS_ALLOWED_ORIGINS is using the default value, set your own origin for production")
	}
}
