package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	devAccessSecret  = "access_secret_dev"
	devRefreshSecret = "refresh_secret_dev"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	HTTPPort  string `env:"HTTP_PORT" default:"8080"`
	MongoURI  string `env:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDB   string `env:"MONGO_DB" default:"playlistr"`
	RedisAddr string `env:"REDIS_ADDR" default:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD"`

	AccessTokenSecret  string        `env:"ACCESS_TOKEN_SECRET" default:"access_secret_dev"`
	RefreshTokenSecret string        `env:"REFRESH_TOKEN_SECRET" default:"refresh_secret_dev"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_EXPIRES_IN" default:"15m"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_EXPIRES_IN" default:"168h"`

	SpotifyClientID     string `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string `env:"SPOTIFY_CLIENT_SECRET"`

	TopCacheTTL   time.Duration `env:"TOP_CACHE_TTL" default:"30s"`
	AuthRateLimit int           `env:"AUTH_RATE_LIMIT" default:"20"` // requests per minute per IP
	CORSOrigins   string        `env:"CORS_ORIGINS" default:"http://localhost:5173"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
	SentryDSN string `env:"SENTRY_DSN"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) SpotifyEnabled() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != ""
}

// AllowedOrigins splits CORS_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func validate(cfg *Config) error {
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	if cfg.AuthRateLimit <= 0 {
		return errors.New("AUTH_RATE_LIMIT must be positive")
	}
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}
	if !cfg.IsProduction() {
		return nil
	}
	if cfg.AccessTokenSecret == devAccessSecret || cfg.RefreshTokenSecret == devRefreshSecret {
		return errors.New("token secrets must be set in production")
	}
	return nil
}
