package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"Spendtrack"`
		Port int    `envconfig:"PORT" default:"8080"`

		// One of debug, info, warn, error.
		LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"spendtrack"`
		SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

		MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
		MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
		ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
	}

	Server struct {
		Timeout      time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
		AllowOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	}

	Auth struct {
		// Empty disables authentication on the API.
		JWTSecret string        `envconfig:"AUTH_JWT_SECRET"`
		TokenTTL  time.Duration `envconfig:"AUTH_TOKEN_TTL" default:"24h"`
		Issuer    string        `envconfig:"AUTH_ISSUER" default:"spendtrack"`
	}
}

// ConnectionString builds a postgres URL with user info and database name
// escaped.
func (c *Config) ConnectionString() string {
	user := url.User(c.DB.User)
	if c.DB.Password != "" {
		user = url.UserPassword(c.DB.User, c.DB.Password)
	}

	dsn := url.URL{
		Scheme:   "postgres",
		User:     user,
		Host:     net.JoinHostPort(c.DB.Host, strconv.Itoa(c.DB.Port)),
		Path:     "/" + c.DB.Name,
		RawQuery: url.Values{"sslmode": {c.DB.SSLMode}}.Encode(),
	}

	return dsn.String()
}

// Level parses App.LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.App.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.App.LogLevel, err)
	}

	return lvl, nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if _, err := cfg.Level(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
