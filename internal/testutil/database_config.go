package testutil

import (
	"os"

	"github.com/spf13/cast"

	"github.com/pthm/strata/internal/database"
)

const defaultMaxConns = 10

// ServerConfig points integration tests at an existing PostgreSQL server.
// An empty URL means a container is started instead.
type ServerConfig struct {
	URL      string
	MaxConns int
}

// ServerFromEnv reads DATABASE_URL, or builds a URL from DATABASE_HOST and
// the other DATABASE_* variables. DATABASE_MAX_CONNS caps the pool of each
// fixture database.
func ServerFromEnv() ServerConfig {
	cfg := ServerConfig{MaxConns: defaultMaxConns}
	if n := cast.ToInt(os.Getenv("DATABASE_MAX_CONNS")); n > 0 {
		cfg.MaxConns = n
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.URL = url
		return cfg
	}
	host := os.Getenv("DATABASE_HOST")
	if host == "" {
		return cfg
	}

	opts := database.Options{
		Driver:   database.Postgres,
		Host:     host,
		Port:     cast.ToInt(os.Getenv("DATABASE_PORT")),
		Name:     envOr("DATABASE_NAME", "postgres"),
		User:     envOr("DATABASE_USER", "postgres"),
		Password: os.Getenv("DATABASE_PASSWORD"),
		SSLMode:  envOr("DATABASE_SSLMODE", "prefer"),
	}
	// Host, name and user are always set, so DSN cannot fail.
	cfg.URL, _ = opts.DSN()
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
