// Package database provides the PostgreSQL pool behind the monitor's
// repositories.
package database

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds connection pool settings.
type Config struct {
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	SSLMode     string
	AppName     string
	MaxConns    int
	MinConns    int
	MaxConnLife time.Duration
}

// ConfigFromEnv reads pool settings from DB_* environment variables, with
// local-development defaults.
func ConfigFromEnv() Config {
	port, _ := strconv.Atoi(envOr("DB_PORT", "5432"))
	maxConns, _ := strconv.Atoi(envOr("DB_MAX_OPEN_CONNS", "10"))
	minConns, _ := strconv.Atoi(envOr("DB_MAX_IDLE_CONNS", "5"))
	life, _ := time.ParseDuration(envOr("DB_CONN_MAX_LIFETIME", "5m"))

	return Config{
		Host:        envOr("DB_HOST", "localhost"),
		Port:        port,
		User:        envOr("DB_USER", "pigeon"),
		Password:    envOr("DB_PASSWORD", "localdev"),
		Database:    envOr("DB_NAME", "pigeon"),
		SSLMode:     envOr("DB_SSL_MODE", "disable"),
		AppName:     envOr("DB_APP_NAME", "pigeon-monitor"),
		MaxConns:    maxConns,
		MinConns:    minConns,
		MaxConnLife: life,
	}
}

// ConnectionString returns the pgx connection URL. The application_name
// shows up in pg_stat_activity, which matters when the monitor shares a
// database with other local services.
func (c Config) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s&application_name=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode, c.AppName,
	)
}

// Connect opens the pool and verifies it with a ping.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns) //nolint:gosec // small, env-sourced
	poolConfig.MinConns = int32(cfg.MinConns) //nolint:gosec // small, env-sourced
	poolConfig.MaxConnLifetime = cfg.MaxConnLife

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
