package database

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"sqlforge/internal/config"
)

// Connect builds the process-wide connection pool. The pool is shared
// by every request and must be closed exactly once at shutdown.
func Connect(cfg config.DBConfig) (*pgxpool.Pool, error) {
	// Build connection string using postgres:// URL format.
	// url.UserPassword properly encodes username and password.
	userInfo := url.UserPassword(cfg.Username, cfg.Password)
	encodedDatabase := url.PathEscape(cfg.Database)

	dsn := fmt.Sprintf(
		"postgres://%s@%s:%s/%s?sslmode=disable",
		userInfo.String(),
		cfg.Host,
		cfg.Port,
		encodedDatabase,
	)

	log.Printf("Connecting to database: postgres://%s:***@%s:%s/%s", cfg.Username, cfg.Host, cfg.Port, cfg.Database)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string (check your .env file): %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 5 * time.Minute
	poolConfig.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection pool established successfully")
	return pool, nil
}
