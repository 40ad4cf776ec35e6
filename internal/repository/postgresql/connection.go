// Package postgresql implements the core store interfaces on top of a
// pgx connection pool. Queries are built with squirrel; bulk row loads
// use the COPY protocol.
package postgresql

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mobidash/importd/internal/config"
)

const (
	pingAttempts = 5
	pingInterval = 5 * time.Second
)

// NewConnection opens a pool against the configured database and waits for it
// to answer a ping. The service regularly starts before its database
// container, so the first pings are retried.
func NewConnection(ctx context.Context, log *slog.Logger, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := waitReady(ctx, log, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

func waitReady(ctx context.Context, log *slog.Logger, pool *pgxpool.Pool) error {
	var err error
	for attempt := 1; attempt <= pingAttempts; attempt++ {
		if err = pool.Ping(ctx); err == nil {
			return nil
		}
		if attempt == pingAttempts {
			break
		}

		log.Debug("database not ready yet",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", pingAttempts),
			slog.String("err", err.Error()))

		select {
		case <-time.After(pingInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return err
}
