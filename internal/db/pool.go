package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/aglayrton/fluxo-agua/internal/config"
)

// NewPool creates the PostgreSQL pool backing the reading store. The
// pool is sized from configuration and pinged on startup, so a missing
// database fails app start instead of the first submitted reading.
func NewPool(lc fx.Lifecycle, logger *zap.Logger, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("DATABASE_URL is not a valid postgres URL: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create reading store pool: %w", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("pinging reading store",
				zap.String("url", redactURL(cfg.URL)),
				zap.Int32("max_conns", poolCfg.MaxConns),
				zap.Int32("min_conns", poolCfg.MinConns),
			)
			if err := pool.Ping(ctx); err != nil {
				return fmt.Errorf("reading store is unreachable, no readings can be accepted until DATABASE_URL points at a running PostgreSQL: %w", err)
			}
			logger.Info("reading store ready")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			pool.Close()
			logger.Info("reading store pool closed")
			return nil
		},
	})

	return pool, nil
}

// redactURL hides the credential section of a connection URL for logging
func redactURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	scheme := strings.Index(url, "://")
	if scheme < 0 {
		return "***" + url[at:]
	}
	return url[:scheme+3] + "***" + url[at:]
}
