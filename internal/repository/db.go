// Package repository persists matches. MatchRepository is implemented in memory and
// on postgres; both store the aggregate as JSON so a round trip looks the same.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/3jesters/OpenTCG-Backend-sub005/internal/config"
)

var (
	// ErrMatchNotFound is returned when no match has the requested id.
	ErrMatchNotFound = errors.New("match not found")
	// ErrMatchExists is returned by Create for a duplicate id.
	ErrMatchExists = errors.New("match already exists")
	// ErrHistoryRewrite is returned when a save would drop or alter recorded actions.
	ErrHistoryRewrite = errors.New("match history is append-only")
	// ErrVersionConflict is returned when the stored match changed since it was loaded.
	ErrVersionConflict = errors.New("match version conflict")
)

// NewDB opens a postgres pool and checks connectivity.
func NewDB(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if logger != nil {
		logger.Info("connected to database",
			zap.Int32("max_conns", poolCfg.MaxConns),
			zap.Int32("min_conns", poolCfg.MinConns),
		)
	}
	return pool, nil
}
