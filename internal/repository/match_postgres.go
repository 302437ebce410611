package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/match"
)

// CreateMatchesSQL creates the matches table used by PostgresMatchRepository.
const CreateMatchesSQL = `
CREATE TABLE IF NOT EXISTS matches (
	id           TEXT PRIMARY KEY,
	player1_id   TEXT NOT NULL,
	player2_id   TEXT NOT NULL,
	lifecycle    TEXT NOT NULL,
	version      INTEGER NOT NULL,
	action_count INTEGER NOT NULL,
	body         JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
)`

const uniqueViolation = "23505"

// PostgresMatchRepository stores matches as JSONB rows.
type PostgresMatchRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresMatchRepository creates a repository on pool.
func NewPostgresMatchRepository(pool *pgxpool.Pool, logger *zap.Logger) *PostgresMatchRepository {
	return &PostgresMatchRepository{pool: pool, logger: logger}
}

// Migrate creates the matches table if needed.
func (r *PostgresMatchRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, CreateMatchesSQL); err != nil {
		return fmt.Errorf("failed to create matches table: %w", err)
	}
	return nil
}

// Create implements match.Repository.
func (r *PostgresMatchRepository) Create(ctx context.Context, m *match.Match) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode match: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO matches (id, player1_id, player2_id, lifecycle, version, action_count, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.Player1ID, m.Player2ID, m.Lifecycle.String(), m.Version, len(m.Actions), body, m.CreatedAt, m.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrMatchExists, m.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert match %s: %w", m.ID, err)
	}
	return nil
}

// Get implements match.Repository.
func (r *PostgresMatchRepository) Get(ctx context.Context, id string) (*match.Match, error) {
	return r.get(ctx, r.pool, id, false)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *PostgresMatchRepository) get(ctx context.Context, q querier, id string, forUpdate bool) (*match.Match, error) {
	sql := `SELECT body FROM matches WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	var raw []byte
	err := q.QueryRow(ctx, sql, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrMatchNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query match %s: %w", id, err)
	}
	return decodeMatch(raw)
}

// Save implements match.Repository. The stored row is locked while the version and
// history checks run, so two writers on different processes cannot both win.
func (r *PostgresMatchRepository) Save(ctx context.Context, m *match.Match) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode match: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stored, err := r.get(ctx, tx, m.ID, true)
	if err != nil {
		return err
	}
	if err := checkSave(stored, m); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE matches
		SET lifecycle = $2, version = $3, action_count = $4, body = $5, updated_at = $6
		WHERE id = $1`,
		m.ID, m.Lifecycle.String(), m.Version, len(m.Actions), body, m.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to update match %s: %w", m.ID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit match %s: %w", m.ID, err)
	}

	if r.logger != nil {
		r.logger.Debug("saved match",
			zap.String("match_id", m.ID),
			zap.Int("version", m.Version),
			zap.Int("actions", len(m.Actions)),
		)
	}
	return nil
}
