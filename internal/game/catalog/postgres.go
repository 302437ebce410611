package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// CreateTableSQL creates the card_definitions table used by PostgresCatalog.
const CreateTableSQL = `
CREATE TABLE IF NOT EXISTS card_definitions (
	card_id    TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	supertype  TEXT NOT NULL,
	stage      TEXT NOT NULL DEFAULT '',
	definition JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresCatalog reads definitions from the card_definitions table.
type PostgresCatalog struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresCatalog creates a catalog backed by pool.
func NewPostgresCatalog(pool *pgxpool.Pool, logger *zap.Logger) *PostgresCatalog {
	return &PostgresCatalog{pool: pool, logger: logger}
}

// GetDefinition implements Catalog.
func (c *PostgresCatalog) GetDefinition(ctx context.Context, cardID string) (*CardDefinition, error) {
	var raw []byte
	err := c.pool.QueryRow(ctx,
		`SELECT definition FROM card_definitions WHERE card_id = $1`, cardID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrCardNotFound, cardID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query card %s: %w", cardID, err)
	}

	var def CardDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("failed to decode card %s: %w", cardID, err)
	}
	if c.logger != nil {
		c.logger.Debug("loaded card definition", zap.String("card_id", cardID))
	}
	return &def, nil
}

// Upsert stores definitions in one transaction.
func (c *PostgresCatalog) Upsert(ctx context.Context, defs []*CardDefinition) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, d := range defs {
		raw, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("failed to encode card %s: %w", d.CardID, err)
		}
		batch.Queue(`
			INSERT INTO card_definitions (card_id, name, supertype, stage, definition, updated_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (card_id) DO UPDATE SET
				name = EXCLUDED.name,
				supertype = EXCLUDED.supertype,
				stage = EXCLUDED.stage,
				definition = EXCLUDED.definition,
				updated_at = now()`,
			d.CardID, d.Name, string(d.Supertype), string(d.Stage), raw,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to upsert cards: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit cards: %w", err)
	}
	return nil
}
