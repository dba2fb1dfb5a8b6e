// File: internal/infra/db/postgres/mode_state_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-media-converter/internal/domain/model"
	"telegram-media-converter/internal/domain/ports/repository"
)

var (
	_ repository.ModeStateRepository = (*ModeStateRepo)(nil)
	_ repository.Pinger              = (*ModeStateRepo)(nil)
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS session_modes (
  session_id BIGINT PRIMARY KEY,
  mode       TEXT NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

type executor interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

// ModeStateRepo persists chat modes in the session_modes table. Auto is never
// stored; its absence is the default.
type ModeStateRepo struct {
	pool *pgxpool.Pool
	db   executor
}

func NewModeStateRepo(pool *pgxpool.Pool) *ModeStateRepo {
	return &ModeStateRepo{pool: pool, db: pool}
}

// EnsureSchema creates the session_modes table when missing.
func (r *ModeStateRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (r *ModeStateRepo) GetMode(ctx context.Context, chatID int64) (model.Mode, error) {
	const q = `SELECT mode FROM session_modes WHERE session_id = $1;`
	var mode string
	if err := r.db.QueryRow(ctx, q, chatID).Scan(&mode); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ModeAuto, nil
		}
		return model.ModeAuto, fmt.Errorf("get mode: %w", err)
	}
	return model.ParseMode(mode), nil
}

func (r *ModeStateRepo) SetMode(ctx context.Context, chatID int64, mode model.Mode) error {
	if !mode.IsExplicit() {
		return r.Clear(ctx, chatID)
	}
	const q = `
INSERT INTO session_modes (session_id, mode, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (session_id) DO UPDATE SET
  mode = EXCLUDED.mode,
  updated_at = EXCLUDED.updated_at;`
	if _, err := r.db.Exec(ctx, q, chatID, string(mode)); err != nil {
		return fmt.Errorf("set mode: %w", err)
	}
	return nil
}

func (r *ModeStateRepo) Clear(ctx context.Context, chatID int64) error {
	const q = `DELETE FROM session_modes WHERE session_id = $1;`
	if _, err := r.db.Exec(ctx, q, chatID); err != nil {
		return fmt.Errorf("clear mode: %w", err)
	}
	return nil
}

func (r *ModeStateRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
