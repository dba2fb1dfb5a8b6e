package repository

import (
	"context"

	"telegram-media-converter/internal/domain/model"
)

// ModeStateRepository is the port for the per-session conversion mode.
// GetMode returns model.ModeAuto for sessions that never selected a mode.
type ModeStateRepository interface {
	GetMode(ctx context.Context, chatID int64) (model.Mode, error)
	SetMode(ctx context.Context, chatID int64, mode model.Mode) error
	Clear(ctx context.Context, chatID int64) error
}

// Pinger is implemented by repositories backed by a remote store.
type Pinger interface {
	Ping(ctx context.Context) error
}
