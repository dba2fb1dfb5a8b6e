package memory

import (
	"context"
	"sync"

	"telegram-media-converter/internal/domain/model"
	"telegram-media-converter/internal/domain/ports/repository"
)

var _ repository.ModeStateRepository = (*ModeStateRepo)(nil)

// ModeStateRepo keeps modes in process memory. Entries live until Clear or
// process exit.
type ModeStateRepo struct {
	mu    sync.RWMutex
	modes map[int64]model.Mode
}

func NewModeStateRepo() *ModeStateRepo {
	return &ModeStateRepo{modes: make(map[int64]model.Mode)}
}

func (r *ModeStateRepo) GetMode(_ context.Context, chatID int64) (model.Mode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.modes[chatID]; ok {
		return m, nil
	}
	return model.ModeAuto, nil
}

func (r *ModeStateRepo) SetMode(_ context.Context, chatID int64, mode model.Mode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !mode.IsExplicit() {
		delete(r.modes, chatID)
		return nil
	}
	r.modes[chatID] = mode
	return nil
}

func (r *ModeStateRepo) Clear(ctx context.Context, chatID int64) error {
	return r.SetMode(ctx, chatID, model.ModeAuto)
}
