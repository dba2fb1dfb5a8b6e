// File: internal/usecase/mode_uc.go
package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"telegram-media-converter/internal/domain"
	"telegram-media-converter/internal/domain/model"
	"telegram-media-converter/internal/domain/ports/repository"
)

// Compile-time check
var _ ModeUseCase = (*modeUC)(nil)

// ModeUseCase is the mode-selection surface. It only touches the mode store.
type ModeUseCase interface {
	Start(ctx context.Context, chatID int64) error
	Select(ctx context.Context, chatID int64, mode model.Mode) error
	Reset(ctx context.Context, chatID int64) error
	// Current never returns an empty mode; on a store failure it reports
	// ModeAuto together with the error.
	Current(ctx context.Context, chatID int64) (model.Mode, error)
}

type modeUC struct {
	repo repository.ModeStateRepository
	log  *zerolog.Logger
}

func NewModeUseCase(repo repository.ModeStateRepository, logger *zerolog.Logger) *modeUC {
	l := logger.With().Str("component", "ModeUC").Logger()
	return &modeUC{repo: repo, log: &l}
}

func (m *modeUC) Start(ctx context.Context, chatID int64) error {
	return m.Reset(ctx, chatID)
}

func (m *modeUC) Select(ctx context.Context, chatID int64, mode model.Mode) error {
	if !mode.IsExplicit() {
		return domain.ErrInvalidArgument
	}
	if err := m.repo.SetMode(ctx, chatID, mode); err != nil {
		m.log.Error().Err(err).Int64("chat_id", chatID).Str("mode", string(mode)).Msg("set mode failed")
		return err
	}
	m.log.Debug().Int64("chat_id", chatID).Str("mode", string(mode)).Msg("mode selected")
	return nil
}

func (m *modeUC) Reset(ctx context.Context, chatID int64) error {
	if err := m.repo.Clear(ctx, chatID); err != nil {
		m.log.Error().Err(err).Int64("chat_id", chatID).Msg("clear mode failed")
		return err
	}
	return nil
}

func (m *modeUC) Current(ctx context.Context, chatID int64) (model.Mode, error) {
	mode, err := m.repo.GetMode(ctx, chatID)
	if err != nil {
		return model.ModeAuto, err
	}
	if mode == "" {
		return model.ModeAuto, nil
	}
	return mode, nil
}
