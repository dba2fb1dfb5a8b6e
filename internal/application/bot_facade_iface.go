package application

import (
	"context"

	"telegram-media-converter/internal/domain/model"
)

// ---- small interfaces to decouple the facade from concrete usecase structs ----
// Using interfaces enables tests to pass in light-weight mocks.
type ModeUseCaseIface interface {
	Start(ctx context.Context, chatID int64) error
	Select(ctx context.Context, chatID int64, mode model.Mode) error
	Reset(ctx context.Context, chatID int64) error
	Current(ctx context.Context, chatID int64) (model.Mode, error)
}

type ConversionUseCaseIface interface {
	Handle(ctx context.Context, req model.ConversionRequest) (*model.ConversionJob, error)
}

type Translator interface {
	T(key string, args ...interface{}) string
}
