package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"telegram-media-converter/internal/domain/model"
	"telegram-media-converter/internal/domain/ports/repository"
)

var (
	_ repository.ModeStateRepository = (*ModeStateRepo)(nil)
	_ repository.Pinger              = (*ModeStateRepo)(nil)
)

// ModeStateRepo keeps each chat's conversion mode under conv_mode:<chatID>.
type ModeStateRepo struct {
	client RedisClient
	ttl    time.Duration
}

// NewModeStateRepo stores modes without expiry when ttl is zero.
func NewModeStateRepo(client RedisClient, ttl time.Duration) *ModeStateRepo {
	if ttl < 0 {
		ttl = 0
	}
	return &ModeStateRepo{client: client, ttl: ttl}
}

func (s *ModeStateRepo) modeKey(chatID int64) string {
	return fmt.Sprintf("conv_mode:%d", chatID)
}

func (s *ModeStateRepo) GetMode(ctx context.Context, chatID int64) (model.Mode, error) {
	v, err := s.client.Get(ctx, s.modeKey(chatID))
	if errors.Is(err, redis.Nil) {
		return model.ModeAuto, nil
	}
	if err != nil {
		return model.ModeAuto, err
	}
	return model.ParseMode(v), nil
}

func (s *ModeStateRepo) SetMode(ctx context.Context, chatID int64, mode model.Mode) error {
	if !mode.IsExplicit() {
		return s.Clear(ctx, chatID)
	}
	return s.client.Set(ctx, s.modeKey(chatID), string(mode), s.ttl)
}

func (s *ModeStateRepo) Clear(ctx context.Context, chatID int64) error {
	return s.client.Del(ctx, s.modeKey(chatID))
}

func (s *ModeStateRepo) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}
