package telegram

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"telegram-media-converter/internal/domain/ports/adapter"
)

var _ adapter.TelegramBotAdapter = (*NoopBotAdapter)(nil)

// NoopBotAdapter implements adapter.TelegramBotAdapter for local runs without
// Telegram. Attachment ids are local file paths and delivered files are
// copied into outDir.
type NoopBotAdapter struct {
	outDir string
	log    *zerolog.Logger
	nextID atomic.Int64

	mu        sync.Mutex
	delivered []string
}

func NewNoopBotAdapter(outDir string, logger *zerolog.Logger) (*NoopBotAdapter, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	l := logger.With().Str("component", "NoopTelegram").Logger()
	return &NoopBotAdapter{outDir: outDir, log: &l}, nil
}

func (b *NoopBotAdapter) SendMessage(ctx context.Context, tgID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", tgID).Str("text", text).Msg("send message")
	return nil
}

func (b *NoopBotAdapter) SendButtons(ctx context.Context, tgID int64, text string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", tgID).Str("text", text).Interface("buttons", rows).Msg("send buttons")
	return nil
}

func (b *NoopBotAdapter) SendStatus(ctx context.Context, chatID int64, text string) (adapter.StatusHandle, error) {
	if err := ctx.Err(); err != nil {
		return adapter.StatusHandle{}, err
	}
	id := int(b.nextID.Add(1))
	b.log.Info().Int64("chat_id", chatID).Int("message_id", id).Str("text", text).Msg("status")
	return adapter.StatusHandle{ChatID: chatID, MessageID: id}, nil
}

func (b *NoopBotAdapter) UpdateStatus(ctx context.Context, h adapter.StatusHandle, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", h.ChatID).Int("message_id", h.MessageID).Str("text", text).Msg("status update")
	return nil
}

func (b *NoopBotAdapter) FetchAttachment(ctx context.Context, fileID string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(fileID)
}

func (b *NoopBotAdapter) DeliverVoice(ctx context.Context, chatID int64, filePath string, durationSec int) error {
	return b.keep(ctx, "voice", chatID, filePath, durationSec)
}

func (b *NoopBotAdapter) DeliverVideoNote(ctx context.Context, chatID int64, filePath string, durationSec, length int) error {
	return b.keep(ctx, "video_note", chatID, filePath, durationSec)
}

// Delivered lists the copies made so far.
func (b *NoopBotAdapter) Delivered() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.delivered...)
}

// keep copies the delivered file out of the temp dir, which is wiped when the
// job ends.
func (b *NoopBotAdapter) keep(ctx context.Context, kind string, chatID int64, src string, durationSec int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst := filepath.Join(b.outDir, fmt.Sprintf("%d_%s%s", chatID, kind, filepath.Ext(src)))
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	b.mu.Lock()
	b.delivered = append(b.delivered, dst)
	b.mu.Unlock()
	b.log.Info().Int64("chat_id", chatID).Str("kind", kind).Int("duration", durationSec).Str("path", dst).Msg("delivered")
	return nil
}
