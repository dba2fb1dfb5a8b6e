// File: internal/domain/ports/adapter/telegram.go
package adapter

import (
	"context"
	"io"
)

type InlineButton struct {
	Text string
	Data string
	URL  string
}

// StatusHandle identifies a sent status message so it can be edited later.
type StatusHandle struct {
	ChatID    int64
	MessageID int
}

// MessagingTransport is everything the conversion pipeline needs from the chat transport.
type MessagingTransport interface {
	SendStatus(ctx context.Context, chatID int64, text string) (StatusHandle, error)
	UpdateStatus(ctx context.Context, handle StatusHandle, text string) error
	FetchAttachment(ctx context.Context, fileID string) (io.ReadCloser, error)
	DeliverVoice(ctx context.Context, chatID int64, filePath string, durationSec int) error
	DeliverVideoNote(ctx context.Context, chatID int64, filePath string, durationSec, length int) error
}

type TelegramBotAdapter interface {
	MessagingTransport
	SendMessage(ctx context.Context, telegramID int64, text string) error
	SendButtons(ctx context.Context, telegramID int64, text string, rows [][]InlineButton) error
}
