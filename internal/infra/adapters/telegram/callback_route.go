package telegram

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-media-converter/internal/application"
)

// cbHandler answers one callback. messageID is the message carrying the
// keyboard, or zero when Telegram did not include it.
type cbHandler func(ctx context.Context, chatID int64, messageID int, data string) error

// Exact-match callbacks
func (r *RealTelegramBotAdapter) cbRoutes() map[string]cbHandler {
	return map[string]cbHandler{
		application.CallbackModeCircle:  r.modeCBRoute,
		application.CallbackModeVoice:   r.modeCBRoute,
		application.CallbackModeExtract: r.modeCBRoute,
		application.CallbackModeReset:   r.modeCBRoute,
	}
}

// modeCBRoute switches the mode and redraws the menu in place, as the
// keyboard buttons edit their own message.
func (r *RealTelegramBotAdapter) modeCBRoute(ctx context.Context, chatID int64, messageID int, data string) error {
	reply, err := r.facade.HandleCallback(ctx, chatID, data)
	if err != nil {
		r.log.Error().Err(err).Int64("chat_id", chatID).Str("data", data).Msg("callback failed")
		return r.SendMessage(ctx, chatID, r.translator.T("error_generic"))
	}
	if messageID != 0 {
		if err := r.editButtons(ctx, chatID, messageID, reply.Text, reply.Buttons); err == nil {
			return nil
		}
	}
	return r.sendReply(ctx, chatID, reply)
}

func (r *RealTelegramBotAdapter) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query == nil || query.From == nil {
		return errors.New("invalid callback query")
	}

	// Stop telegram spinner when we return
	defer func() { _, _ = r.bot.Request(tgbotapi.NewCallback(query.ID, "")) }()

	var (
		chatID    int64
		messageID int
	)
	if query.Message != nil && query.Message.Chat != nil {
		chatID = query.Message.Chat.ID
		messageID = query.Message.MessageID
	} else {
		chatID = query.From.ID
	}
	if chatID == 0 {
		return nil
	}

	data := strings.TrimSpace(query.Data)
	if !r.allow(ctx, chatID, "cb:"+data) {
		return r.SendMessage(ctx, chatID, r.translator.T("rate_limited"))
	}

	if fn, ok := r.cbRoutes()[data]; ok {
		return fn(ctx, chatID, messageID, data)
	}
	return errors.New("unknown callback data")
}
