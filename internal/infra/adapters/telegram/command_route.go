package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-media-converter/internal/application"
	"telegram-media-converter/internal/domain/model"
	"telegram-media-converter/internal/infra/metrics"
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// commandRoutes defines all available bot commands and their handlers.
func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":   r.handleStartCommand,
		"circle":  r.modeCommand(model.ModeVideoToCircle),
		"voice":   r.modeCommand(model.ModeAudioToVoice),
		"extract": r.modeCommand(model.ModeVideoToAudio),
		"reset":   r.handleResetCommand,
		"mode":    r.handleModeCommand,
		"help":    r.handleHelpCommand,

		// Admin-only diagnostics.
		"stats": r.adminOnly(r.handleStatsCommand),
	}
}

func (r *RealTelegramBotAdapter) adminOnly(next commandHandler) commandHandler {
	return func(ctx context.Context, message *tgbotapi.Message) error {
		if message.From == nil || !r.isAdmin(message.From.ID) {
			metrics.IncBotCommand("/"+message.Command(), "unauthorized")
			return r.SendMessage(ctx, message.Chat.ID, r.translator.T("unknown_command"))
		}
		metrics.IncBotCommand("/"+message.Command(), "authorized")
		return next(ctx, message)
	}
}

func (r *RealTelegramBotAdapter) handleStartCommand(ctx context.Context, message *tgbotapi.Message) error {
	metrics.IncBotCommand("/start", "ok")
	reply, err := r.facade.HandleStart(ctx, message.Chat.ID)
	if err != nil {
		r.log.Error().Err(err).Int64("chat_id", message.Chat.ID).Msg("start failed")
		return r.SendMessage(ctx, message.Chat.ID, r.translator.T("error_generic"))
	}
	return r.sendReply(ctx, message.Chat.ID, reply)
}

func (r *RealTelegramBotAdapter) modeCommand(mode model.Mode) commandHandler {
	return func(ctx context.Context, message *tgbotapi.Message) error {
		metrics.IncBotCommand("/"+message.Command(), "ok")
		reply, err := r.facade.HandleSelectMode(ctx, message.Chat.ID, mode)
		if err != nil {
			r.log.Error().Err(err).Int64("chat_id", message.Chat.ID).Str("mode", string(mode)).Msg("select mode failed")
			return r.SendMessage(ctx, message.Chat.ID, r.translator.T("error_generic"))
		}
		return r.sendReply(ctx, message.Chat.ID, reply)
	}
}

func (r *RealTelegramBotAdapter) handleResetCommand(ctx context.Context, message *tgbotapi.Message) error {
	metrics.IncBotCommand("/reset", "ok")
	reply, err := r.facade.HandleReset(ctx, message.Chat.ID, false)
	if err != nil {
		r.log.Error().Err(err).Int64("chat_id", message.Chat.ID).Msg("reset failed")
		return r.SendMessage(ctx, message.Chat.ID, r.translator.T("error_generic"))
	}
	return r.sendReply(ctx, message.Chat.ID, reply)
}

func (r *RealTelegramBotAdapter) handleModeCommand(ctx context.Context, message *tgbotapi.Message) error {
	metrics.IncBotCommand("/mode", "ok")
	reply, err := r.facade.HandleCurrentMode(ctx, message.Chat.ID)
	if err != nil {
		r.log.Warn().Err(err).Int64("chat_id", message.Chat.ID).Msg("mode lookup failed")
		return r.SendMessage(ctx, message.Chat.ID, r.translator.T("error_generic"))
	}
	return r.sendReply(ctx, message.Chat.ID, reply)
}

func (r *RealTelegramBotAdapter) handleHelpCommand(ctx context.Context, message *tgbotapi.Message) error {
	metrics.IncBotCommand("/help", "ok")
	return r.sendReply(ctx, message.Chat.ID, r.facade.HandleHelp())
}

func (r *RealTelegramBotAdapter) handleStatsCommand(ctx context.Context, message *tgbotapi.Message) error {
	if r.gate == nil {
		return r.SendMessage(ctx, message.Chat.ID, "gate: n/a")
	}
	text := fmt.Sprintf("gate: %d/%d in use, %d waiting", r.gate.InUse(), r.gate.Capacity(), r.gate.Waiting())
	return r.SendMessage(ctx, message.Chat.ID, text)
}

func (r *RealTelegramBotAdapter) sendReply(ctx context.Context, chatID int64, reply application.Reply) error {
	if len(reply.Buttons) > 0 {
		return r.SendButtons(ctx, chatID, reply.Text, reply.Buttons)
	}
	return r.SendMessage(ctx, chatID, reply.Text)
}
