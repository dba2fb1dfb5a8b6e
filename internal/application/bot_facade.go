package application

import (
	"context"
	"fmt"
	"strings"

	"telegram-media-converter/internal/config"
	"telegram-media-converter/internal/domain/model"
	"telegram-media-converter/internal/domain/ports/adapter"
)

// Callback payloads of the inline keyboards.
const (
	CallbackModeCircle  = "mode:circle"
	CallbackModeVoice   = "mode:voice"
	CallbackModeExtract = "mode:extract"
	CallbackModeReset   = "mode:reset"
)

// Reply is a text with an optional inline keyboard.
type Reply struct {
	Text    string
	Buttons [][]adapter.InlineButton
}

// BotFacade composes usecases into high-level bot commands.
// Methods return ready-to-send replies so the Telegram adapter just forwards them to the chat.
type BotFacade struct {
	ModeUC       ModeUseCaseIface
	ConversionUC ConversionUseCaseIface
	tr           Translator
	limits       config.ConversionConfig
}

func NewBotFacade(modeUC ModeUseCaseIface, conversionUC ConversionUseCaseIface, tr Translator, limits config.ConversionConfig) *BotFacade {
	return &BotFacade{ModeUC: modeUC, ConversionUC: conversionUC, tr: tr, limits: limits}
}

// HandleStart resets the chat to auto mode and returns the welcome screen.
func (b *BotFacade) HandleStart(ctx context.Context, chatID int64) (Reply, error) {
	if err := b.ModeUC.Start(ctx, chatID); err != nil {
		return Reply{}, fmt.Errorf("reset mode: %w", err)
	}
	return b.welcome(), nil
}

// HandleSelectMode switches the chat to an explicit mode and describes it.
func (b *BotFacade) HandleSelectMode(ctx context.Context, chatID int64, mode model.Mode) (Reply, error) {
	if err := b.ModeUC.Select(ctx, chatID, mode); err != nil {
		return Reply{}, fmt.Errorf("select mode: %w", err)
	}
	var key string
	switch mode {
	case model.ModeVideoToCircle:
		key = "mode_circle_text"
	case model.ModeAudioToVoice:
		key = "mode_voice_text"
	default:
		key = "mode_extract_text"
	}
	return Reply{Text: b.tr.T(key), Buttons: b.backKeyboard()}, nil
}

// HandleReset restores auto mode. withMenu returns the welcome screen, as the
// "Back" button does; the /reset command only confirms.
func (b *BotFacade) HandleReset(ctx context.Context, chatID int64, withMenu bool) (Reply, error) {
	if err := b.ModeUC.Reset(ctx, chatID); err != nil {
		return Reply{}, fmt.Errorf("reset mode: %w", err)
	}
	if withMenu {
		return b.welcome(), nil
	}
	return Reply{Text: b.tr.T("mode_reset_text")}, nil
}

func (b *BotFacade) HandleCurrentMode(ctx context.Context, chatID int64) (Reply, error) {
	mode, err := b.ModeUC.Current(ctx, chatID)
	if err != nil {
		return Reply{}, fmt.Errorf("current mode: %w", err)
	}
	return Reply{Text: b.tr.T("mode_current", b.tr.T("mode_name_"+string(mode)))}, nil
}

func (b *BotFacade) HandleHelp() Reply {
	return Reply{Text: b.tr.T("help_message")}
}

// HandleCallback maps an inline keyboard payload to its handler.
func (b *BotFacade) HandleCallback(ctx context.Context, chatID int64, data string) (Reply, error) {
	switch data {
	case CallbackModeCircle:
		return b.HandleSelectMode(ctx, chatID, model.ModeVideoToCircle)
	case CallbackModeVoice:
		return b.HandleSelectMode(ctx, chatID, model.ModeAudioToVoice)
	case CallbackModeExtract:
		return b.HandleSelectMode(ctx, chatID, model.ModeVideoToAudio)
	case CallbackModeReset:
		return b.HandleReset(ctx, chatID, true)
	default:
		return Reply{}, fmt.Errorf("unknown callback %q", strings.TrimSpace(data))
	}
}

// HandleMedia runs the conversion pipeline. The pipeline reports to the chat
// itself; the returned error is for logging.
func (b *BotFacade) HandleMedia(ctx context.Context, req model.ConversionRequest) (*model.ConversionJob, error) {
	return b.ConversionUC.Handle(ctx, req)
}

func (b *BotFacade) welcome() Reply {
	maxMB := b.limits.MaxFileSize / (1024 * 1024)
	text := b.tr.T("welcome_message", maxMB, b.limits.MaxVideoDuration, b.limits.MaxVideoDuration)
	return Reply{Text: text, Buttons: b.MainMenu()}
}

func (b *BotFacade) MainMenu() [][]adapter.InlineButton {
	return [][]adapter.InlineButton{
		{{Text: b.tr.T("btn_circle"), Data: CallbackModeCircle}},
		{{Text: b.tr.T("btn_voice"), Data: CallbackModeVoice}},
		{{Text: b.tr.T("btn_extract"), Data: CallbackModeExtract}},
	}
}

func (b *BotFacade) backKeyboard() [][]adapter.InlineButton {
	return [][]adapter.InlineButton{
		{{Text: b.tr.T("btn_back"), Data: CallbackModeReset}},
	}
}
