package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-media-converter/internal/application"
	"telegram-media-converter/internal/config"
	"telegram-media-converter/internal/domain/model"
	"telegram-media-converter/internal/domain/ports/adapter"
	red "telegram-media-converter/internal/infra/redis"
)

var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

// botClient is the part of *tgbotapi.BotAPI the adapter uses.
type botClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Translator interface {
	T(key string, args ...interface{}) string
}

// RateLimiter allows at most limit hits per key and window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// GateStats is shown to admins by /stats.
type GateStats interface {
	Capacity() int
	InUse() int
	Waiting() int
}

// RealTelegramBotAdapter uses tgbotapi to poll updates and delegates to BotFacade.
// It is also the MessagingTransport of the conversion pipeline.
type RealTelegramBotAdapter struct {
	bot         botClient
	cfg         *config.BotConfig
	facade      *application.BotFacade
	translator  Translator
	rateLimiter RateLimiter
	rateLimit   int
	gate        GateStats
	log         *zerolog.Logger
	httpClient  *http.Client

	adminIDsMap   map[int64]struct{}
	updateWorkers int
	cancelPolling context.CancelFunc

	// Conversions run outside the update workers so that a queued job never
	// blocks command handling.
	jobs      sync.WaitGroup
	jobCtx    context.Context
	jobCancel context.CancelFunc
}

type Option func(*RealTelegramBotAdapter)

// WithRateLimiter limits every chat to perMinute updates per action.
func WithRateLimiter(rl RateLimiter, perMinute int) Option {
	return func(r *RealTelegramBotAdapter) {
		r.rateLimiter = rl
		r.rateLimit = perMinute
	}
}

func WithGateStats(g GateStats) Option {
	return func(r *RealTelegramBotAdapter) { r.gate = g }
}

func NewRealTelegramBotAdapter(cfg *config.BotConfig, translator Translator, logger *zerolog.Logger, opts ...Option) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	r := newAdapter(bot, cfg, translator, logger, opts...)
	r.log.Info().Str("username", bot.Self.UserName).Msg("authorized on telegram")
	return r, nil
}

func newAdapter(bot botClient, cfg *config.BotConfig, translator Translator, logger *zerolog.Logger, opts ...Option) *RealTelegramBotAdapter {
	adminMap := map[int64]struct{}{}
	for _, id := range cfg.AdminIDs {
		adminMap[id] = struct{}{}
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 5
	}
	l := logger.With().Str("component", "TelegramBot").Logger()
	jobCtx, jobCancel := context.WithCancel(context.Background())
	r := &RealTelegramBotAdapter{
		bot:           bot,
		cfg:           cfg,
		translator:    translator,
		log:           &l,
		httpClient:    &http.Client{},
		adminIDsMap:   adminMap,
		updateWorkers: workers,
		jobCtx:        jobCtx,
		jobCancel:     jobCancel,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// SetFacade wires the facade. The facade's pipeline uses this adapter as its
// transport, so it can only be attached after construction.
func (r *RealTelegramBotAdapter) SetFacade(f *application.BotFacade) {
	r.facade = f
}

func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	if r.facade == nil {
		return errors.New("bot facade is nil")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)

	for i := 0; i < r.updateWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for up := range updateChan {
				if err := r.handleUpdate(ctx, up); err != nil {
					r.log.Error().Err(err).Int("worker", id).Msg("update handling failed")
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			r.bot.StopReceivingUpdates()
			close(updateChan)
			wg.Wait()
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				close(updateChan)
				wg.Wait()
				return nil
			}
			updateChan <- up
		}
	}
}

func (r *RealTelegramBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

// Drain waits for running conversions. When ctx ends first the remaining jobs
// are cancelled; they still clean up before Drain returns.
func (r *RealTelegramBotAdapter) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.jobCancel()
		<-done
		return ctx.Err()
	}
}

// SetMenuCommands registers the command list shown in the Telegram client.
func (r *RealTelegramBotAdapter) SetMenuCommands(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	names := []string{"start", "circle", "voice", "extract", "reset", "mode", "help"}
	cmds := make([]tgbotapi.BotCommand, 0, len(names))
	for _, n := range names {
		cmds = append(cmds, tgbotapi.BotCommand{Command: n, Description: r.translator.T("cmd_" + n)})
	}
	_, err := r.bot.Request(tgbotapi.NewSetMyCommands(cmds...))
	return err
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	// ----- Inline button callbacks -----
	if update.CallbackQuery != nil {
		return r.handleQuery(ctx, update.CallbackQuery)
	}

	// ----- Regular messages -----
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return nil
	}
	chatID := msg.Chat.ID

	att, isMedia := extractAttachment(msg)
	action := "text"
	switch {
	case msg.IsCommand():
		action = "cmd:" + msg.Command()
	case isMedia:
		action = "media"
	}
	if !r.allow(ctx, chatID, action) {
		return r.SendMessage(ctx, chatID, r.translator.T("rate_limited"))
	}

	if msg.IsCommand() {
		if fn, ok := r.commandRoutes()[msg.Command()]; ok {
			return fn(ctx, msg)
		}
		return r.SendMessage(ctx, chatID, r.translator.T("unknown_command"))
	}

	if isMedia {
		r.dispatchConversion(model.ConversionRequest{ChatID: chatID, Attachment: att})
		return nil
	}
	return r.SendMessage(ctx, chatID, r.translator.T("send_media_hint"))
}

func (r *RealTelegramBotAdapter) dispatchConversion(req model.ConversionRequest) {
	r.jobs.Add(1)
	go func() {
		defer r.jobs.Done()
		job, err := r.facade.HandleMedia(r.jobCtx, req)
		if err != nil {
			// The pipeline already told the user and logged the details.
			r.log.Debug().Err(err).Int64("chat_id", req.ChatID).Msg("conversion did not complete")
			return
		}
		r.log.Debug().Str("job_id", job.ID).Int64("chat_id", req.ChatID).Msg("conversion delivered")
	}()
}

func (r *RealTelegramBotAdapter) allow(ctx context.Context, chatID int64, action string) bool {
	if r.rateLimiter == nil || r.rateLimit <= 0 {
		return true
	}
	allowed, err := r.rateLimiter.Allow(ctx, red.UserActionKey(chatID, action), r.rateLimit, time.Minute)
	if err != nil {
		r.log.Warn().Err(err).Msg("rate limit check failed")
		return true
	}
	return allowed
}

// extractAttachment picks the convertible file of a message, filling in the
// MIME type Telegram implies for typed media.
func extractAttachment(msg *tgbotapi.Message) (model.Attachment, bool) {
	withDefault := func(v, def string) string {
		if strings.TrimSpace(v) == "" {
			return def
		}
		return v
	}
	switch {
	case msg.Video != nil:
		v := msg.Video
		return model.Attachment{FileID: v.FileID, FileSize: int64(v.FileSize), FileName: v.FileName, MimeType: withDefault(v.MimeType, "video/mp4")}, true
	case msg.Animation != nil:
		a := msg.Animation
		return model.Attachment{FileID: a.FileID, FileSize: int64(a.FileSize), FileName: a.FileName, MimeType: withDefault(a.MimeType, "video/mp4")}, true
	case msg.VideoNote != nil:
		n := msg.VideoNote
		return model.Attachment{FileID: n.FileID, FileSize: int64(n.FileSize), MimeType: "video/mp4"}, true
	case msg.Audio != nil:
		a := msg.Audio
		return model.Attachment{FileID: a.FileID, FileSize: int64(a.FileSize), FileName: a.FileName, MimeType: withDefault(a.MimeType, "audio/mpeg")}, true
	case msg.Voice != nil:
		v := msg.Voice
		return model.Attachment{FileID: v.FileID, FileSize: int64(v.FileSize), MimeType: withDefault(v.MimeType, "audio/ogg")}, true
	case msg.Document != nil:
		d := msg.Document
		return model.Attachment{FileID: d.FileID, FileSize: int64(d.FileSize), FileName: d.FileName, MimeType: d.MimeType}, true
	}
	return model.Attachment{}, false
}

func (r *RealTelegramBotAdapter) isAdmin(tgID int64) bool {
	_, ok := r.adminIDsMap[tgID]
	return ok
}

// ---- adapter.TelegramBotAdapter ----

func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, tgID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(tgID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := r.bot.Send(msg)
	return err
}

// SendButtons sends a message with inline buttons using tgbotapi.
// - If btn.URL is set, the button opens a link
// - Else if btn.Data is set, the button sends callback data
// - Else a safe fallback uses btn.Text as callback data
func (r *RealTelegramBotAdapter) SendButtons(ctx context.Context, telegramID int64, text string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(telegramID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = buildKeyboard(rows)
	_, err := r.bot.Send(msg)
	return err
}

// editButtons replaces the text and keyboard of an existing message.
func (r *RealTelegramBotAdapter) editButtons(ctx context.Context, chatID int64, messageID int, text string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, buildKeyboard(rows))
	edit.ParseMode = tgbotapi.ModeHTML
	_, err := r.bot.Request(edit)
	return err
}

func buildKeyboard(rows [][]adapter.InlineButton) tgbotapi.InlineKeyboardMarkup {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				r = append(r, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				r = append(r, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				r = append(r, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		kbRows = append(kbRows, r)
	}
	return tgbotapi.NewInlineKeyboardMarkup(kbRows...)
}

// ---- adapter.MessagingTransport ----
// Status texts are sent without a parse mode: they may carry raw tool output.

func (r *RealTelegramBotAdapter) SendStatus(ctx context.Context, chatID int64, text string) (adapter.StatusHandle, error) {
	if err := ctx.Err(); err != nil {
		return adapter.StatusHandle{}, err
	}
	sent, err := r.bot.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return adapter.StatusHandle{}, err
	}
	return adapter.StatusHandle{ChatID: chatID, MessageID: sent.MessageID}, nil
}

func (r *RealTelegramBotAdapter) UpdateStatus(ctx context.Context, h adapter.StatusHandle, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := r.bot.Request(tgbotapi.NewEditMessageText(h.ChatID, h.MessageID, text))
	return err
}

func (r *RealTelegramBotAdapter) FetchAttachment(ctx context.Context, fileID string) (io.ReadCloser, error) {
	url, err := r.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download file: unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (r *RealTelegramBotAdapter) DeliverVoice(ctx context.Context, chatID int64, filePath string, durationSec int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	voice := tgbotapi.NewVoice(chatID, tgbotapi.FilePath(filePath))
	voice.Duration = durationSec
	_, err := r.bot.Send(voice)
	return err
}

func (r *RealTelegramBotAdapter) DeliverVideoNote(ctx context.Context, chatID int64, filePath string, durationSec, length int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	note := tgbotapi.NewVideoNote(chatID, length, tgbotapi.FilePath(filePath))
	note.Duration = durationSec
	_, err := r.bot.Send(note)
	return err
}
