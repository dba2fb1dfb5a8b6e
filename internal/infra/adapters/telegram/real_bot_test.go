package telegram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-media-converter/internal/application"
	"telegram-media-converter/internal/config"
	"telegram-media-converter/internal/domain/model"
	"telegram-media-converter/internal/domain/ports/adapter"
)

type fakeBot struct {
	mu        sync.Mutex
	sent      []tgbotapi.Chattable
	requests  []tgbotapi.Chattable
	nextMsgID int
	fileURL   string
	updates   chan tgbotapi.Update
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	f.nextMsgID++
	return tgbotapi.Message{MessageID: f.nextMsgID}, nil
}

func (f *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeBot) GetFileDirectURL(fileID string) (string, error) {
	return f.fileURL + "/" + fileID, nil
}

func (f *fakeBot) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeBot) StopReceivingUpdates() {}

func (f *fakeBot) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeBot) edits() []tgbotapi.EditMessageTextConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.EditMessageTextConfig
	for _, c := range f.requests {
		if e, ok := c.(tgbotapi.EditMessageTextConfig); ok {
			out = append(out, e)
		}
	}
	return out
}

type keyTranslator struct{}

func (keyTranslator) T(key string, args ...interface{}) string { return key }

type memModes struct {
	mu    sync.Mutex
	modes map[int64]model.Mode
}

func (m *memModes) Start(ctx context.Context, chatID int64) error { return m.Reset(ctx, chatID) }

func (m *memModes) Select(ctx context.Context, chatID int64, mode model.Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes[chatID] = mode
	return nil
}

func (m *memModes) Reset(ctx context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.modes, chatID)
	return nil
}

func (m *memModes) Current(ctx context.Context, chatID int64) (model.Mode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mode, ok := m.modes[chatID]; ok {
		return mode, nil
	}
	return model.ModeAuto, nil
}

type recordingConversions struct {
	mu      sync.Mutex
	got     []model.ConversionRequest
	release chan struct{}
}

func (c *recordingConversions) Handle(ctx context.Context, req model.ConversionRequest) (*model.ConversionJob, error) {
	if c.release != nil {
		select {
		case <-c.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c.mu.Lock()
	c.got = append(c.got, req)
	c.mu.Unlock()
	return &model.ConversionJob{ID: "job", ChatID: req.ChatID, Status: model.JobStatusDone}, nil
}

func (c *recordingConversions) requests() []model.ConversionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.ConversionRequest(nil), c.got...)
}

type countingLimiter struct {
	mu   sync.Mutex
	hits map[string]int
}

func (l *countingLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hits[key]++
	return l.hits[key] <= limit, nil
}

type fixedGate struct{}

func (fixedGate) Capacity() int { return 4 }
func (fixedGate) InUse() int    { return 1 }
func (fixedGate) Waiting() int  { return 2 }

type harness struct {
	bot   *fakeBot
	modes *memModes
	conv  *recordingConversions
	ad    *RealTelegramBotAdapter
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	logger := zerolog.New(io.Discard)
	bot := &fakeBot{updates: make(chan tgbotapi.Update)}
	modes := &memModes{modes: map[int64]model.Mode{}}
	conv := &recordingConversions{}
	cfg := &config.BotConfig{AdminIDs: []int64{42}, Workers: 2}
	ad := newAdapter(bot, cfg, keyTranslator{}, &logger, opts...)
	limits := config.ConversionConfig{MaxFileSize: 20 * 1024 * 1024, MaxVideoDuration: 60}
	ad.SetFacade(application.NewBotFacade(modes, conv, keyTranslator{}, limits))
	return &harness{bot: bot, modes: modes, conv: conv, ad: ad}
}

func commandMessage(chatID, fromID int64, text string) *tgbotapi.Message {
	cmd := strings.Fields(text)[0]
	return &tgbotapi.Message{
		MessageID: 1,
		Chat:      &tgbotapi.Chat{ID: chatID},
		From:      &tgbotapi.User{ID: fromID},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}
}

func TestExtractAttachment(t *testing.T) {
	t.Run("should default the mime type of typed media", func(t *testing.T) {
		att, ok := extractAttachment(&tgbotapi.Message{Voice: &tgbotapi.Voice{FileID: "v1", FileSize: 10}})
		if !ok {
			t.Fatal("voice not recognised")
		}
		if att.FileID != "v1" || att.FileSize != 10 || att.MimeType != "audio/ogg" {
			t.Errorf("unexpected attachment: %+v", att)
		}
	})

	t.Run("should keep the declared name and mime of a video", func(t *testing.T) {
		att, ok := extractAttachment(&tgbotapi.Message{Video: &tgbotapi.Video{FileID: "x", FileName: "clip.mov", MimeType: "video/quicktime"}})
		if !ok || att.FileName != "clip.mov" || att.MimeType != "video/quicktime" {
			t.Errorf("unexpected attachment: %+v ok=%v", att, ok)
		}
	})

	t.Run("should leave document mime empty when absent", func(t *testing.T) {
		att, ok := extractAttachment(&tgbotapi.Message{Document: &tgbotapi.Document{FileID: "d", FileName: "a.bin"}})
		if !ok || att.MimeType != "" {
			t.Errorf("unexpected attachment: %+v ok=%v", att, ok)
		}
	})

	t.Run("should report plain text as no attachment", func(t *testing.T) {
		if _, ok := extractAttachment(&tgbotapi.Message{Text: "hi"}); ok {
			t.Error("text must not be an attachment")
		}
	})
}

func TestCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("should select a mode and offer the back button", func(t *testing.T) {
		h := newHarness(t)
		if err := h.ad.handleUpdate(ctx, tgbotapi.Update{Message: commandMessage(7, 7, "/circle")}); err != nil {
			t.Fatalf("handleUpdate: %v", err)
		}
		if mode, _ := h.modes.Current(ctx, 7); mode != model.ModeVideoToCircle {
			t.Errorf("mode = %q", mode)
		}
		h.bot.mu.Lock()
		msg := h.bot.sent[0].(tgbotapi.MessageConfig)
		h.bot.mu.Unlock()
		if msg.Text != "mode_circle_text" {
			t.Errorf("text = %q", msg.Text)
		}
		kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
		if !ok || len(kb.InlineKeyboard) != 1 || *kb.InlineKeyboard[0][0].CallbackData != application.CallbackModeReset {
			t.Errorf("unexpected keyboard: %#v", msg.ReplyMarkup)
		}
	})

	t.Run("should answer unknown commands", func(t *testing.T) {
		h := newHarness(t)
		_ = h.ad.handleUpdate(ctx, tgbotapi.Update{Message: commandMessage(7, 7, "/nope")})
		if got := h.bot.texts(); len(got) != 1 || got[0] != "unknown_command" {
			t.Errorf("texts = %v", got)
		}
	})

	t.Run("should hide stats from non admins", func(t *testing.T) {
		h := newHarness(t, WithGateStats(fixedGate{}))
		_ = h.ad.handleUpdate(ctx, tgbotapi.Update{Message: commandMessage(7, 7, "/stats")})
		_ = h.ad.handleUpdate(ctx, tgbotapi.Update{Message: commandMessage(42, 42, "/stats")})
		got := h.bot.texts()
		if len(got) != 2 || got[0] != "unknown_command" || got[1] != "gate: 1/4 in use, 2 waiting" {
			t.Errorf("texts = %v", got)
		}
	})

	t.Run("should hint at media for plain text", func(t *testing.T) {
		h := newHarness(t)
		_ = h.ad.handleUpdate(ctx, tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 7}, Text: "hello"}})
		if got := h.bot.texts(); len(got) != 1 || got[0] != "send_media_hint" {
			t.Errorf("texts = %v", got)
		}
	})

	t.Run("should rate limit per action", func(t *testing.T) {
		h := newHarness(t, WithRateLimiter(&countingLimiter{hits: map[string]int{}}, 1))
		_ = h.ad.handleUpdate(ctx, tgbotapi.Update{Message: commandMessage(7, 7, "/help")})
		_ = h.ad.handleUpdate(ctx, tgbotapi.Update{Message: commandMessage(7, 7, "/help")})
		_ = h.ad.handleUpdate(ctx, tgbotapi.Update{Message: commandMessage(7, 7, "/mode")})
		got := h.bot.texts()
		want := []string{"help_message", "rate_limited", "mode_current"}
		if len(got) != len(want) {
			t.Fatalf("texts = %v", got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("texts[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	})
}

func TestCallbacks(t *testing.T) {
	ctx := context.Background()

	t.Run("should edit the menu in place and answer the query", func(t *testing.T) {
		h := newHarness(t)
		query := &tgbotapi.CallbackQuery{
			ID:      "q1",
			From:    &tgbotapi.User{ID: 7},
			Message: &tgbotapi.Message{MessageID: 55, Chat: &tgbotapi.Chat{ID: 7}},
			Data:    application.CallbackModeVoice,
		}
		if err := h.ad.handleUpdate(ctx, tgbotapi.Update{CallbackQuery: query}); err != nil {
			t.Fatalf("handleUpdate: %v", err)
		}
		if mode, _ := h.modes.Current(ctx, 7); mode != model.ModeAudioToVoice {
			t.Errorf("mode = %q", mode)
		}
		edits := h.bot.edits()
		if len(edits) != 1 || edits[0].MessageID != 55 || edits[0].Text != "mode_voice_text" {
			t.Errorf("edits = %+v", edits)
		}
		h.bot.mu.Lock()
		defer h.bot.mu.Unlock()
		if _, ok := h.bot.requests[len(h.bot.requests)-1].(tgbotapi.CallbackConfig); !ok {
			t.Error("callback query was not answered")
		}
	})

	t.Run("should return to auto mode on back", func(t *testing.T) {
		h := newHarness(t)
		_ = h.modes.Select(ctx, 7, model.ModeVideoToAudio)
		query := &tgbotapi.CallbackQuery{ID: "q2", From: &tgbotapi.User{ID: 7}, Data: application.CallbackModeReset}
		if err := h.ad.handleUpdate(ctx, tgbotapi.Update{CallbackQuery: query}); err != nil {
			t.Fatalf("handleUpdate: %v", err)
		}
		if mode, _ := h.modes.Current(ctx, 7); mode != model.ModeAuto {
			t.Errorf("mode = %q", mode)
		}
		if got := h.bot.texts(); len(got) != 1 || got[0] != "welcome_message" {
			t.Errorf("texts = %v", got)
		}
	})

	t.Run("should reject unknown payloads", func(t *testing.T) {
		h := newHarness(t)
		query := &tgbotapi.CallbackQuery{ID: "q3", From: &tgbotapi.User{ID: 7}, Data: "bogus"}
		if err := h.ad.handleUpdate(ctx, tgbotapi.Update{CallbackQuery: query}); err == nil {
			t.Error("expected error for unknown callback")
		}
	})
}

func TestMediaDispatch(t *testing.T) {
	t.Run("should hand media to the pipeline and drain it", func(t *testing.T) {
		h := newHarness(t)
		msg := &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 9}, Audio: &tgbotapi.Audio{FileID: "a1", FileSize: 100, FileName: "song.mp3"}}
		if err := h.ad.handleUpdate(context.Background(), tgbotapi.Update{Message: msg}); err != nil {
			t.Fatalf("handleUpdate: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := h.ad.Drain(ctx); err != nil {
			t.Fatalf("Drain: %v", err)
		}
		got := h.conv.requests()
		if len(got) != 1 || got[0].ChatID != 9 || got[0].Attachment.FileID != "a1" || got[0].Attachment.MimeType != "audio/mpeg" {
			t.Errorf("requests = %+v", got)
		}
	})

	t.Run("should cancel running jobs when draining times out", func(t *testing.T) {
		h := newHarness(t)
		h.conv.release = make(chan struct{})
		msg := &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 9}, Video: &tgbotapi.Video{FileID: "v1"}}
		_ = h.ad.handleUpdate(context.Background(), tgbotapi.Update{Message: msg})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := h.ad.Drain(ctx); err == nil {
			t.Fatal("expected drain deadline error")
		}
		if got := h.conv.requests(); len(got) != 0 {
			t.Errorf("cancelled job must not complete: %+v", got)
		}
	})
}

func TestTransport(t *testing.T) {
	ctx := context.Background()

	t.Run("should send and edit status messages", func(t *testing.T) {
		h := newHarness(t)
		handle, err := h.ad.SendStatus(ctx, 5, "working")
		if err != nil {
			t.Fatalf("SendStatus: %v", err)
		}
		if handle.ChatID != 5 || handle.MessageID != 1 {
			t.Errorf("handle = %+v", handle)
		}
		if err := h.ad.UpdateStatus(ctx, handle, "done <b>"); err != nil {
			t.Fatalf("UpdateStatus: %v", err)
		}
		edits := h.bot.edits()
		if len(edits) != 1 || edits[0].Text != "done <b>" || edits[0].ParseMode != "" {
			t.Errorf("edits = %+v", edits)
		}
	})

	t.Run("should stream the attachment body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/file-1" {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte("payload"))
		}))
		defer srv.Close()

		h := newHarness(t)
		h.bot.fileURL = srv.URL
		body, err := h.ad.FetchAttachment(ctx, "file-1")
		if err != nil {
			t.Fatalf("FetchAttachment: %v", err)
		}
		defer body.Close()
		data, _ := io.ReadAll(body)
		if string(data) != "payload" {
			t.Errorf("body = %q", data)
		}

		if _, err := h.ad.FetchAttachment(ctx, "missing"); err == nil {
			t.Error("expected error on 404")
		}
	})

	t.Run("should upload notes with length and duration", func(t *testing.T) {
		h := newHarness(t)
		if err := h.ad.DeliverVideoNote(ctx, 5, "/tmp/out.mp4", 60, 640); err != nil {
			t.Fatalf("DeliverVideoNote: %v", err)
		}
		h.bot.mu.Lock()
		note, ok := h.bot.sent[0].(tgbotapi.VideoNoteConfig)
		h.bot.mu.Unlock()
		if !ok || note.Length != 640 || note.Duration != 60 {
			t.Errorf("unexpected note config: %#v", h.bot.sent[0])
		}
	})

	t.Run("should build url and callback buttons", func(t *testing.T) {
		kb := buildKeyboard([][]adapter.InlineButton{
			{{Text: "site", URL: "https://example.org"}, {Text: "go", Data: "mode:circle"}},
			{},
		})
		if len(kb.InlineKeyboard) != 1 || kb.InlineKeyboard[0][0].URL == nil || *kb.InlineKeyboard[0][1].CallbackData != "mode:circle" {
			t.Errorf("keyboard = %#v", kb)
		}
	})
}

func TestNoopBotAdapter(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.New(io.Discard)
	dir := t.TempDir()

	b, err := NewNoopBotAdapter(filepath.Join(dir, "out"), &logger)
	if err != nil {
		t.Fatalf("NewNoopBotAdapter: %v", err)
	}

	t.Run("should hand out increasing status ids", func(t *testing.T) {
		h1, _ := b.SendStatus(ctx, 1, "a")
		h2, _ := b.SendStatus(ctx, 1, "b")
		if h2.MessageID <= h1.MessageID {
			t.Errorf("ids not increasing: %d then %d", h1.MessageID, h2.MessageID)
		}
	})

	t.Run("should read local files and keep delivered copies", func(t *testing.T) {
		src := filepath.Join(dir, "in.ogg")
		if err := os.WriteFile(src, []byte("ogg"), 0o600); err != nil {
			t.Fatal(err)
		}
		rc, err := b.FetchAttachment(ctx, src)
		if err != nil {
			t.Fatalf("FetchAttachment: %v", err)
		}
		_ = rc.Close()

		if err := b.DeliverVoice(ctx, 3, src, 4); err != nil {
			t.Fatalf("DeliverVoice: %v", err)
		}
		got := b.Delivered()
		if len(got) != 1 || filepath.Base(got[0]) != "3_voice.ogg" {
			t.Fatalf("delivered = %v", got)
		}
		data, _ := os.ReadFile(got[0])
		if string(data) != "ogg" {
			t.Errorf("copy = %q", data)
		}
	})
}
