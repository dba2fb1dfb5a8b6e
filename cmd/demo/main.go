// Command demo converts a local file through the real pipeline without
// Telegram. Status messages go to the log; results are copied to -out.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gabriel-vasile/mimetype"

	"telegram-media-converter/internal/config"
	"telegram-media-converter/internal/domain/model"
	tele "telegram-media-converter/internal/infra/adapters/telegram"
	"telegram-media-converter/internal/infra/ffmpeg"
	"telegram-media-converter/internal/infra/i18n"
	"telegram-media-converter/internal/infra/logging"
	"telegram-media-converter/internal/infra/memory"
	"telegram-media-converter/internal/infra/tempfile"
	"telegram-media-converter/internal/infra/worker"
	"telegram-media-converter/internal/usecase"
)

const demoChatID = 1

func main() {
	in := flag.String("in", "", "input media file")
	mode := flag.String("mode", "auto", "auto | video_to_circle | audio_to_voice | video_to_audio")
	out := flag.String("out", "demo_out", "directory for converted files")
	lang := flag.String("lang", "en", "UI language of status texts")
	flag.Parse()

	logger := logging.New(config.LogConfig{Level: "debug"}, true)
	if *in == "" {
		logger.Fatal().Msg("-in is required")
	}
	info, err := os.Stat(*in)
	if err != nil {
		logger.Fatal().Err(err).Msg("input")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conv := config.ConversionConfig{
		MaxConcurrentTasks: config.DefaultMaxConcurrentTasks,
		VideoNoteSize:      config.DefaultVideoNoteSize,
		MaxVideoDuration:   config.DefaultMaxVideoDuration,
		MaxFileSize:        config.DefaultMaxFileSize,
		TempDir:            filepath.Join(os.TempDir(), "media_converter_demo"),
		FFmpegPath:         "ffmpeg",
		FFprobePath:        "ffprobe",
	}

	transport, err := tele.NewNoopBotAdapter(*out, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("output dir")
	}
	temp, err := tempfile.NewManager(conv.TempDir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("temp dir")
	}
	tr, err := i18n.NewTranslator(i18n.LocalesFS, *lang)
	if err != nil {
		logger.Fatal().Err(err).Msg("i18n")
	}

	modeUC := usecase.NewModeUseCase(memory.NewModeStateRepo(), logger)
	if m := model.ParseMode(*mode); m.IsExplicit() {
		if err := modeUC.Select(ctx, demoChatID, m); err != nil {
			logger.Fatal().Err(err).Msg("select mode")
		}
	}

	pipeline := usecase.NewConversionUseCase(
		conv, modeUC, transport,
		ffmpeg.NewTranscoder(conv.FFmpegPath, conv.FFprobePath, logger),
		worker.NewGate(conv.MaxConcurrentTasks), temp, tr, logger,
		usecase.WithObserver(func(job model.ConversionJob) {
			logger.Debug().Str("job_id", job.ID).Str("status", string(job.Status)).Msg("transition")
		}),
	)

	// A local file has no declared type, so sniff it the way Telegram would label it.
	mime := ""
	if mt, err := mimetype.DetectFile(*in); err == nil {
		mime = mt.String()
	}
	req := model.ConversionRequest{
		ChatID: demoChatID,
		Attachment: model.Attachment{
			FileID:   *in,
			FileSize: info.Size(),
			FileName: filepath.Base(*in),
			MimeType: mime,
		},
	}

	job, err := pipeline.Handle(ctx, req)
	if err != nil {
		logger.Fatal().Err(err).Msg("conversion failed")
	}
	logger.Info().
		Str("job_id", job.ID).
		Str("operation", string(job.Operation)).
		Strs("files", transport.Delivered()).
		Msg("conversion done")
}
