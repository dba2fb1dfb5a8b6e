// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"telegram-media-converter/internal/application"
	"telegram-media-converter/internal/config"
	"telegram-media-converter/internal/domain/ports/repository"
	tele "telegram-media-converter/internal/infra/adapters/telegram"
	pg "telegram-media-converter/internal/infra/db/postgres"
	"telegram-media-converter/internal/infra/ffmpeg"
	httpapi "telegram-media-converter/internal/infra/http"
	"telegram-media-converter/internal/infra/i18n"
	"telegram-media-converter/internal/infra/logging"
	"telegram-media-converter/internal/infra/memory"
	"telegram-media-converter/internal/infra/metrics"
	red "telegram-media-converter/internal/infra/redis"
	"telegram-media-converter/internal/infra/scheduler"
	"telegram-media-converter/internal/infra/tempfile"
	"telegram-media-converter/internal/infra/worker"
	"telegram-media-converter/internal/usecase"
)

// Set with -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

const drainTimeout = 30 * time.Second

// modeStore is the selected ModeStateRepository plus what main needs to run it.
type modeStore struct {
	repo    repository.ModeStateRepository
	pinger  repository.Pinger
	limiter tele.RateLimiter
	close   func()
}

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unredacted secrets)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	metrics.SetStateBackend(cfg.State.Backend)

	// ---- Mode state ----
	store, err := openModeStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.State.Backend).Msg("mode store")
	}
	defer store.close()

	// ---- Conversion infrastructure ----
	gate := worker.NewGate(cfg.Conversion.MaxConcurrentTasks)
	temp, err := tempfile.NewManager(cfg.Conversion.TempDir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("temp dir")
	}
	sweeper := scheduler.NewScheduler("temp-sweep", cfg.Conversion.TempSweepInterval,
		scheduler.TaskFunc(func(ctx context.Context) (int, error) {
			return temp.SweepOlderThan(ctx, cfg.Conversion.TempMaxAge)
		}), logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()
	transcoder := ffmpeg.NewTranscoder(cfg.Conversion.FFmpegPath, cfg.Conversion.FFprobePath, logger)

	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Bot.Language)
	if err != nil {
		logger.Fatal().Err(err).Msg("i18n")
	}

	// ---- Telegram ----
	opts := []tele.Option{tele.WithGateStats(gate)}
	if store.limiter != nil {
		opts = append(opts, tele.WithRateLimiter(store.limiter, cfg.RateLimit.PerMinute))
	}
	botAdapter, err := tele.NewRealTelegramBotAdapter(&cfg.Bot, tr, logger, opts...)
	if err != nil {
		logger.Fatal().Err(err).Str("token", logging.Redact(cfg.Bot.Token, cfg.Runtime.Dev)).Msg("telegram")
	}

	// ---- Use cases ----
	modeUC := usecase.NewModeUseCase(store.repo, logger)
	convUC := usecase.NewConversionUseCase(cfg.Conversion, modeUC, botAdapter, transcoder, gate, temp, tr, logger)

	// ---- Facade ----
	facade := application.NewBotFacade(modeUC, convUC, tr, cfg.Conversion)
	botAdapter.SetFacade(facade)

	if err := botAdapter.SetMenuCommands(ctx); err != nil {
		logger.Warn().Err(err).Msg("set menu commands failed")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Polling ending for any reason shuts the process down.
		defer stop()
		err := botAdapter.StartPolling(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	// ---- Admin HTTP ----
	if cfg.HTTP.Port > 0 {
		srv := httpapi.NewServer(cfg.HTTP.Port, store.pinger, gate, logger)
		g.Go(srv.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	logger.Info().
		Str("version", version).
		Str("backend", cfg.State.Backend).
		Int("max_concurrent_tasks", cfg.Conversion.MaxConcurrentTasks).
		Msg("bot started")

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("service stopped with error")
	}

	// ---- Graceful shutdown ----
	logger.Info().Msg("shutdown requested, draining conversions")
	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := botAdapter.Drain(drainCtx); err != nil {
		logger.Warn().Err(err).Msg("conversions cancelled at shutdown")
	}
	logger.Info().Msg("bye")
}

func openModeStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*modeStore, error) {
	switch cfg.State.Backend {
	case "redis":
		client, err := red.NewClient(ctx, &cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		repo := red.NewModeStateRepo(client, cfg.Redis.TTL)
		return &modeStore{
			repo:    repo,
			pinger:  repo,
			limiter: red.NewRateLimiter(client),
			close:   func() { _ = client.Close() },
		}, nil
	case "postgres":
		pool, err := pg.NewPgxPool(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		repo := pg.NewModeStateRepo(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return &modeStore{repo: repo, pinger: repo, close: pool.Close}, nil
	default:
		return &modeStore{repo: memory.NewModeStateRepo(), close: func() {}}, nil
	}
}
