package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/local/editorialbrief/internal/ai"
	"github.com/local/editorialbrief/internal/analyzer"
	"github.com/local/editorialbrief/internal/classifier"
	cfgpkg "github.com/local/editorialbrief/internal/config"
	"github.com/local/editorialbrief/internal/dispatcher"
	"github.com/local/editorialbrief/internal/imagerender"
	logpkg "github.com/local/editorialbrief/internal/logger"
	"github.com/local/editorialbrief/internal/metrics"
	"github.com/local/editorialbrief/internal/orchestrator"
	"github.com/local/editorialbrief/internal/session"
	"github.com/local/editorialbrief/internal/statuscheck"
	"github.com/local/editorialbrief/internal/storage"
	"github.com/local/editorialbrief/internal/telegram"
	"github.com/local/editorialbrief/internal/web"
)

func main() {
	cfg := cfgpkg.FromEnv()

	if err := logpkg.Init(logpkg.OptionsFromConfig(cfg)); err != nil {
		log.Warn().Err(err).Msg("logger init incomplete")
	}
	defer logpkg.Close()
	metrics.Init()

	if !cfg.HTTP.Enabled && cfg.Telegram.Token == "" {
		log.Error().Msg("no transport enabled, set TELEGRAM_BOT_TOKEN or HTTP_ENABLED")
		logpkg.Close()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := ai.New(ctx, cfg.AI)
	if err != nil {
		log.Fatal().Err(err).Str("engine", cfg.AI.Engine).Msg("failed to init AI client")
	}

	// Sessions
	var (
		sessions    session.Store
		redisPinger statuscheck.RedisPinger
	)
	switch cfg.Session.Backend {
	case "redis":
		rs, err := session.NewRedisStore(cfg.Session.RedisURL, cfg.Session.KeyPrefix, cfg.Session.TTL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rs.Close()
		sessions = rs
		redisPinger = statuscheck.RedisClient{Client: rs.Client()}
	default:
		sessions = session.NewMemoryStore(cfg.Session.TTL)
	}

	// Blobs
	var (
		blobs   storage.Blobs
		blobDir string
		bucket  string
	)
	switch cfg.Session.BlobBackend {
	case "s3":
		s3b, err := storage.NewS3Blobs(ctx, cfg.Session.S3Bucket, cfg.Session.BlobPrefix, cfg.Session.BlobPass)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init S3 blob store")
		}
		blobs, bucket = s3b, s3b.Bucket()
	default:
		lb, err := storage.NewLocalBlobs(cfg.Session.BlobDir)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init blob dir")
		}
		blobs, blobDir = lb, lb.Dir()
	}

	pool := dispatcher.New(dispatcher.Config{Concurrency: cfg.Worker.Concurrency, QueueSize: cfg.Worker.QueueSize})
	pool.Start()

	orchestrator.CleanupTemps("", time.Hour)
	pipeline := orchestrator.New(orchestrator.Dependencies{
		Renderer: imagerender.New(imagerender.Options{
			LowDPI:    cfg.Render.LowDPI,
			HighDPI:   cfg.Render.HighDPI,
			Quality:   cfg.Render.JPEGQuality,
			ColorMode: imagerender.ColorMode(cfg.Render.ColorMode),
		}),
		Classifier: classifier.New(client, cfg.AI.DetectionModel),
		Analyzer:   analyzer.New(client, cfg.AI.AnalysisModel),
		Sessions:   sessions,
		Blobs:      blobs,
		Pool:       pool,
	}, orchestrator.Options{PageCap: cfg.Render.MaxThumbnailPages})

	log.Info().
		Str("engine", client.Name()).
		Str("detection_model", cfg.AI.DetectionModel).
		Str("analysis_model", cfg.AI.AnalysisModel).
		Str("session_backend", cfg.Session.Backend).
		Str("blob_backend", cfg.Session.BlobBackend).
		Int("workers", cfg.Worker.Concurrency).
		Msg("pipeline ready")

	g, gctx := errgroup.WithContext(ctx)

	if cfg.HTTP.Enabled {
		checker := statuscheck.New(statuscheck.Options{
			Redis:        redisPinger,
			S3Bucket:     bucket,
			BlobDir:      blobDir,
			GeminiKey:    cfg.AI.GeminiAPIKey,
			OpenAIKey:    cfg.AI.OpenAIAPIKey,
			AnthropicKey: cfg.AI.AnthropicKey,
		})
		mux := http.NewServeMux()
		web.New(pipeline, checker).RegisterRoutes(mux)
		srv := &http.Server{Addr: ":" + cfg.HTTP.Port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

		g.Go(func() error {
			log.Info().Msgf("HTTP server listening on :%s", cfg.HTTP.Port)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if cfg.Telegram.Token != "" {
		bot, err := telegram.New(cfg.Telegram, pipeline)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init telegram bot")
		}
		g.Go(func() error { return bot.Run(gctx) })
	} else {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN not set, telegram transport disabled")
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("transport stopped with error")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := pool.Stop(stopCtx); err != nil {
		log.Warn().Err(err).Msg("worker pool did not drain in time")
	}
	log.Info().Msg("shutdown complete")
}
