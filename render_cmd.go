package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/streamcore/ttsqueue/internal/audio"
	"github.com/streamcore/ttsqueue/internal/backend"
	"github.com/streamcore/ttsqueue/internal/cache"
	"github.com/streamcore/ttsqueue/internal/logging"
	"github.com/streamcore/ttsqueue/internal/render"
	"github.com/streamcore/ttsqueue/internal/tts/engines"
)

var renderCmd = &cobra.Command{
	Use:     "render",
	Short:   "Run the remote renderer that speaks text-only messages",
	Long:    paragraph(fmt.Sprintf("\n%s text-only messages with gTTS as the daemon sends them over Redis.", keyword("Synthesize"))),
	Example: paragraph("TTSQUEUE_REDIS_ADDR=localhost:6379 ttsqueue render"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.Redis.Addr == "" {
			return errors.New("the renderer needs redis.addr to receive messages")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runRenderer(ctx)
	},
}

func runRenderer(ctx context.Context) error {
	logger := log.Default()

	audioCache, err := cache.NewManager(cfg.AudioCache(), logger)
	if err != nil {
		return fmt.Errorf("unable to open audio cache: %w", err)
	}
	defer audioCache.Close() //nolint:errcheck

	synthLog := logging.NewSynthesisLog(logger)
	engine := engines.NewGTTSEngine(engines.GTTSConfig{
		Language:          cfg.Render.Language,
		RequestsPerMinute: cfg.Render.RequestsPerMinute,
		GTTSPath:          cfg.Render.GTTSPath,
		FFmpegPath:        cfg.Render.FFmpegPath,
		Cache:             audioCache,
		Log:               synthLog,
	})
	if err := engine.Validate(); err != nil {
		return err //nolint:wrapcheck
	}

	out, err := audio.NewOtoOutput(cfg.Output())
	if err != nil {
		return fmt.Errorf("unable to open audio device: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close() //nolint:errcheck

	worker := render.NewWorker(out, engine, engines.SampleRate, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(ctx)
	})
	g.Go(func() error {
		return backend.Subscribe(ctx, rdb, backend.RendererChannel, logger, worker.Handle)
	})

	logger.Info("renderer started", "language", cfg.Render.Language, "cache", cfg.AudioCache().DiskPath)
	err = g.Wait()
	logger.Info("renderer stopped", "synthesis", synthLog.Summary())
	if err != nil && !errors.Is(err, context.Canceled) {
		return err //nolint:wrapcheck
	}
	return nil
}
