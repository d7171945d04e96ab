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

	"github.com/streamcore/ttsqueue/internal/api"
	"github.com/streamcore/ttsqueue/internal/audio"
	"github.com/streamcore/ttsqueue/internal/backend"
	"github.com/streamcore/ttsqueue/internal/chat"
	"github.com/streamcore/ttsqueue/internal/playback"
	"github.com/streamcore/ttsqueue/internal/queue"
	"github.com/streamcore/ttsqueue/internal/settings"
	"github.com/streamcore/ttsqueue/internal/tts"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Run the playback daemon and control panel",
	Long:    paragraph(fmt.Sprintf("\n%s queued messages one at a time and serve the control panel API.", keyword("Play"))),
	Example: paragraph("ttsqueue serve\nTTSQUEUE_REDIS_ADDR=localhost:6379 ttsqueue serve"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	logger := log.Default()

	var out audio.Output
	if oto, err := audio.NewOtoOutput(cfg.Output()); err != nil {
		logger.Warn("no audio device, embedded audio will be skipped", "err", err)
	} else {
		out = oto
	}

	var ctrl *playback.Controller
	renderer := audio.NewRenderer(out,
		audio.WithLogger(logger),
		audio.WithErrorHandler(func(err error) { ctrl.Report(err) }),
	)

	var (
		collaborator tts.Collaborator = backend.Noop{}
		rdb          *redis.Client
	)
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close() //nolint:errcheck
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, renderer calls will fail until it is back", "addr", cfg.Redis.Addr, "err", err)
		}
		collaborator = backend.NewRedis(rdb, logger)
	}

	ctrl = playback.New(
		queue.New(queue.WithCapacity(cfg.Playback.QueueCapacity)),
		renderer,
		playback.WithConfig(cfg.PlaybackController()),
		playback.WithLogger(logger),
		playback.WithCollaborator(collaborator),
	)
	defer ctrl.Close() //nolint:errcheck

	cancelErrors := ctrl.OnError(func(err error) {
		if tts.IsRecoverableError(err) {
			logger.Warn("playback error", "err", err)
			return
		}
		logger.Error("playback stopped", "err", err)
	})
	defer cancelErrors()

	store := settings.NewFileStore(cfg.SettingsFile(), logger)
	configSync := playback.NewConfigSync(ctrl, store, logger)
	configSync.Load(ctx)
	if enabled, ok := store.LoadEnabled(); ok {
		if err := ctrl.SetEnabled(enabled); err != nil {
			return fmt.Errorf("restore playback toggle: %w", err)
		}
	}
	cancelPersist := ctrl.Subscribe(func(ev playback.Event) {
		if ev.Type != playback.EventEnabled {
			return
		}
		if err := store.SaveEnabled(ev.Enabled); err != nil {
			logger.Error("could not save playback toggle", "err", err)
		}
	})
	defer cancelPersist()

	gate := chat.NewProcessor(ctrl, cfg.ChatGate(), logger)
	server := api.NewServer(ctrl, configSync, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout)
	})

	if cfg.Playback.WatchSettings {
		g.Go(func() error {
			return store.Watch(ctx, settings.DefaultDebounce, func(s tts.ControlSettings) {
				if err := configSync.Reload(s); err != nil {
					logger.Warn("ignoring edited settings", "err", err)
				}
			})
		})
	}

	if rdb != nil {
		g.Go(func() error {
			err := backend.Subscribe(ctx, rdb, backend.RequestChannel, logger,
				func(_ context.Context, r backend.IncomingRequest) {
					enqueueIncoming(ctrl, logger, r)
				})
			if err != nil {
				// the panel keeps working without inbound requests
				logger.Error("request subscription ended", "err", err)
			}
			return nil
		})
		g.Go(func() error {
			err := backend.Subscribe(ctx, rdb, backend.ChatChannel, logger,
				func(ctx context.Context, m backend.ChatMessage) {
					handleChat(ctx, gate, logger, m)
				})
			if err != nil {
				logger.Error("chat subscription ended", "err", err)
			}
			return nil
		})
	}

	logger.Info("ttsqueue started",
		"enabled", ctrl.Enabled(),
		"settings", cfg.SettingsFile(),
		"redis", cfg.Redis.Addr != "",
		"audio", out != nil,
	)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("ttsqueue stopped")
	return nil
}

func enqueueIncoming(ctrl *playback.Controller, logger *log.Logger, r backend.IncomingRequest) {
	var payload []byte
	if r.Audio != "" {
		payload = []byte(r.Audio)
	}
	if _, err := ctrl.Enqueue(r.User, r.Message, payload); err != nil {
		logger.Warn("dropped incoming request", "user", r.User, "err", err)
	}
}

func handleChat(ctx context.Context, gate *chat.Processor, logger *log.Logger, m backend.ChatMessage) {
	roles := chat.RolesFromTwitchBadges(m.Badges)
	roles.Broadcaster = roles.Broadcaster || m.Broadcaster
	roles.Moderator = roles.Moderator || m.Moderator
	roles.Subscriber = roles.Subscriber || m.Subscriber

	outcome, err := gate.Handle(ctx, chat.Message{
		Platform: m.Platform,
		Sender:   m.Sender,
		Content:  m.Content,
		Roles:    roles.Normalize(),
	})
	if err != nil {
		logger.Warn("chat message not queued", "sender", m.Sender, "err", err)
		return
	}
	logger.Debug("chat message handled", "sender", m.Sender, "outcome", outcome)
}
