package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"liveroom/backend/internal/api/handler"
	"liveroom/backend/internal/auth"
	"liveroom/backend/internal/broadcast"
	"liveroom/backend/internal/chat"
	"liveroom/backend/internal/chathub"
	"liveroom/backend/internal/config"
	"liveroom/backend/internal/lifecycle"
	"liveroom/backend/internal/livekit"
	"liveroom/backend/internal/localization"
	"liveroom/backend/internal/lock"
	"liveroom/backend/internal/objectstore"
	"liveroom/backend/internal/presence"
	"liveroom/backend/internal/recording"
	"liveroom/backend/internal/signaling"
	"liveroom/backend/internal/storage"
	"liveroom/backend/internal/telegram"
)

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func setupDependencies(ctx context.Context, cfg *config.Config) (*gorm.DB, *redis.Client) {
	db, err := storage.Open(cfg.Database.DSN(), cfg.IsDevelopment())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect PostgreSQL")
	}
	if err := storage.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	if cfg.Redis == nil {
		log.Info().Msg("REDIS_URL not set, running as a single instance")
		return db, nil
	}
	rdb := redis.NewClient(cfg.Redis)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect Redis")
	}

	log.Info().Msg("database and Redis connections established, migrations complete")
	return db, rdb
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogger(cfg)
	logger := log.Logger
	logger.Info().Str("environment", cfg.Environment).Msg("starting liveroom backend")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, rdb := setupDependencies(ctx, cfg)
	store := storage.NewStorageService(db)

	loc, err := localization.NewLocalizer(cfg.Locale)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load locale")
	}
	logger.Info().Str("locale", loc.Language()).Msg("system messages localized")

	// sessions are serialized per process unless Redis lets instances agree
	var locker lock.Locker = lock.NewKeyedMutex()
	if rdb != nil {
		locker = lock.NewRedisLocker(rdb, cfg.SessionLockTTL, logger)
	}

	registry := presence.NewRegistry(store, locker, logger)

	var bus broadcast.Bus = broadcast.NewLocalBus(registry)
	if rdb != nil {
		redisBus := broadcast.NewRedisBus(rdb, registry, logger)
		go redisBus.Run(ctx)
		bus = redisBus
	}

	var notifier *telegram.OpsNotifier
	if cfg.Telegram.Enabled() {
		bot, err := telegram.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			logger.Error().Err(err).Msg("telegram notifier disabled")
		} else {
			notifier = telegram.NewOpsNotifier(bot, cfg.Telegram.OpsChatID, logger)
			go notifier.Run(ctx)
		}
	}

	presigner, err := objectstore.NewPresigner(ctx, cfg.Recording, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure recording storage")
	}

	relay := chat.NewRelay(store, bus, locker, cfg.HistoryLimit, logger)

	// nil interfaces switch the media integration off entirely
	var (
		media    recording.Media
		rooms    lifecycle.Rooms
		tokens   chathub.MediaTokens
		webhooks handler.WebhookReceiver
	)
	if cfg.LiveKit.Enabled() {
		media = livekit.NewEgressClient(cfg.LiveKit, cfg.Recording)
		rooms = livekit.NewRoomClient(cfg.LiveKit)
		tokens = livekit.NewTokenGenerator(cfg.LiveKit)
		webhooks = livekit.NewWebhookReceiver(cfg.LiveKit)
	} else {
		logger.Warn().Msg("LiveKit not configured, media and recording are disabled")
	}

	var ops recording.Notifier
	var lifecycleOps lifecycle.Notifier
	if notifier != nil {
		ops = notifier
		lifecycleOps = notifier
	}

	recordings := recording.NewOrchestrator(media, store, bus, relay, loc, recording.Options{
		Linker:   presigner,
		Notifier: ops,
	}, logger)
	controller := lifecycle.NewController(store, bus, relay, loc, lifecycle.Options{
		Rooms:      rooms,
		Recordings: recordings,
		Notifier:   lifecycleOps,
	}, logger)

	hub, err := chathub.NewHub(chathub.Deps{
		Presence:   registry,
		Sessions:   store,
		Chat:       relay,
		Signaling:  signaling.NewRelay(registry, bus, logger),
		Lifecycle:  controller,
		Recordings: recordings,
		Tokens:     tokens,
		Bus:        bus,
		Localizer:  loc,
	}, chathub.Options{
		ICEServers:    chathub.ICEServers(cfg.ICE),
		MediaURL:      cfg.LiveKit.URL,
		HistoryLimit:  cfg.HistoryLimit,
		CodeCacheSize: cfg.JoinCodeCacheSize,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build hub")
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), handler.RequestLogger(logger))

	h := handler.NewHandler(handler.Deps{
		Hub:        hub,
		Auth:       auth.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer),
		Sessions:   store,
		Lifecycle:  controller,
		Chat:       relay,
		Recordings: recordings,
		Webhooks:   webhooks,
		QueueSize:  cfg.SendQueueSize,
	}, logger)
	h.Register(r)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Int("connections", registry.Count()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("HTTP server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
