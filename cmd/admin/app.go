package main

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"liveroom/backend/internal/broadcast"
	"liveroom/backend/internal/chat"
	"liveroom/backend/internal/config"
	"liveroom/backend/internal/lifecycle"
	"liveroom/backend/internal/livekit"
	"liveroom/backend/internal/localization"
	"liveroom/backend/internal/lock"
	"liveroom/backend/internal/objectstore"
	"liveroom/backend/internal/presence"
	"liveroom/backend/internal/recording"
	"liveroom/backend/internal/storage"
)

// app is the subset of the server's components the commands drive.
type app struct {
	db         *gorm.DB
	rdb        *redis.Client
	chat       *chat.Relay
	lifecycle  *lifecycle.Controller
	recordings *recording.Orchestrator
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadOperator()
	if err != nil {
		return nil, err
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel).With().Timestamp().Logger()

	db, err := storage.Open(cfg.Database.DSN(), false)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	store := storage.NewStorageService(db)

	loc, err := localization.NewLocalizer(cfg.Locale)
	if err != nil {
		return nil, err
	}

	// this process holds no connections; with Redis its events reach the servers'
	registry := presence.NewRegistry(store, lock.NewKeyedMutex(), logger)
	var locker lock.Locker = lock.NewKeyedMutex()
	var bus broadcast.Bus = broadcast.NewLocalBus(registry)
	var rdb *redis.Client
	if cfg.Redis != nil {
		rdb = redis.NewClient(cfg.Redis)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		locker = lock.NewRedisLocker(rdb, cfg.SessionLockTTL, logger)
		bus = broadcast.NewRedisBus(rdb, registry, logger)
	}

	relay := chat.NewRelay(store, bus, locker, cfg.HistoryLimit, logger)

	var (
		media recording.Media
		rooms lifecycle.Rooms
	)
	if cfg.LiveKit.Enabled() {
		media = livekit.NewEgressClient(cfg.LiveKit, cfg.Recording)
		rooms = livekit.NewRoomClient(cfg.LiveKit)
	}

	presigner, err := objectstore.NewPresigner(ctx, cfg.Recording, logger)
	if err != nil {
		return nil, err
	}

	recordings := recording.NewOrchestrator(media, store, bus, relay, loc, recording.Options{Linker: presigner}, logger)
	controller := lifecycle.NewController(store, bus, relay, loc, lifecycle.Options{
		Rooms:      rooms,
		Recordings: recordings,
	}, logger)

	return &app{
		db:         db,
		rdb:        rdb,
		chat:       relay,
		lifecycle:  controller,
		recordings: recordings,
	}, nil
}

func (a *app) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
