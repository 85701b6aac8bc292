package components

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"

	"roadwatch/internal/api"
	"roadwatch/internal/api/handlers/http/system"
	"roadwatch/internal/config"
	"roadwatch/internal/redis"
	"roadwatch/internal/service"
	"roadwatch/internal/storage/firestoredb"
	"roadwatch/internal/storage/objectstore"
	"roadwatch/internal/storage/postgres"
	"roadwatch/internal/workers"
	"roadwatch/pkg/logger"
)

type Components struct {
	logger      *slog.Logger
	HttpServer  *api.Server
	Postgres    *postgres.Postgres
	Redis       *redis.Redis
	Firestore   *firestore.Client
	Reaper      *workers.ReaperWorker
	EventSender *service.EventSender
}

func InitComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	logger.Info("Initializing Postgres")

	storage, err := postgres.NewPostgres(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to init postgres", slog.Any("error", err))
		return nil, fmt.Errorf("failed to init postgres: %w", err)
	}
	if err := storage.Migrate(ctx); err != nil {
		storage.Close()
		return nil, fmt.Errorf("failed to migrate postgres: %w", err)
	}

	logger.Info("Initializing Redis")
	redisClient, err := redis.NewRedis(ctx, cfg, logger)
	if err != nil {
		storage.Close()
		return nil, fmt.Errorf("failed to init redis: %w", err)
	}

	c := &Components{
		logger:   logger,
		Postgres: storage,
		Redis:    redisClient,
	}

	logger.Info("Initializing MinIO")
	photos, err := objectstore.NewMinio(ctx, cfg.Minio, logger)
	if err != nil {
		c.ShutdownAll()
		return nil, fmt.Errorf("failed to init minio: %w", err)
	}

	var profiles service.ProfileRepository = storage.Profile
	if cfg.Profiles.Backend == "firestore" {
		logger.Info("Initializing Firestore profiles")
		client, err := firestoredb.NewClient(ctx, cfg.Profiles, logger)
		if err != nil {
			c.ShutdownAll()
			return nil, fmt.Errorf("failed to init firestore: %w", err)
		}
		c.Firestore = client
		profiles = firestoredb.NewProfileRepo(client, cfg.Profiles.FirestoreCollection, logger)
	}

	cache := redis.NewIncidentCache(redisClient)
	events := redis.NewEventQueue(redisClient.Client, redis.EventQueueKey)
	locker := redis.NewCellLocker(redisClient, cfg.Engine.LockTTL, cfg.Engine.LockWait, logger)
	clock := service.SystemClock{}

	ledger := service.NewReputationLedger(profiles, storage.Incident, logger)
	engine := service.NewLifecycleEngine(storage.Incident, ledger, locker, cache, events, clock, logger, service.EngineOptions{
		MergeRadiusM:   cfg.Engine.MergeRadiusM,
		MergeWindow:    cfg.Engine.MergeWindow,
		MaxLifetime:    cfg.Engine.MaxLifetime,
		CellSizeDeg:    cfg.Engine.CellSizeDeg,
		RetryAttempts:  cfg.Engine.RetryAttempts,
		RetryBaseDelay: cfg.Engine.RetryBaseDelay,
	})
	incidents := service.NewIncidentService(storage.Incident, ledger, photos, cache, events, clock, logger, cfg.Redis.CacheTTL)
	reaper := service.NewExpiryReaper(storage.Incident, photos, cache, events, logger)
	stats := service.NewStatsService(storage.Stat, clock)

	srv := service.NewService(engine, incidents, reaper, ledger, stats)

	c.Reaper = workers.NewReaperWorker(reaper, clock, cfg.Reaper.Schedule, logger)

	if cfg.Webhook.URL != "" && !cfg.Webhook.Disabled {
		c.EventSender = service.NewEventSender(logger, cfg.Webhook, events)
	}

	c.HttpServer = api.NewServer(ctx, cfg, logger, srv, c.Reaper, map[string]system.Pinger{
		"postgres": storage,
		"redis":    redisClient,
	})
	logger.Info("Initialized server")

	return c, nil
}

func SetupLogger(env string) *slog.Logger {
	switch env {
	case "local":
		return logger.SetupPrettySlog()
	case "dev":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	default:
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	}
}

func (c *Components) ShutdownAll() {
	start := time.Now()
	c.logger.Info("Shutting down components")

	if c.Firestore != nil {
		if err := c.Firestore.Close(); err != nil {
			c.logger.Error("Firestore close failed", slog.String("err", err.Error()))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.logger.Error("Redis close failed", slog.String("err", err.Error()))
		}
	}
	if c.Postgres != nil {
		c.Postgres.Close()
	}

	c.logger.Info("All components stopped", slog.Duration("latency", time.Since(start)))
}
