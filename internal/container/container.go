package container

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"watchtrack/internal/config"
	"watchtrack/internal/database"
	"watchtrack/internal/logger"
	"watchtrack/internal/repository"
	"watchtrack/internal/services"
)

type Container struct {
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Logger *logrus.Logger

	Store   repository.TrackingStore
	Catalog *services.TMDBClient
	Cache   *services.CatalogCache
	Tracker *services.Tracker
	Sync    *services.SyncEngine
	Stats   *services.Stats
	Users   *services.UserService
}

func New(ctx context.Context) (*Container, error) {
	log := logger.Get()

	db, err := database.NewPool(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	log.Info("Database connection successful")

	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	redisClient, err := newRedis(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}
	log.Info("Redis connection successful")

	apiKey, baseURL := config.TMDBConfig()
	catalog := services.NewTMDBClient(&services.TMDBConfig{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Timeout:    30 * time.Second,
		RateLimit:  250 * time.Millisecond,
		MaxRetries: 3,
		RetryDelay: 2 * time.Second,
		Logger:     log,
		Redis:      redisClient,
	})

	store := repository.NewPostgresStore(db)
	cache := services.NewCatalogCache(store, log)
	tracker := services.NewTracker(store, cache, catalog, log)

	return &Container{
		DB:      db,
		Redis:   redisClient,
		Logger:  log,
		Store:   store,
		Catalog: catalog,
		Cache:   cache,
		Tracker: tracker,
		Sync:    services.NewSyncEngine(tracker, catalog, log, 0),
		Stats:   services.NewStats(store, log),
		Users:   services.NewUserService(store, log),
	}, nil
}

// Close drains the sync engine before tearing down its connections.
func (c *Container) Close() {
	if c.Sync != nil {
		c.Sync.Close()
		c.Logger.Info("Sync engine drained")
	}
	if c.Redis != nil {
		c.Redis.Close()
		c.Logger.Info("Redis connection closed")
	}
	if c.DB != nil {
		c.DB.Close()
		c.Logger.Info("Database connection closed")
	}
}

func newRedis(ctx context.Context) (*redis.Client, error) {
	host, port, password := config.RedisConfig()

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: password,
		DB:       0,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}
