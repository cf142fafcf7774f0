// Package config wires the application's dependencies from configs.Config.
package config

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"taskmanager/configs"
	v1 "taskmanager/internal/api/v1"
	"taskmanager/internal/auth"
	"taskmanager/internal/cache"
	"taskmanager/internal/repository"
	"taskmanager/internal/service"
	"taskmanager/internal/storage"
	"taskmanager/internal/websocket"
	"taskmanager/pkg/database"
	"taskmanager/pkg/logger"
	"taskmanager/pkg/metrics"
)

// Dependencies used across the application
type Dependencies struct {
	Config      configs.Config
	DB          *sql.DB
	RedisClient *redis.Client
	Validate    *validator.Validate
	Metrics     *metrics.Metrics
	Hub         *websocket.Hub

	Users repository.UserStore
	Tasks repository.TaskStore
	Blobs storage.BlobStore
	// UploadDir is set only for the disk backend.
	UploadDir string

	Auth    *service.AuthService
	UserSvc *service.UserService
	TaskSvc *service.TaskService
}

// Build connects to Postgres and, when configured, Redis, then assembles the
// services on top of them.
func Build(ctx context.Context, cfg configs.Config) (*Dependencies, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must be set")
	}

	d := &Dependencies{
		Config:   cfg,
		Validate: validator.New(),
		Metrics:  metrics.New(),
		Hub:      websocket.NewHub(),
	}

	db, err := database.ConnectDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	d.DB = db
	logger.SystemLogger.Info("Database Connected", zap.String("host", cfg.DBHost), zap.String("db", cfg.DBName))

	d.Users = repository.NewUserRepository(db)
	d.Tasks = repository.NewTaskRepository(db)

	d.RedisClient, err = database.ConnectRedis(ctx, cfg)
	if err != nil {
		d.Close()
		return nil, err
	}
	if d.RedisClient != nil {
		d.Tasks = cache.NewCachedTaskStore(d.Tasks, d.RedisClient, cfg.CacheTTL)
		logger.SystemLogger.Info("Redis cache enabled", zap.String("host", cfg.RedisHost))
	} else if cfg.CacheSize > 0 {
		d.Tasks = cache.NewLocalTaskStore(d.Tasks, cfg.CacheSize, cfg.CacheTTL)
		logger.SystemLogger.Info("In-process cache enabled", zap.Int("size", cfg.CacheSize))
	}

	if err := d.buildBlobStore(ctx); err != nil {
		d.Close()
		return nil, err
	}

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	d.Auth = service.NewAuthService(d.Users, tokens, d.Validate, d.Metrics)
	d.UserSvc = service.NewUserService(d.Users)
	d.TaskSvc = service.NewTaskService(d.Tasks, d.Users, d.Blobs, d.Hub, d.Validate, d.Metrics)
	return d, nil
}

func (d *Dependencies) buildBlobStore(ctx context.Context) error {
	switch d.Config.StorageBackend {
	case "", "disk":
		disk, err := storage.NewDiskStore(d.Config.UploadDir, storage.DefaultURLPrefix)
		if err != nil {
			return err
		}
		d.Blobs = disk
		d.UploadDir = disk.Dir()
	case "s3":
		s3, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:       d.Config.S3Bucket,
			Region:       d.Config.S3Region,
			Endpoint:     d.Config.S3Endpoint,
			AccessKey:    d.Config.S3AccessKey,
			SecretKey:    d.Config.S3SecretKey,
			UsePathStyle: d.Config.S3UsePathStyle,
		})
		if err != nil {
			return err
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			return err
		}
		d.Blobs = s3
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", d.Config.StorageBackend)
	}
	logger.SystemLogger.Info("Blob storage ready", zap.String("backend", d.Config.StorageBackend))
	return nil
}

// Routes returns the HTTP layer's view of the dependencies.
func (d *Dependencies) Routes() v1.Deps {
	return v1.Deps{
		Auth:         d.Auth,
		Users:        d.UserSvc,
		Tasks:        d.TaskSvc,
		Hub:          d.Hub,
		Metrics:      d.Metrics,
		UploadDir:    d.UploadDir,
		Health:       d.Health,
		CORSOrigins:  d.Config.CORSOrigins,
		RateLimitMax: d.Config.RateLimitMax,
	}
}

// Health pings Postgres and Redis.
func (d *Dependencies) Health(ctx context.Context) error {
	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if d.RedisClient != nil {
		if err := d.RedisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (d *Dependencies) Close() {
	if d.RedisClient != nil {
		d.RedisClient.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
