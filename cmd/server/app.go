package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yukikurage/project-tracker/internal/backup"
	"github.com/yukikurage/project-tracker/internal/blobstore"
	"github.com/yukikurage/project-tracker/internal/config"
	"github.com/yukikurage/project-tracker/internal/database"
	"github.com/yukikurage/project-tracker/internal/logging"
	"github.com/yukikurage/project-tracker/internal/metrics"
	"github.com/yukikurage/project-tracker/internal/repository"
	"github.com/yukikurage/project-tracker/internal/tombstone"
	"github.com/yukikurage/project-tracker/internal/uploads"
)

// app holds everything the commands share.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	pool     *redis.Pool
	blobs    blobstore.Store
	files    uploads.Store
	store    *repository.Store
}

// setup loads the configuration and connects the store. The blob store must
// answer a ping or setup fails.
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	if err := a.openBlobs(); err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.StoreOpTimeout)
	defer cancel()
	if err := a.blobs.Ping(pingCtx); err != nil {
		a.close()
		return nil, fmt.Errorf("blob store unreachable: %w", err)
	}

	if err := a.openFiles(ctx); err != nil {
		a.close()
		return nil, err
	}

	snapshots := backup.New(cfg.BackupDir, logger)
	if err := snapshots.Init(); err != nil {
		a.close()
		return nil, err
	}

	a.store, err = repository.New(repository.Deps{
		Blobs:      a.blobs,
		Tombstones: tombstone.New(a.blobs, logger),
		Snapshots:  snapshots,
		Files:      a.files,
		Logger:     logger,
		Metrics:    metrics.New(a.registry),
	})
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// redisPool returns the shared pool, creating it on first use. The blob
// store and the session store both draw from it.
func (a *app) redisPool() *redis.Pool {
	if a.pool == nil {
		a.pool = blobstore.NewRedisPool(blobstore.RedisOptions{
			Addr:         a.cfg.RedisAddr(),
			Password:     a.cfg.RedisPassword,
			DB:           a.cfg.RedisDB,
			MaxIdle:      a.cfg.RedisPoolSize,
			MaxActive:    a.cfg.RedisPoolSize,
			IdleTimeout:  a.cfg.RedisIdleTimeout,
			DialTimeout:  a.cfg.RedisDialTimeout,
			ReadTimeout:  a.cfg.StoreOpTimeout,
			WriteTimeout: a.cfg.StoreOpTimeout,
		})
	}
	return a.pool
}

func (a *app) openBlobs() error {
	switch a.cfg.StoreBackend {
	case "redis":
		a.blobs = blobstore.NewRedisStore(a.redisPool(), a.cfg.StoreOpTimeout)
	case "sql":
		db, err := database.Connect(a.cfg, a.logger)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := database.Migrate(ctx, db, a.logger); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		a.blobs = blobstore.NewSQLStore(db, a.cfg.StoreOpTimeout)
	default:
		a.logger.Warn("using the in-memory blob store, data will not survive a restart")
		a.blobs = blobstore.NewMemoryStore()
	}
	a.logger.Info("blob store ready", "backend", a.cfg.StoreBackend)
	return nil
}

func (a *app) openFiles(ctx context.Context) error {
	switch a.cfg.UploadBackend {
	case "s3":
		s3, err := uploads.NewS3Store(ctx, uploads.S3Options{
			Bucket:    a.cfg.S3Bucket,
			Region:    a.cfg.S3Region,
			Endpoint:  a.cfg.S3Endpoint,
			AccessKey: a.cfg.S3AccessKey,
			SecretKey: a.cfg.S3SecretKey,
			Prefix:    a.cfg.S3Prefix,
		})
		if err != nil {
			return fmt.Errorf("s3 uploads: %w", err)
		}
		a.files = s3
	default:
		local, err := uploads.NewLocalStore(a.cfg.UploadDir)
		if err != nil {
			return fmt.Errorf("local uploads: %w", err)
		}
		a.files = local
	}
	return nil
}

func (a *app) close() {
	if a.blobs != nil {
		if err := a.blobs.Close(); err != nil {
			a.logger.Warn("failed to close blob store", "error", err)
		}
	}
	// The Redis store closes the pool itself.
	if a.pool != nil && a.cfg.StoreBackend != "redis" {
		a.pool.Close()
	}
}
