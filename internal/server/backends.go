package server

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sitework/sitework/internal/config"
	"github.com/sitework/sitework/internal/database"
	"github.com/sitework/sitework/internal/storage"
	"github.com/sitework/sitework/pkg/logger"
	"go.mongodb.org/mongo-driver/mongo"
)

const connectAttempts = 5

// retry calls fn with exponential backoff to tolerate startup races between
// containers.
func retry(ctx context.Context, what string, fn func() error) error {
	backoff := time.Second
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		logger.Warnf("attempt %d/%d: failed to connect to %s: %v", attempt, connectAttempts, what, err)
		if attempt == connectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

// Connect opens every configured backend. Unconfigured backends stay nil;
// a configured backend that cannot be reached is an error, except Redis,
// which degrades to in-memory state with a warning. release frees whatever
// was opened.
func Connect(ctx context.Context, cfg *config.Config) (b Backends, release func(), err error) {
	var closers []func()
	release = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	defer func() {
		if err != nil {
			release()
		}
	}()

	if cfg.Postgres.URL != "" {
		err = retry(ctx, "postgres", func() error {
			pool, err := database.NewPostgresPool(ctx, cfg.Postgres)
			if err == nil {
				b.Postgres = pool
			}
			return err
		})
		if err != nil {
			return b, release, err
		}
		closers = append(closers, b.Postgres.Close)
		logger.Infof("connected to postgres")
	}

	if addr := cfg.Redis.Addr(); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if perr := client.Ping(ctx).Err(); perr != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", addr, perr)
			_ = client.Close()
		} else {
			b.Redis = client
			closers = append(closers, func() { _ = client.Close() })
			logger.Infof("connected to redis at %s", addr)
		}
	}

	if cfg.MongoDB.URI != "" {
		var db *mongo.Database
		err = retry(ctx, "mongodb", func() error {
			var err error
			db, err = database.ConnectMongo(ctx, cfg.MongoDB)
			return err
		})
		if err != nil {
			return b, release, err
		}
		b.Mongo = db
		closers = append(closers, func() { _ = db.Client().Disconnect(context.Background()) })
		logger.Infof("connected to mongodb database %s", cfg.MongoDB.Database)
	}

	if cfg.MinIO.Endpoint != "" {
		var store *storage.MinIOStorage
		store, err = storage.NewMinIOStorage(ctx, cfg.MinIO, Buckets(cfg)...)
		if err != nil {
			return b, release, err
		}
		b.Objects = store
		logger.Infof("using object storage at %s", cfg.MinIO.Endpoint)
	}
	return b, release, nil
}

// ReadyChecks returns a readiness check per connected backend.
func ReadyChecks(b Backends) map[string]Check {
	checks := map[string]Check{}
	if b.Postgres != nil {
		checks["postgres"] = func(ctx context.Context) error { return b.Postgres.Ping(ctx) }
	}
	if b.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return b.Redis.Ping(ctx).Err() }
	}
	if b.Mongo != nil {
		checks["mongodb"] = func(ctx context.Context) error { return b.Mongo.Client().Ping(ctx, nil) }
	}
	return checks
}
