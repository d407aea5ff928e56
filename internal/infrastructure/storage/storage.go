// Package storage opens the configured persistence backends and returns the
// repositories built on them.
package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iho/goexpense/internal/adapter/repository/memory"
	pgrepo "github.com/iho/goexpense/internal/adapter/repository/postgres"
	redisrepo "github.com/iho/goexpense/internal/adapter/repository/redis"
	sqliterepo "github.com/iho/goexpense/internal/adapter/repository/sqlite"
	"github.com/iho/goexpense/internal/infrastructure/config"
	"github.com/iho/goexpense/internal/infrastructure/postgres"
	infraredis "github.com/iho/goexpense/internal/infrastructure/redis"
	"github.com/iho/goexpense/internal/infrastructure/sqlite"
	"github.com/iho/goexpense/internal/usecase"
)

// Pinger is a dependency the readiness check can probe.
type Pinger interface {
	Name() string
	Ping(ctx context.Context) error
}

// Backends holds the repositories and stores for one configuration.
type Backends struct {
	Records     usecase.RecordRepository
	Users       usecase.UserRepository
	Cache       usecase.Cache
	Idempotency usecase.IdempotencyStore
	Blocklist   usecase.TokenBlocklist
	Pingers     []Pinger

	closers []func()
}

// Close releases every opened connection in reverse order.
func (b *Backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// Open connects to the backends selected by cfg. Redis is used for the cache,
// idempotency keys and revoked tokens when REDIS_URL is set; otherwise those
// live in process memory.
func Open(ctx context.Context, cfg *config.Config, idGen usecase.IDGenerator, logger zerolog.Logger) (*Backends, error) {
	b := &Backends{}

	if err := b.openRecords(ctx, cfg, idGen, logger); err != nil {
		b.Close()
		return nil, err
	}

	if cfg.RedisURL != "" {
		client, err := infraredis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		b.closers = append(b.closers, func() { client.Close() })
		b.Pingers = append(b.Pingers, infraredis.Pinger{Client: client})

		b.Cache = redisrepo.NewCache(client)
		b.Idempotency = redisrepo.NewIdempotencyStore(client)
		b.Blocklist = redisrepo.NewTokenBlocklist(client)
		logger.Info().Msg("connected to redis")
	} else {
		b.Cache = memory.NewCache()
		b.Idempotency = memory.NewIdempotencyStore()
		b.Blocklist = memory.NewTokenBlocklist()
		logger.Info().Msg("redis not configured, using in-memory stores")
	}

	return b, nil
}

func (b *Backends) openRecords(ctx context.Context, cfg *config.Config, idGen usecase.IDGenerator, logger zerolog.Logger) error {
	switch cfg.StorageBackend {
	case config.StoragePostgres:
		if cfg.MigrationsEnabled {
			if err := postgres.RunMigrations(cfg.DatabaseURL, logger); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
		}

		connectCtx, cancel := context.WithTimeout(ctx, cfg.DatabaseTimeout)
		defer cancel()

		pool, err := postgres.NewPool(connectCtx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		b.Pingers = append(b.Pingers, postgres.Pinger{Pool: pool})

		b.Records = pgrepo.NewRecordRepository(pool, idGen)
		b.Users = pgrepo.NewUserRepository(pool)
		logger.Info().Msg("connected to postgres")

	case config.StorageSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath, cfg.MigrationsEnabled, logger)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		b.closers = append(b.closers, func() { db.Close() })
		b.Pingers = append(b.Pingers, sqlite.Pinger{DB: db})

		b.Records = sqliterepo.NewRecordRepository(db, idGen)
		b.Users = sqliterepo.NewUserRepository(db)
		logger.Info().Str("path", cfg.SQLitePath).Msg("opened sqlite database")

	case config.StorageMemory:
		b.Records = memory.NewRecordRepository(idGen)
		b.Users = memory.NewUserRepository()
		logger.Warn().Msg("using in-memory storage, data is lost on restart")

	default:
		return fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	return nil
}
