// Package app assembles the storage backends, session and signing components
// from configuration. The daemon and the CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/sendnodes-io/sendwallet-sub000/internal/audit"
	"github.com/sendnodes-io/sendwallet-sub000/internal/config"
	"github.com/sendnodes-io/sendwallet-sub000/internal/crypto"
	"github.com/sendnodes-io/sendwallet-sub000/internal/database"
	"github.com/sendnodes-io/sendwallet-sub000/internal/events"
	"github.com/sendnodes-io/sendwallet-sub000/internal/middleware"
	"github.com/sendnodes-io/sendwallet-sub000/internal/session"
	"github.com/sendnodes-io/sendwallet-sub000/internal/signing"
	"github.com/sendnodes-io/sendwallet-sub000/internal/store"
	"github.com/sendnodes-io/sendwallet-sub000/internal/vault"
)

const (
	// sessionCachePrefix namespaces session cache keys in Redis.
	sessionCachePrefix = "keyring:session:"

	// memoryAuditEntries bounds the in-process audit trail.
	memoryAuditEntries = 1000
)

// App holds the wired components. Close releases every backend it opened.
type App struct {
	Config  *config.Config
	Session *session.Manager
	Signer  *signing.Dispatcher
	Events  *events.Bus
	Limiter middleware.Limiter
	Checks  map[string]store.Pinger
	Audit   audit.Store

	// DB is set for the postgres backend and Redis when redis.url is set.
	DB    *database.DB
	Redis *redis.Client

	closers []func() error
}

// New opens the configured backends and builds a locked session over them.
// On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{
		Config: cfg,
		Events: events.NewBus(),
		Checks: make(map[string]store.Pinger),
	}

	if cfg.Redis.URL != "" {
		if err := a.connectRedis(ctx); err != nil {
			a.Close()
			return nil, err
		}
		logger.Info("connected to Redis")
	}

	kv, err := a.openStorage(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	logger.Info("vault storage opened", "backend", cfg.Storage.Backend)

	opts := []session.Option{
		session.WithEvents(a.Events),
		session.WithIdleLimits(cfg.Session.KeyringIdleLimit, cfg.Session.OutsideIdleLimit),
		session.WithKDFParams(crypto.KDFParams{
			Time:    cfg.KDF.Time,
			Memory:  cfg.KDF.Memory,
			Threads: cfg.KDF.Threads,
		}),
	}
	switch cfg.Session.Cache {
	case config.CacheRedis:
		opts = append(opts, session.WithCache(session.NewKVCache(
			store.NewRedisKV(a.Redis, sessionCachePrefix, cfg.Session.CacheTTL),
		)))
	case config.CacheMemory:
		opts = append(opts, session.WithCache(session.NewKVCache(store.NewMemoryKV())))
	}

	a.Session = session.NewManager(vault.NewLogStore(kv), opts...)
	a.Signer = signing.NewDispatcher(a.Session, a.Events)

	if a.DB != nil {
		a.Audit = audit.NewPostgresStore(a.DB)
	} else {
		a.Audit = audit.NewMemoryStore(memoryAuditEntries)
	}

	if a.Redis != nil {
		a.Limiter = middleware.NewRateLimiter(a.Redis, cfg.RateLimit.Requests, cfg.RateLimit.Window)
	} else {
		a.Limiter = middleware.NewLocalRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}

	return a, nil
}

func (a *App) connectRedis(ctx context.Context) error {
	opt, err := redis.ParseURL(a.Config.Redis.URL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opt.MaxRetries = a.Config.Redis.MaxRetries
	opt.PoolSize = a.Config.Redis.PoolSize
	opt.MinIdleConns = a.Config.Redis.MinIdleConns

	client := redis.NewClient(opt)
	a.closers = append(a.closers, client.Close)
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	a.Redis = client
	a.Checks["redis"] = store.NewRedisKV(client, "", 0)
	return nil
}

func (a *App) openStorage(ctx context.Context) (store.KV, error) {
	switch a.Config.Storage.Backend {
	case config.BackendBolt:
		kv, err := store.NewBoltKV(a.Config.Storage.BoltPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, kv.Close)
		return kv, nil

	case config.BackendPostgres:
		db, err := database.New(ctx, &a.Config.Database)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { db.Close(); return nil })
		if err := db.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		a.DB = db
		kv := store.NewPostgresKV(db)
		a.Checks["postgres"] = kv
		return kv, nil

	case config.BackendMemory:
		return store.NewMemoryKV(), nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", a.Config.Storage.Backend)
	}
}

// Close releases the backends in reverse open order. The session is left as
// is so a cached session survives for the next start.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
