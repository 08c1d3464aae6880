package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"pyquest-gamification/internal/app"
	"pyquest-gamification/internal/config"
	"pyquest-gamification/internal/docstore"
	"pyquest-gamification/internal/infra/memory"
	"pyquest-gamification/internal/infra/piston"
	pgstore "pyquest-gamification/internal/infra/postgres"
	redisstore "pyquest-gamification/internal/infra/redis"
	"pyquest-gamification/internal/logger"
)

// runtimeDeps is everything a command needs, built from config.
type runtimeDeps struct {
	cfg     config.Config
	log     *logger.Logger
	hub     *app.Hub
	service *app.Service
	closers []func()
}

func (d *runtimeDeps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func bootstrap(ctx context.Context, configPath string) (*runtimeDeps, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, err
	}
	deps := &runtimeDeps{cfg: cfg, log: log, hub: app.NewHub()}
	deps.closers = append(deps.closers, log.Sync)

	store, err := openStore(ctx, cfg, log, deps)
	if err != nil {
		deps.Close()
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		deps.Close()
		return nil, err
	}
	exec := piston.New(piston.Config{
		URL:             cfg.Piston.URL,
		Language:        cfg.Piston.Language,
		FallbackVersion: cfg.Piston.FallbackVersion,
		Timeout:         config.TTLDuration(cfg.Piston.Timeout, 10*time.Second),
		RuntimeTTL:      config.TTLDuration(cfg.Piston.RuntimeTTL, time.Hour),
	}, nil, log.With("component", "piston"))

	deps.service = app.NewService(store, exec, deps.hub, log, app.Options{
		Rule:            app.CutoffRule{Location: loc, Hour: cfg.Challenge.CutoffHour},
		NotificationTTL: config.TTLDuration(cfg.Notifications.TTL, 7*24*time.Hour),
	})
	return deps, nil
}

func openStore(ctx context.Context, cfg config.Config, log *logger.Logger, deps *runtimeDeps) (docstore.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		log.Warn("using in-memory store; data is lost on restart")
		return memory.NewStore(), nil
	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		deps.closers = append(deps.closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
		log.Info("store ready", "driver", "redis", "addr", cfg.Redis.Addr)
		return redisstore.NewStore(client), nil
	case config.DriverPostgres:
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		deps.closers = append(deps.closers, pool.Close)
		log.Info("store ready", "driver", "postgres")
		return pgstore.NewStore(pool), nil
	default:
		return nil, errors.New("unknown store driver " + cfg.Store.Driver)
	}
}
