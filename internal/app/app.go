package app

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"ecommerce-transactions/config"
	"ecommerce-transactions/internal/auth"
	"ecommerce-transactions/internal/commands"
	"ecommerce-transactions/internal/events"
	"ecommerce-transactions/internal/gateway"
	"ecommerce-transactions/internal/nodo"
	"ecommerce-transactions/internal/projection"
	"ecommerce-transactions/internal/proxy"
	"ecommerce-transactions/internal/psp"
	"ecommerce-transactions/internal/redis"
	"ecommerce-transactions/internal/repository"
	"ecommerce-transactions/internal/retry"
	"ecommerce-transactions/internal/server"
	"ecommerce-transactions/internal/services"
	"ecommerce-transactions/pkg/database"
	"ecommerce-transactions/pkg/logger"
)

// App holds the process-wide collaborators shared by the api and the worker.
type App struct {
	Config  *config.Config
	Log     *logger.Logger
	Pool    *pgxpool.Pool
	Redis   *goredis.Client
	Queue   *redis.DelayedQueue
	Outbox  *repository.PostgresOutboxRepository
	Limiter *redis.RateLimiter
	Tokens  *auth.TokenIssuer
	Service *services.TransactionService

	kafka *projection.KafkaPublisher
}

func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	rdb, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		pool.Close()
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Log:     log,
		Pool:    pool,
		Redis:   rdb,
		Queue:   redis.NewDelayedQueue(rdb),
		Outbox:  repository.NewOutboxRepository(pool),
		Limiter: redis.NewRateLimiter(rdb, redis.DefaultRateLimitConfig()),
		Tokens:  auth.NewTokenIssuer(cfg.JWT),
	}

	store := repository.NewEventStore(pool)
	projectors := projection.Multi{
		projection.NewViewProjector(repository.NewViewRepository(pool)),
		events.NewRedisStatusBus(rdb),
	}
	if cfg.Kafka.Enabled() {
		a.kafka = projection.NewKafkaPublisher(cfg.Kafka)
		projectors = append(projectors, a.kafka)
	}

	handlers := commands.NewHandlers(commands.Deps{
		Store:     store,
		Outbox:    a.Outbox,
		Cache:     redis.NewPaymentRequestInfoCache(rdb, redis.CacheConfig{TTL: cfg.Redis.CacheTTL}),
		Nodo:      nodo.NewClient(cfg.Nodo),
		Gateway:   gateway.NewClient(cfg.Gateway),
		Psp:       psp.NewClient(cfg.Psp),
		Queue:     a.Queue,
		Tokens:    a.Tokens,
		Projector: projectors,
		Retry:     retry.NewScheduler(a.Queue, retry.NewPolicy(cfg), log),
		Log:       log,
	}, commands.NewSettings(cfg))

	bus := commands.NewBus(proxy.NewAccessControl())
	handlers.Register(bus)
	a.Service = services.NewTransactionService(bus, store)
	return a, nil
}

// HealthChecks pings postgres and redis.
func (a *App) HealthChecks() map[string]server.HealthCheck {
	return map[string]server.HealthCheck{
		"postgres": a.Pool.Ping,
		"redis":    func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() },
	}
}

func (a *App) Close() error {
	var errs []error
	if a.kafka != nil {
		errs = append(errs, a.kafka.Close())
	}
	errs = append(errs, a.Redis.Close())
	a.Pool.Close()
	return errors.Join(errs...)
}
