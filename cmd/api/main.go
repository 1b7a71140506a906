package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/errgroup"

	"bank-accounts/internal/cache"
	"bank-accounts/internal/config"
	"bank-accounts/internal/events"
	"bank-accounts/internal/handlers"
	"bank-accounts/internal/metrics"
	"bank-accounts/internal/repository"
	"bank-accounts/internal/services"
	"bank-accounts/internal/utils"
	"bank-accounts/internal/worker"
)

func main() {
	if err := run(); err != nil {
		utils.LogError("Main", "Service stopped with error", err)
		os.Exit(1)
	}
}

func run() error {
	decimal.MarshalJSONWithoutQuotes = true

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var redisCache *cache.RedisCache
	if cfg.RedisAddr != "" {
		redisCache = cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			utils.LogWarning("Main", "Redis at %s unreachable (%v), running without cache", cfg.RedisAddr, err)
			_ = redisCache.Close()
			redisCache = nil
		} else {
			utils.LogSuccess("Main", "Connected to Redis at %s", cfg.RedisAddr)
			defer redisCache.Close()
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	pool := worker.NewWorkerPool(cfg.WorkerCount, cfg.WorkerQueueSize, cfg.WorkerRetries)
	pool.Start()

	backend, closeBackend, err := openEmitter(cfg, redisCache)
	if err != nil {
		_ = pool.Shutdown(cfg.ShutdownTimeout)
		return err
	}
	emitter := events.NewPooledEmitter(backend, pool, cfg.PublishTimeout, m.PublishFailed)

	var (
		accountService  *services.AccountService
		movementService *services.MovementService
	)
	if redisCache != nil {
		accountService = services.NewAccountServiceWithCache(store, redisCache, m)
		movementService = services.NewMovementServiceWithCache(store, emitter, cfg.MovementsTopic, redisCache, m)
	} else {
		accountService = services.NewAccountService(store, m)
		movementService = services.NewMovementService(store, emitter, cfg.MovementsTopic, m)
	}

	apiServer := &fasthttp.Server{
		Handler: handlers.NewRouter(
			handlers.NewAccountHandler(accountService),
			handlers.NewMovementHandler(movementService),
		),
		Name:         "bank-accounts",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	opsServer := &http.Server{
		Addr:              cfg.OpsAddr,
		Handler:           handlers.NewOpsRouter(accountService, registry),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		utils.LogSuccess("Main", "Account API listening on %s", cfg.HTTPAddr)
		return apiServer.ListenAndServe(cfg.HTTPAddr)
	})
	g.Go(func() error {
		utils.LogSuccess("Main", "Ops endpoints listening on %s", cfg.OpsAddr)
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		utils.LogInfo("Main", "Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := apiServer.ShutdownWithContext(shutdownCtx); err != nil {
			utils.LogWarning("Main", "API server forced to shutdown: %v", err)
		}
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			utils.LogWarning("Main", "Ops server forced to shutdown: %v", err)
		}
		if err := pool.Shutdown(cfg.ShutdownTimeout); err != nil {
			utils.LogWarning("Main", "Worker pool: %v", err)
		}
		closeBackend(shutdownCtx)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	utils.LogSuccess("Main", "Service stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (services.AccountStore, func(), error) {
	if cfg.StoreBackend == config.StoreBackendMemory {
		utils.LogWarning("Main", "Using in-memory account store; data is lost on restart")
		return repository.NewMemoryAccountRepository(), func() {}, nil
	}

	if cfg.RunMigrations {
		if err := repository.Migrate(cfg.DBURL); err != nil {
			return nil, nil, err
		}
	}

	db, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	utils.LogSuccess("Main", "Connected to PostgreSQL")

	return repository.NewAccountRepository(db), db.Close, nil
}

func openEmitter(cfg *config.Config, redisCache *cache.RedisCache) (events.Emitter, func(context.Context), error) {
	switch cfg.EventsBackend {
	case config.EventsBackendKafka:
		emitter, err := events.NewKafkaEmitter(cfg.KafkaBrokers, "bank-accounts")
		if err != nil {
			return nil, nil, err
		}
		return emitter, emitter.Close, nil

	case config.EventsBackendRedis:
		if redisCache == nil {
			return nil, nil, errors.New("redis events backend needs a reachable REDIS_ADDR")
		}
		return events.NewStreamEmitter(redisCache.Client(), cfg.StreamMaxLen), func(context.Context) {}, nil
	}

	return events.LogEmitter{}, func(context.Context) {}, nil
}
