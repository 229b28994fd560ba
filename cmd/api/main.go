package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hszk-dev/vidproxy/internal/api"
	"github.com/hszk-dev/vidproxy/internal/api/handler"
	"github.com/hszk-dev/vidproxy/internal/config"
	"github.com/hszk-dev/vidproxy/internal/domain/repository"
	"github.com/hszk-dev/vidproxy/internal/infrastructure/cache"
	"github.com/hszk-dev/vidproxy/internal/infrastructure/mongo"
	"github.com/hszk-dev/vidproxy/internal/infrastructure/postgres"
	"github.com/hszk-dev/vidproxy/internal/infrastructure/queue"
	"github.com/hszk-dev/vidproxy/internal/infrastructure/upstream"
	"github.com/hszk-dev/vidproxy/internal/telemetry"
	"github.com/hszk-dev/vidproxy/internal/usecase"
)

const startupTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	shutdownTracer, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.Endpoint,
		SampleRate:  cfg.Telemetry.SampleRate,
	})
	if err != nil {
		logger.Warn("tracing disabled", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	store, closeStore, err := openStore(ctx, bgCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		bgCancel()
		closeStore()
	}()

	resolutionCache, closeCache, err := newResolutionCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	headers := upstream.BrowserHeaders{
		UserAgent:      cfg.Resolver.UserAgent,
		AcceptLanguage: cfg.Resolver.AcceptLanguage,
	}
	resolver, err := upstream.NewHTTPResolver(upstream.ResolverConfig{
		BaseURL: cfg.Resolver.BaseURL,
		Timeout: cfg.Resolver.Timeout,
		Headers: headers,
	})
	if err != nil {
		return fmt.Errorf("failed to create resolver client: %w", err)
	}
	media := upstream.NewHTTPMediaSource(upstream.MediaConfig{
		Timeout:   cfg.Stream.Timeout,
		MaxBytes:  cfg.Stream.MaxBytes,
		ChunkSize: cfg.Stream.ChunkSize,
		Headers:   headers,
	})

	var publisher repository.EventPublisher
	if cfg.RabbitMQ.Enabled {
		queueClient, err := queue.NewClient(ctx, queue.DefaultClientConfig(cfg.RabbitMQ.URL()))
		if err != nil {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		defer queueClient.Close()
		publisher = queueClient
		logger.Info("connected to RabbitMQ")
	}

	videoSvc := usecase.NewVideoService(
		usecase.NewMetadataResolver(resolver, resolutionCache),
		store,
		publisher,
		usecase.DefaultVideoServiceConfig(),
	)
	streamSvc := usecase.NewStreamService(media)

	router := api.NewRouter(logger, cfg.RateLimit, api.Handlers{
		Video:  handler.NewVideoHandler(videoSvc, streamSvc),
		Admin:  handler.NewAdminHandler(videoSvc),
		Health: handler.NewHealthHandler(videoSvc),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      otelhttp.NewHandler(router, cfg.Telemetry.ServiceName),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// openStore connects the configured video store driver. MongoDB is opened
// lazily so the API starts while the database is down and /health reports it.
func openStore(ctx, bgCtx context.Context, cfg *config.Config, logger *slog.Logger) (repository.VideoStore, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.Database.DSN(), postgres.DefaultPoolConfig())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		store := postgres.NewVideoStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to ensure schema: %w", err)
		}
		logger.Info("connected to PostgreSQL")
		return store, pool.Close, nil

	default:
		client, err := mongo.Open(ctx, cfg.Mongo.URI, options.Client().SetMonitor(otelmongo.NewMonitor()))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open MongoDB client: %w", err)
		}
		store := mongo.NewVideoStore(client, cfg.Mongo.Database, cfg.Mongo.Collection)
		go ensureIndexes(bgCtx, store, logger)
		return store, func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Warn("mongo disconnect error", slog.String("error", err.Error()))
			}
		}, nil
	}
}

// newResolutionCache builds the memory cache, fronting Redis when enabled.
func newResolutionCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (cache.ResolutionCache, func(), error) {
	memCache, err := cache.NewMemoryResolutionCache(cfg.Cache.Capacity, cfg.Cache.TTL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resolution cache: %w", err)
	}
	if !cfg.Cache.RedisEnabled {
		return memCache, func() {}, nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis")

	tiered := cache.NewTieredResolutionCache(memCache, cache.NewRedisResolutionCache(redisClient, cfg.Cache.TTL))
	return tiered, func() { _ = redisClient.Close() }, nil
}

const indexRetryInterval = 10 * time.Second

// ensureIndexes retries until the unique filename index exists or ctx ends.
func ensureIndexes(ctx context.Context, store *mongo.VideoStore, logger *slog.Logger) {
	ticker := time.NewTicker(indexRetryInterval)
	defer ticker.Stop()

	for {
		attemptCtx, cancel := context.WithTimeout(ctx, indexRetryInterval)
		err := store.EnsureIndexes(attemptCtx)
		cancel()
		if err == nil {
			logger.Info("connected to MongoDB")
			return
		}
		logger.Warn("mongo ensure indexes failed, retrying",
			slog.String("error", err.Error()),
			slog.Duration("retry_in", indexRetryInterval),
		)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
