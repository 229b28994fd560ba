package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/hszk-dev/vidproxy/internal/config"
	"github.com/hszk-dev/vidproxy/internal/domain/repository"
	"github.com/hszk-dev/vidproxy/internal/infrastructure/queue"
	"github.com/hszk-dev/vidproxy/internal/infrastructure/storage"
	"github.com/hszk-dev/vidproxy/internal/infrastructure/upstream"
	"github.com/hszk-dev/vidproxy/internal/telemetry"
	"github.com/hszk-dev/vidproxy/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName + "-worker",
		Endpoint:    cfg.Telemetry.Endpoint,
		SampleRate:  cfg.Telemetry.SampleRate,
	})
	if err != nil {
		logger.Warn("tracing disabled", slog.String("error", err.Error()))
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	storageClient, err := storage.NewClient(ctx, storage.ClientConfig{
		Endpoint:     cfg.MinIO.Endpoint,
		AccessKey:    cfg.MinIO.AccessKey,
		SecretKey:    cfg.MinIO.SecretKey,
		Bucket:       cfg.MinIO.Bucket,
		UseSSL:       cfg.MinIO.UseSSL,
		CreateBucket: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to MinIO: %w", err)
	}
	logger.Info("connected to MinIO", slog.String("bucket", storageClient.Bucket()))

	queueClient, err := queue.NewClient(ctx, queue.DefaultClientConfig(cfg.RabbitMQ.URL()))
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer queueClient.Close()
	logger.Info("connected to RabbitMQ")

	// Archiving reads media through the same capped, chunked relay as the API.
	media := upstream.NewHTTPMediaSource(upstream.MediaConfig{
		Timeout:   cfg.Stream.Timeout,
		MaxBytes:  cfg.Stream.MaxBytes,
		ChunkSize: cfg.Stream.ChunkSize,
		Headers: upstream.BrowserHeaders{
			UserAgent:      cfg.Resolver.UserAgent,
			AcceptLanguage: cfg.Resolver.AcceptLanguage,
		},
	})

	archiveSvc := usecase.NewArchiveService(media, storageClient, usecase.ArchiveServiceConfig{
		MaxRetries: cfg.Archive.MaxRetries,
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// WaitGroup to track in-flight archives
	var wg sync.WaitGroup

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting worker, consuming video resolved events")
		err := queueClient.ConsumeVideoResolved(ctx, func(ctx context.Context, event repository.VideoResolvedEvent) error {
			wg.Add(1)
			defer wg.Done()

			logger.Info("archiving video",
				slog.String("filename", event.Filename),
				slog.Int("retry_count", event.RetryCount),
			)

			if err := archiveSvc.ProcessEvent(ctx, event); err != nil {
				logger.Error("archive failed",
					slog.String("filename", event.Filename),
					slog.Int("retry_count", event.RetryCount),
					slog.String("error", err.Error()),
				)
				return err
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("consumer error: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down worker", slog.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Archive.ShutdownTimeout)
	defer shutdownCancel()

	// Cancel the main context to stop consuming new messages
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("all in-flight archives completed")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, some archives may not have completed")
	}

	logger.Info("worker stopped")
	return nil
}
