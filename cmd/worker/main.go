package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"productstudio/internal/adapter/repo"
	"productstudio/internal/infra"
	"productstudio/internal/infra/credentials"
	"productstudio/internal/metrics"
	"productstudio/internal/providers/image"
	"productstudio/internal/providers/replicate"
	"productstudio/internal/queue"
	"productstudio/internal/storage"
	"productstudio/internal/styles"
	"productstudio/internal/worker"
)

const staleProcessingAfter = 15 * time.Minute

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)

	fileStore, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	credStore := credentials.NewStore(runner)
	tokenSource := credStore.TokenSource(credentials.ProviderReplicate, cfg.ReplicateToken)

	var generator image.Generator
	if token, err := tokenSource(ctx); err != nil || token == "" {
		logger.Warn().Err(err).Msg("worker: replicate token missing, using synthetic generation")
		generator = image.Synthetic{Delay: 2 * time.Second}
	} else {
		client := replicate.NewClient(replicate.Options{
			Token:      tokenSource,
			BaseURL:    cfg.ReplicateBaseURL,
			HTTPClient: &http.Client{Timeout: 90 * time.Second},
			Logger:     logger,
		})
		generator = image.NewReplicateGenerator(client, cfg.RemoveBGVersion, cfg.FluxModel, logger)
	}

	opts := worker.Options{
		PollInterval: cfg.WorkerPollInterval,
		StaleAfter:   staleProcessingAfter,
		Store:        fileStore,
		Logger:       logger,
	}
	if cfg.MetricsEnabled {
		collector := metrics.New()
		opts.Metrics = collector
		ln, err := net.Listen("tcp", cfg.WorkerMetricsAddr)
		if err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.WorkerMetricsAddr).Msg("worker: metrics listener failed")
		}
		go func() {
			logger.Info().Str("addr", ln.Addr().String()).Msg("worker: serving metrics")
			if err := collector.Serve(ctx, ln); err != nil {
				logger.Error().Err(err).Msg("worker: metrics server stopped")
			}
		}()
	}
	if cfg.RedisAddr != "" {
		q := queue.NewRedisQueue(cfg.RedisAddr, cfg.QueueName)
		defer q.Close()
		opts.Waker = q
	}

	w := worker.New(repo.NewJobRepository(runner), generator, styles.Default(), opts)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
