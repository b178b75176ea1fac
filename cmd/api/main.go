package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"productstudio/internal/adapter/repo"
	"productstudio/internal/generation"
	"productstudio/internal/http/handlers"
	httpapi "productstudio/internal/http/httpapi"
	"productstudio/internal/infra"
	"productstudio/internal/infra/geoip"
	"productstudio/internal/metrics"
	"productstudio/internal/middleware"
	"productstudio/internal/queue"
	"productstudio/internal/ratelimit"
	"productstudio/internal/storage"
	"productstudio/internal/styles"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()
	runner := infra.NewSQLRunner(dbpool, logger)

	jobs := repo.NewJobRepository(runner)
	profiles := repo.NewProfileRepository(runner)
	billing := repo.NewBillingRepository(runner)

	submitWindow := ratelimit.NewWindow(ratelimit.Options{
		Limit:   cfg.GenerateBurst,
		Period:  cfg.GenerateWindow,
		MaxKeys: cfg.RateLimitMaxKeys,
	})
	ipWindow := ratelimit.NewWindow(ratelimit.Options{
		Limit:   cfg.RateLimitPerMin,
		Period:  time.Minute,
		MaxKeys: cfg.RateLimitMaxKeys,
	})
	go submitWindow.Janitor(ctx, time.Minute)
	go ipWindow.Janitor(ctx, time.Minute)

	var collector *metrics.Collector
	if cfg.MetricsEnabled {
		collector = metrics.New()
	}

	genOpts := generation.Options{Metrics: collector, Logger: logger}
	var redisQueue *queue.RedisQueue
	if cfg.RedisAddr != "" {
		redisQueue = queue.NewRedisQueue(cfg.RedisAddr, cfg.QueueName)
		defer redisQueue.Close()
		if err := redisQueue.Ping(ctx); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, workers fall back to polling")
		}
		genOpts.Notifier = redisQueue
	}

	var lookup middleware.CountryLookup
	resolver, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		defer resolver.Close()
		lookup = resolver.CountryCode
	}

	files, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	catalogue := styles.Default()
	app := &handlers.App{
		Logger:          logger,
		Generation:      generation.NewService(jobs, submitWindow, catalogue, genOpts),
		Jobs:            jobs,
		Profiles:        profiles,
		Billing:         billing,
		Files:           files,
		Styles:          catalogue,
		Metrics:         collector,
		SignupCredits:   cfg.SignupCredits,
		MaxUploadBytes:  cfg.MaxUploadBytes,
		WebhookSecret:   cfg.BillingWebhookSecret,
		CreditsPerOrder: cfg.CreditsPerOrder,
		Ready:           dbpool.Ping,
	}

	routerOpts := httpapi.Options{
		Logger:        logger,
		CORSOrigins:   cfg.CORSOrigins,
		JWTSecret:     cfg.JWTSecret,
		SessionCookie: cfg.SessionCookie,
		Localizer:     middleware.NewLocalizer(cfg.DefaultLocale, lookup),
		IPLimiter:     ipWindow,
	}
	if collector != nil {
		routerOpts.Metrics = collector.Handler()
	}
	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, routerOpts))

	go func() {
		logger.Info().Str("addr", server.Addr()).Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
