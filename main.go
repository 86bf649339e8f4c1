// main.go
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"seat-reservation/cmd"
	"seat-reservation/internal/data/repository"
	"seat-reservation/internal/event"
	"seat-reservation/internal/gateway"
	"seat-reservation/internal/usecase"
	"seat-reservation/internal/wire"
	"seat-reservation/pkg/cache"
	"seat-reservation/pkg/database"
	"seat-reservation/pkg/middleware"
	"seat-reservation/pkg/telemetry"
	"seat-reservation/pkg/utils"

	"go.uber.org/zap"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, config.Telemetry, config.App.Env)
	if err != nil {
		logger.Fatal("Failed to init tracing", zap.Error(err))
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(tctx); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	// Connect to database
	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Database connected successfully")

	repos := repository.NewRepository(db, logger)

	// Redis backs the read-model cache and the rate limiter. Without it the
	// cache stays in process and rate limiting is off.
	var (
		readCache cache.Cache = cache.NewMemoryCache()
		limiter   middleware.Limiter
	)
	if rdb := cache.NewRedisClient(config.Redis, logger); rdb != nil {
		defer rdb.Close()
		readCache = cache.NewRedisCache(rdb)
		limiter = middleware.NewRedisTokenBucket(rdb, config.RateLimit)
	}

	var publisher event.Publisher = event.NopPublisher{}
	if config.RabbitMQ.Enabled {
		p, err := event.NewAMQPPublisher(config.RabbitMQ.URL, config.RabbitMQ.Exchange, logger)
		if err != nil {
			logger.Warn("RabbitMQ unavailable, booking events disabled", zap.Error(err))
		} else {
			publisher = p
		}
	}
	defer publisher.Close()

	gw, err := newGateway(config.Payment)
	if err != nil {
		logger.Fatal("Failed to init payment gateway", zap.Error(err))
	}
	logger.Info("Payment gateway ready", zap.String("provider", gw.Name()))

	service := usecase.NewService(repos, gw, config, logger,
		usecase.WithPublisher(publisher),
		usecase.WithCache(readCache, cache.Keys{Prefix: config.Cache.Prefix}, config.Cache.ShowtimeTTL, config.Cache.SeatMapTTL),
	)

	// Wire all dependencies
	app := wire.Wiring(service, wire.Deps{Limiter: limiter, Health: db}, config, logger)

	if err := cmd.APIServer(ctx, app.Router, service.Sweeper, config.App, logger); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return
	}

	logger.Info("Server stopped")
}

func newGateway(cfg utils.PaymentConfig) (gateway.PaymentGateway, error) {
	if cfg.Provider == "stripe" {
		return gateway.NewStripeGateway(&gateway.StripeGatewayConfig{SecretKey: cfg.StripeSecretKey})
	}
	return gateway.NewMockGateway(&gateway.MockGatewayConfig{
		SuccessRate: cfg.MockSuccessRate,
		Delay:       cfg.MockDelay,
	}), nil
}
