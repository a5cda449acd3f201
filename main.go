// main.go
package main

import (
	"log"

	"clinic-booking/cmd"
	"clinic-booking/internal/data/repository"
	"clinic-booking/internal/gateway"
	"clinic-booking/internal/wire"
	"clinic-booking/pkg/cache"
	"clinic-booking/pkg/database"
	"clinic-booking/pkg/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
		zap.String("slot_backend", config.Booking.SlotBackend),
	)

	// Connect to database
	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Database connected successfully")

	// Redis hanya dipakai untuk slot hold kalau SLOT_BACKEND=redis
	var rdb *redis.Client
	if config.Booking.SlotBackend == utils.SlotBackendRedis {
		rdb, err = cache.InitRedis(config.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		logger.Info("Redis connected successfully", zap.String("addr", config.Redis.Addr))
	}

	// Initialize all repositories
	repos := repository.NewRepository(db, rdb, config.Booking.SlotHoldTTL, logger)

	// Payment gateway
	var gw gateway.Gateway
	if config.Stripe.SecretKey != "" {
		gw = gateway.NewStripeGateway(gateway.StripeOptions{
			SecretKey: config.Stripe.SecretKey,
			APIURL:    config.Stripe.APIURL,
			Timeout:   config.Booking.GatewayTimeout,
		}, logger)
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, using in-memory payment gateway")
		gw = gateway.NewFakeGateway()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Wire all dependencies
	app := wire.Wiring(repos, gw, reg, config, logger)

	// Start server
	logger.Info("Starting HTTP server", zap.String("port", config.App.Port))

	if err := cmd.APIServer(app.Router, config.App.Port, logger); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}
