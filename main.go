package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sjsage522/retailcrawler/config"
	"sjsage522/retailcrawler/internal"
	"sjsage522/retailcrawler/logger"
	"sjsage522/retailcrawler/services/cache"
	"sjsage522/retailcrawler/services/metrics"
	"sjsage522/retailcrawler/services/publisher"
	"sjsage522/retailcrawler/services/worker"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	retailers, err := config.LoadRetailerFile(cfg.RetailersFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.RetailersFile).Msg("Failed to load retailer file")
	}
	cfg.Retailers = retailers
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Dur("crawl_interval", cfg.CrawlInterval).
		Int("retailers", len(retailers.Enabled())).
		Msg("Starting application")

	// Cancelled on SIGINT or SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services := initializeServices(ctx, &cfg)
	defer services.Cleanup()

	srv := &http.Server{
		Addr: cfg.MetricsAddr,
		Handler: services.Metrics.Router(func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return services.Publisher.Ping(pingCtx)
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	w, err := worker.NewWorker(&cfg, services.Dependencies)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create worker")
	}

	// Start worker in a goroutine
	workerDone := make(chan error, 1)
	go func() {
		log.Info().Msg("Starting retail crawler worker")
		workerDone <- w.Start(ctx)
	}()

	// Wait for shutdown signal or worker error
	select {
	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal")
		<-workerDone
	case err := <-workerDone:
		if err != nil {
			log.Error().Err(err).Msg("Worker exited with error")
		} else {
			log.Info().Msg("Worker exited normally")
		}
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Metrics server shutdown failed")
	}
}

// Services holds all the initialized services
type Services struct {
	internal.Dependencies
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
}

// initializeServices initializes all required services. Memcache falls back
// to the in-process cache when it is unreachable.
func initializeServices(ctx context.Context, cfg *config.Config) *Services {
	services := &Services{}
	services.Metrics = metrics.New()

	services.Cache = cache.NewMemoryCache()
	if cfg.MemcacheAddr != "" {
		mc := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := mc.Ping(); err != nil {
			logger.Warn("Memcache at %s unreachable, using in-process cache: %v", cfg.MemcacheAddr, err)
		} else {
			services.Cache = mc
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
	}

	redisPublisher := publisher.NewRedisPublisher(publisher.RedisOptions{
		Addr:            cfg.RedisAddr,
		Password:        cfg.RedisPassword,
		DB:              cfg.RedisDB,
		StreamPrefix:    cfg.RedisStream,
		StreamCount:     cfg.RedisStreamCount,
		StreamMaxLength: cfg.RedisStreamMaxLength,
	})
	if err := redisPublisher.Ping(ctx); err != nil {
		logger.Warn("Redis at %s unreachable, records will fail to publish until it is back: %v", cfg.RedisAddr, err)
	} else {
		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	}
	services.Publisher = redisPublisher

	return services
}
