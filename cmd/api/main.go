package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campustrade-api/internal/cache"
	"campustrade-api/internal/config"
	"campustrade-api/internal/handler"
	"campustrade-api/internal/notify"
	"campustrade-api/internal/repository"
	"campustrade-api/internal/router"
	"campustrade-api/internal/service"
	"campustrade-api/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg := config.MustLoad()

	log, err := logger.New(cfg.App.Environment, cfg.App.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting campustrade api",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment))

	if err := run(cfg, log); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
	log.Info("server stopped")
}

func run(cfg *config.Config, log *zap.Logger) error {
	store, err := openStore(cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()
	log.Info("store initialized", zap.String("driver", store.Driver()))

	// Redis is optional: sessions, cache and cross-instance fan-out use it
	// when enabled.
	var redisClient *redis.Client
	if cfg.Cache.RedisEnabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(ctx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
		log.Info("redis client initialized", zap.String("addr", cfg.Cache.RedisAddress()))
	}

	var counts cache.Cache
	if cfg.Cache.Type == "redis" {
		counts = cache.NewRedisCache(redisClient, "")
	} else {
		mem := cache.NewMemoryCache(time.Minute)
		defer mem.Close()
		counts = mem
	}

	// Live push: local hub, fanned out through redis pub/sub when available.
	hub := notify.NewHub(log)
	defer hub.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var sink notify.Publisher = hub
	if redisClient != nil {
		sink = notify.NewRedisPublisher(redisClient)
		relay := notify.NewRelay(redisClient, hub, log)
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Error("event relay stopped", zap.Error(err))
			}
		}()
	}
	publisher := notify.NewAsyncPublisher(sink, cfg.Notify.QueueSize, log)
	defer publisher.Close()

	// Services
	var sessions *service.TokenService
	if redisClient != nil {
		sessions = service.NewTokenService(redisClient, cfg.Auth.TokenTTL)
	}
	jwtService := service.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.App.Name)
	if cfg.App.IsProduction() && cfg.Auth.JWTSecret == "change-me" {
		log.Warn("AUTH_JWT_SECRET is the default value")
	}

	auth := service.NewAuthService(store, sessions, jwtService, cfg.Auth, log)
	notifications := service.NewNotificationService(store, counts, publisher, cfg.Cache.TTL, log)
	listings := service.NewListingService(store, notifications, log)
	transactions := service.NewTransactionService(store, notifications, cfg.Market, log)
	reviews := service.NewReviewService(store, notifications, log)
	messages := service.NewMessageService(store, notifications, publisher, log)

	cleanup := service.NewCleanupScheduler(store.Notifications(), service.CleanupConfig{
		RetentionAge:    cfg.Notify.RetentionAge,
		CleanupInterval: cfg.Notify.RetentionInterval,
	}, log)
	cleanup.Start()
	defer cleanup.Stop()

	// Handlers
	var redisPing handler.Pinger
	if redisClient != nil {
		redisPing = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	r := router.New(router.Config{
		Handler:             handler.New(cfg.App.Name, cfg.App.Version, store, redisPing),
		AuthHandler:         handler.NewAuthHandler(auth),
		ListingHandler:      handler.NewListingHandler(listings),
		TransactionHandler:  handler.NewTransactionHandler(transactions),
		ReviewHandler:       handler.NewReviewHandler(reviews),
		NotificationHandler: handler.NewNotificationHandler(notifications),
		MessageHandler:      handler.NewMessageHandler(messages),
		AdminHandler:        handler.NewAdminHandler(store, transactions, hub, publisher),
		WebSocketHandler:    handler.NewWebSocketHandler(hub, cfg.Server.AllowedOrigins, log),
		Authenticator:       auth,
		AllowedOrigins:      cfg.Server.AllowedOrigins,
		Logger:              log,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", cfg.Server.Address()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("shutting down server", zap.String("signal", sig.String()))
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	}
	return nil
}

func openStore(cfg config.DatabaseConfig) (*repository.SQLStore, error) {
	switch cfg.Type {
	case "postgres", "postgresql":
		return repository.NewPostgresStore(cfg.PostgresDSN())
	case "mysql":
		return repository.NewMySQLStore(cfg.MySQLDSN())
	default:
		return repository.NewSQLiteStore(cfg.Path)
	}
}
