package main

import (
	"context"
	"log/slog"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"adminpanel/internal/cache"
	"adminpanel/internal/config"
	"adminpanel/internal/database"
	"adminpanel/internal/handlers"
	"adminpanel/internal/logger"
	"adminpanel/internal/middleware"
	"adminpanel/internal/repositories"
	"adminpanel/internal/server"
	"adminpanel/internal/services"
	"adminpanel/internal/storage"
	"adminpanel/pkg/rabbitmq"
	"adminpanel/pkg/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	log := logger.New(cfg.Log)

	// Prices are emitted as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	// Background workers stop when this is cancelled during shutdown.
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	// --- Database ---
	db, err := database.Open(cfg.Database, nil)
	if err != nil {
		log.Error("database unavailable", slog.Any("error", err))
		os.Exit(1)
	}
	healthChecks := map[string]server.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}

	// --- Repositories ---
	var productRepo repositories.ProductRepository = repositories.NewGORMProductRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)

	var productCache *cache.Cache
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		productCache = cache.New(client, "adminpanel:", cfg.Redis.CacheTTL)
		if err := productCache.Ping(bgCtx); err != nil {
			log.Warn("redis unavailable, product cache disabled", slog.String("addr", cfg.Redis.Addr), slog.Any("error", err))
			productCache.Close()
			productCache = nil
		} else {
			productRepo = repositories.NewCachedProductRepository(productRepo, productCache, log)
			healthChecks["redis"] = productCache.Ping
			log.Info("product cache enabled", slog.String("addr", cfg.Redis.Addr), slog.Duration("ttl", cfg.Redis.CacheTTL))
		}
	}

	// --- Image store ---
	images, err := storage.NewLocalImageStore(cfg.Upload.Dir, "/uploads", storage.Policy{
		MaxBytes:     cfg.Upload.MaxBytes,
		AllowedTypes: cfg.Upload.AllowedTypes,
	})
	if err != nil {
		log.Error("image store unavailable", slog.Any("error", err))
		os.Exit(1)
	}

	// --- Messaging ---
	var notifier services.Notifier = services.NopNotifier{}
	var mqClient *rabbitmq.Client
	if cfg.RabbitMQ.URL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQ.URL}, log)
		if err != nil {
			log.Warn("rabbitmq unavailable, events disabled", slog.Any("error", err))
		} else {
			notifier = mqClient
			janitor := services.NewImageJanitor(images, mqClient, log, services.DefaultCleanupRetry)
			if err := mqClient.ConsumeImageCleanup(bgCtx, janitor.Handle); err != nil {
				log.Warn("image janitor not started", slog.Any("error", err))
			}
		}
	}

	// --- Services ---
	v, err := validator.NewDefaultValidator()
	if err != nil {
		log.Error("validator setup failed", slog.Any("error", err))
		os.Exit(1)
	}
	authService := services.NewAuthService(userRepo, v, log, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	productService := services.NewProductService(productRepo, images, v, log, services.WithNotifier(notifier))

	if cfg.Auth.AdminEmail != "" {
		if _, err := authService.EnsureAdmin(bgCtx, cfg.Auth.AdminName, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			log.Error("admin bootstrap failed", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// --- HTTP ---
	limiter := middleware.NewRateLimiter(cfg.Auth.RateLimit, cfg.Auth.RateBurst)
	go limiter.Run(bgCtx)

	app := server.New(server.Options{
		Config:         cfg,
		Logger:         log,
		ProductHandler: handlers.NewProductHandler(productService, authService),
		AuthHandler:    handlers.NewAuthHandler(authService, limiter.Handler(), log),
		HealthChecks:   healthChecks,
	})

	go func() {
		log.Info("starting server", slog.String("addr", cfg.AppPort))
		if err := app.Listen(cfg.AppPort); err != nil {
			log.Error("server stopped", slog.Any("error", err))
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http": func(ctx context.Context) error {
				log.Info("shutting down server")
				return app.ShutdownWithContext(ctx)
			},
			"workers": func(context.Context) error {
				stopBackground()
				return nil
			},
		},
	)

	exitCode := <-wait

	if mqClient != nil {
		if err := mqClient.Close(); err != nil {
			log.Warn("rabbitmq close failed", slog.Any("error", err))
		}
	}
	if productCache != nil {
		if err := productCache.Close(); err != nil {
			log.Warn("redis close failed", slog.Any("error", err))
		}
	}
	if err := database.Close(db); err != nil {
		log.Warn("database close failed", slog.Any("error", err))
	}

	log.Info("server stopped", slog.Int("exit_code", exitCode))
	os.Exit(exitCode)
}
