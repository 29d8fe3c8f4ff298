package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"storefront/internal/catalog"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/feed"
	"storefront/internal/handlers"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/internal/submission"
	"storefront/pkg/rabbitmq"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load(viper.New())
	if err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("server gracefully stopped")
}

func newLogger(cfg config.Config) *slog.Logger {
	if cfg.IsDevelopment() {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

// application holds the wired service and the resources it must release.
type application struct {
	app        *fiber.App
	carts      *services.CartService
	db         *gorm.DB
	hub        *feed.Hub
	chain      *submission.Chain
	mq         *rabbitmq.Client
	redis      *redis.Client
	instanceID string
	log        *slog.Logger
}

// build connects every collaborator and mounts the HTTP routes. Redis and
// RabbitMQ are optional; the service runs without them.
func build(ctx context.Context, cfg config.Config, log *slog.Logger) (*application, error) {
	a := &application{instanceID: uuid.New().String(), log: log}

	// --- Document store ---
	db, err := database.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	a.db = db

	productRepo := repositories.NewGORMProductRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)
	notificationRepo := repositories.NewGORMNotificationRepository(db)

	// --- Catalog cache ---
	var kv catalog.KV = catalog.NewMemoryKV()
	if cfg.RedisURL != "" {
		client, err := catalog.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn("Redis unavailable, catalog cache kept in memory", slog.Any("error", err))
		} else {
			a.redis = client
			kv = catalog.NewRedisKV(client, "storefront")
		}
	}
	cat := catalog.New(productRepo, catalog.NewCache(kv, log), log)

	// --- Broker ---
	var publisher services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mq, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL}, log)
		if err != nil {
			log.Warn("RabbitMQ unavailable, order changes stay local", slog.Any("error", err))
		} else {
			a.mq = mq
			publisher = mq
		}
	}

	// --- Order submission ---
	var offline submission.Tier
	if cfg.OfflineOrders {
		log.Warn("offline order stub enabled; orders may be acknowledged without being stored")
		offline = submission.NewOfflineTier(cfg.OfflineOrderDelay)
	}
	a.chain = submission.NewChain(log,
		submission.NewStoreTier(orderRepo),
		submission.NewHTTPTier(cfg.OrderFallbackURL, cfg.OrderFallbackTimeout),
		offline,
	)
	a.hub = feed.NewHub(orderRepo, log)

	// --- Services ---
	authService := services.NewAuthService(userRepo, cfg.JWTSecret, log)
	productService := services.NewProductService(productRepo, cat)
	cartService := services.NewCartService(productRepo, cfg.CartIdleTTL)
	a.carts = cartService
	notificationService := services.NewNotificationService(notificationRepo, publisher, log)
	orderService := services.NewOrderService(services.OrderServiceConfig{
		Orders:        orderRepo,
		Chain:         a.chain,
		Feed:          a.hub,
		Publisher:     publisher,
		Notifications: notificationService,
		Logger:        log,
		InstanceID:    a.instanceID,
	})

	if cfg.IsDevelopment() {
		seedProducts(ctx, productRepo, log)
	}

	// --- Fiber app ---
	a.app = fiber.New(handlers.Config())
	a.app.Use(recover.New())
	a.app.Use(logger.New())

	apiV1 := a.app.Group("/api/v1")
	handlers.Mount(apiV1, handlers.Services{
		Auth:          authService,
		Products:      productService,
		Carts:         cartService,
		Orders:        orderService,
		Notifications: notificationService,
		Hub:           a.hub,
		Logger:        log,
	})
	a.app.Get("/health", a.handleHealth)

	return a, nil
}

func (a *application) handleHealth(c *fiber.Ctx) error {
	status := fiber.StatusOK
	body := fiber.Map{
		"status":      "healthy",
		"time":        time.Now().Format(time.RFC3339),
		"instance":    a.instanceID,
		"order_tiers": a.chain.Tiers(),
		"subscribers": a.hub.Subscribers(),
		"database":    "connected",
		"rabbitmq":    "disabled",
		"cache":       "memory",
	}
	if sqlDB, err := a.db.DB(); err != nil || sqlDB.PingContext(c.UserContext()) != nil {
		status = fiber.StatusServiceUnavailable
		body["status"] = "degraded"
		body["database"] = "unreachable"
	}
	if a.mq != nil {
		body["rabbitmq"] = "connected"
	}
	if a.redis != nil {
		body["cache"] = "redis"
	}
	return c.Status(status).JSON(body)
}

// consumeChanges refreshes local feeds for writes made by other instances.
func (a *application) consumeChanges(ctx context.Context) error {
	err := a.mq.ConsumeOrderChanges(ctx, func(ctx context.Context, evt rabbitmq.OrderChanged) error {
		if evt.Origin == a.instanceID {
			return nil
		}
		a.hub.Notify(ctx, evt.OrderID)
		return nil
	})
	if err != nil {
		// Local feeds still work; only cross-instance refreshes are lost.
		a.log.Error("order change consumer stopped", slog.Any("error", err))
	}
	return nil
}

func (a *application) close() {
	if a.hub != nil {
		a.hub.Close()
	}
	if a.mq != nil {
		if err := a.mq.Close(); err != nil {
			a.log.Warn("error closing RabbitMQ", slog.Any("error", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("error closing Redis", slog.Any("error", err))
		}
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	a, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", slog.String("addr", cfg.AppPort), slog.Any("order_tiers", a.chain.Tiers()))
		return a.app.Listen(cfg.AppPort)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		// Streams never finish on their own; close them first.
		a.hub.Close()
		return a.app.ShutdownWithTimeout(10 * time.Second)
	})
	g.Go(func() error {
		a.carts.RunSweeper(gctx, time.Hour, log)
		return nil
	})
	if a.mq != nil {
		g.Go(func() error { return a.consumeChanges(gctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// seedProducts fills an empty catalog with a few items for local runs.
func seedProducts(ctx context.Context, repo repositories.ProductRepository, log *slog.Logger) {
	existing, err := repo.GetAll(ctx)
	if err != nil || len(existing) > 0 {
		return
	}
	products := []models.Product{
		{Name: "Paracetamol 500mg", Description: "20 tablets", Price: decimal.RequireFromString("4.99"), Stock: 120},
		{Name: "Ibuprofen 400mg", Description: "16 tablets", Price: decimal.RequireFromString("6.49"), Stock: 80},
		{Name: "Vitamin C 1g", Description: "Effervescent, 10 tablets", Price: decimal.RequireFromString("8.90"), Stock: 45},
		{Name: "Saline Solution", Description: "500ml", Price: decimal.RequireFromString("3.25"), Stock: 60},
	}
	for i := range products {
		if err := repo.Create(ctx, &products[i]); err != nil {
			log.Warn("error seeding product", slog.String("name", products[i].Name), slog.Any("error", err))
			continue
		}
		log.Debug("seeded product", slog.String("name", products[i].Name), slog.String("id", products[i].ID))
	}
}
