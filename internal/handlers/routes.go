package handlers

import (
	"log/slog"

	"storefront/internal/feed"
	"storefront/internal/middleware"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// Config is the fiber configuration the API runs with. Immutable is on
// because order feeds keep request values after the handler returns.
func Config() fiber.Config {
	return fiber.Config{AppName: "storefront", Immutable: true}
}

// Services is everything the HTTP surface needs.
type Services struct {
	Auth          *services.AuthService
	Products      *services.ProductService
	Carts         *services.CartService
	Orders        *services.OrderService
	Notifications *services.NotificationService
	Hub           *feed.Hub
	Logger        *slog.Logger
}

// Mount registers every API route under router.
func Mount(router fiber.Router, s Services) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Authentication routes (public)
	NewAuthHandler(s.Auth, logger).RegisterRoutes(router)

	authRequired := middleware.AuthRequired(s.Auth, logger)
	admin := []fiber.Handler{authRequired, middleware.RequireRole(middleware.RoleAdmin)}
	courier := []fiber.Handler{authRequired, middleware.RequireRole(middleware.RoleCourier)}

	NewAdminHandler(s.Orders, s.Hub, logger).RegisterRoutes(router, admin...)
	NewCourierHandler(s.Orders, s.Hub, logger).RegisterRoutes(router, courier...)
	NewNotificationHandler(s.Notifications, logger).RegisterRoutes(router, authRequired)

	// Shopping works signed in or anonymous.
	shop := router.Group("", middleware.OptionalAuth(s.Auth, logger))
	NewProductHandler(s.Products, logger).RegisterRoutes(shop, admin...)
	NewCartHandler(s.Carts, logger).RegisterRoutes(shop)
	NewOrderHandler(s.Orders, s.Carts, s.Hub, logger).RegisterRoutes(shop)
}
