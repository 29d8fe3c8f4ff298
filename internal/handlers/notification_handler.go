package handlers

import (
	"log/slog"

	"storefront/internal/middleware"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// NotificationHandler lists the caller's in-app alerts.
type NotificationHandler struct {
	service *services.NotificationService
	logger  *slog.Logger
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(service *services.NotificationService, logger *slog.Logger) *NotificationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationHandler{service: service, logger: logger}
}

// RegisterRoutes mounts the notification routes behind guard.
func (h *NotificationHandler) RegisterRoutes(router fiber.Router, guard ...fiber.Handler) {
	router.Get("/notifications", guarded(guard, h.HandleList)...)
}

// HandleList returns the caller's notifications.
func (h *NotificationHandler) HandleList(c *fiber.Ctx) error {
	list, err := h.service.List(c.UserContext(), middleware.CurrentUser(c).ID)
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve notifications", err)
	}
	return c.JSON(list)
}
