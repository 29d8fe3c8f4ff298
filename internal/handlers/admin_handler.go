package handlers

import (
	"log/slog"

	"storefront/internal/feed"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AdminHandler is the operator's order panel.
type AdminHandler struct {
	service  *services.OrderService
	hub      *feed.Hub
	validate *validator.Validate
	logger   *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(service *services.OrderService, hub *feed.Hub, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{service: service, hub: hub, validate: validator.New(), logger: logger}
}

// RegisterRoutes mounts the admin routes behind guard.
func (h *AdminHandler) RegisterRoutes(router fiber.Router, guard ...fiber.Handler) {
	adminRoutes := router.Group("/admin", guard...)
	adminRoutes.Get("/orders", h.HandleListOrders)
	adminRoutes.Get("/orders/stream", h.HandleStreamOrders)
	adminRoutes.Patch("/orders/:id/status", h.HandleUpdateStatus)
	adminRoutes.Patch("/orders/:id/driver", h.HandleAssignDriver)
}

// HandleListOrders returns every order, newest first.
func (h *AdminHandler) HandleListOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListAll(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve orders", err)
	}
	return c.JSON(orders)
}

// HandleStreamOrders streams every order, newest first.
func (h *AdminHandler) HandleStreamOrders(c *fiber.Ctx) error {
	return streamFeed(c, h.hub, feed.All(), false, h.logger)
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

// HandleUpdateStatus overwrites the status of an order. Received is left to
// the buyer.
func (h *AdminHandler) HandleUpdateStatus(c *fiber.Ctx) error {
	return updateStatus(c, h.service, h.validate, h.logger)
}

type driverRequest struct {
	DriverID string `json:"driver_id" validate:"required"`
}

// HandleAssignDriver sets the courier for an order.
func (h *AdminHandler) HandleAssignDriver(c *fiber.Ctx) error {
	var req driverRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}
	order, err := h.service.AssignDriver(c.UserContext(), c.Params("id"), req.DriverID)
	if err != nil {
		return respondError(c, h.logger, "Could not assign driver", err)
	}
	return c.JSON(order)
}

// updateStatus is shared by the admin and courier panels.
func updateStatus(c *fiber.Ctx, service *services.OrderService, validate *validator.Validate, logger *slog.Logger) error {
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}
	status, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		return respondError(c, logger, "Could not update order status", err)
	}
	order, err := service.UpdateStatus(c.UserContext(), c.Params("id"), status)
	if err != nil {
		return respondError(c, logger, "Could not update order status", err)
	}
	return c.JSON(fiber.Map{
		"message": "Order " + order.ID + " status updated to " + order.Status.String(),
		"order":   order,
	})
}
