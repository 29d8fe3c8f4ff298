package handlers

import (
	"log/slog"

	"storefront/internal/feed"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// CourierHandler is the delivery driver's panel. Couriers only see and
// touch orders assigned to them.
type CourierHandler struct {
	service  *services.OrderService
	hub      *feed.Hub
	validate *validator.Validate
	logger   *slog.Logger
}

// NewCourierHandler creates a new CourierHandler.
func NewCourierHandler(service *services.OrderService, hub *feed.Hub, logger *slog.Logger) *CourierHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CourierHandler{service: service, hub: hub, validate: validator.New(), logger: logger}
}

// RegisterRoutes mounts the courier routes behind guard.
func (h *CourierHandler) RegisterRoutes(router fiber.Router, guard ...fiber.Handler) {
	courierRoutes := router.Group("/courier", guard...)
	courierRoutes.Get("/orders", h.HandleListOrders)
	courierRoutes.Get("/orders/stream", h.HandleStreamOrders)
	courierRoutes.Patch("/orders/:id/status", h.assigned, h.HandleUpdateStatus)
	courierRoutes.Patch("/orders/:id/location", h.assigned, h.HandleUpdateLocation)
}

// HandleListOrders returns the orders assigned to the caller.
func (h *CourierHandler) HandleListOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListForDriver(c.UserContext(), middleware.CurrentUser(c).ID)
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve orders", err)
	}
	return c.JSON(orders)
}

// HandleStreamOrders streams the orders assigned to the caller.
func (h *CourierHandler) HandleStreamOrders(c *fiber.Ctx) error {
	return streamFeed(c, h.hub, feed.ByDriver(middleware.CurrentUser(c).ID), false, h.logger)
}

// assigned rejects writes to orders that belong to another courier.
func (h *CourierHandler) assigned(c *fiber.Ctx) error {
	order, err := h.service.GetOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, "Could not update order", err)
	}
	if order.DriverID != middleware.CurrentUser(c).ID {
		return respondError(c, h.logger, "Order is not assigned to you", models.ErrForbidden)
	}
	return c.Next()
}

// HandleUpdateStatus sets the status of an assigned order.
func (h *CourierHandler) HandleUpdateStatus(c *fiber.Ctx) error {
	return updateStatus(c, h.service, h.validate, h.logger)
}

type locationRequest struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
}

// HandleUpdateLocation stores the courier's position as reported.
func (h *CourierHandler) HandleUpdateLocation(c *fiber.Ctx) error {
	var req locationRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}
	order, err := h.service.UpdateDriverLocation(c.UserContext(), c.Params("id"), models.Location{Lat: *req.Lat, Lng: *req.Lng})
	if err != nil {
		return respondError(c, h.logger, "Could not update location", err)
	}
	return c.JSON(order)
}
