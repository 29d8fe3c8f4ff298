package handlers

import (
	"errors"
	"log/slog"

	"storefront/internal/feed"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	carts    *services.CartService
	hub      *feed.Hub
	validate *validator.Validate
	logger   *slog.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, carts *services.CartService, hub *feed.Hub, logger *slog.Logger) *OrderHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderHandler{
		service:  service,
		carts:    carts,
		hub:      hub,
		validate: validator.New(),
		logger:   logger,
	}
}

// RegisterRoutes registers the buyer order routes. OptionalAuth must have
// run already; routes that need a user check for one themselves.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Post("/", h.HandleSubmitOrder)
	orderRoutes.Get("/", h.HandleGetMyOrders)
	orderRoutes.Get("/stream", h.HandleStreamMyOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Get("/:id/stream", h.HandleStreamOrder)
	orderRoutes.Post("/:id/confirm", h.HandleConfirmReceipt)
}

// HandleSubmitOrder checks out the caller's cart.
func (h *OrderHandler) HandleSubmitOrder(c *fiber.Ctx) error {
	key, ok := cartKey(c)
	if !ok {
		return missingCartKey(c)
	}
	var req services.SubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}

	res, err := h.service.Submit(c.UserContext(), middleware.CurrentUser(c), h.carts.Cart(key), req)
	if err != nil {
		return respondError(c, h.logger, "Could not place order", err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// HandleGetMyOrders lists the caller's orders.
func (h *OrderHandler) HandleGetMyOrders(c *fiber.Ctx) error {
	caller := middleware.CurrentUser(c)
	if caller == nil {
		return respondError(c, h.logger, "Could not retrieve orders", models.ErrUnauthenticated)
	}
	orders, err := h.service.ListForBuyer(c.UserContext(), caller.ID)
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve orders", err)
	}
	return c.JSON(orders)
}

// HandleStreamMyOrders streams the caller's order history.
func (h *OrderHandler) HandleStreamMyOrders(c *fiber.Ctx) error {
	caller := middleware.CurrentUser(c)
	if caller == nil {
		return respondError(c, h.logger, "Could not open order feed", models.ErrUnauthenticated)
	}
	return streamFeed(c, h.hub, feed.ByBuyer(caller.ID), false, h.logger)
}

// HandleGetOrderByID retrieves a single order by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	order, err := h.service.GetOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve order", err)
	}
	if !canView(middleware.CurrentUser(c), order) {
		return respondError(c, h.logger, "Could not retrieve order", models.ErrForbidden)
	}
	return c.JSON(orderView{Order: *order, Label: feed.DisplayLabel(0, order.Status)})
}

// HandleStreamOrder is the buyer's live status screen. An order that does
// not exist yet streams empty snapshots until it does.
func (h *OrderHandler) HandleStreamOrder(c *fiber.Ctx) error {
	id := utils.CopyString(c.Params("id"))
	order, err := h.service.GetOrder(c.UserContext(), id)
	switch {
	case errors.Is(err, models.ErrOrderNotFound):
	case err != nil:
		return respondError(c, h.logger, "Could not open order feed", err)
	case !canView(middleware.CurrentUser(c), order):
		return respondError(c, h.logger, "Could not open order feed", models.ErrForbidden)
	}
	return streamFeed(c, h.hub, feed.ByOrder(id), true, h.logger)
}

// HandleConfirmReceipt marks a delivered order as received by its buyer.
func (h *OrderHandler) HandleConfirmReceipt(c *fiber.Ctx) error {
	order, err := h.service.ConfirmReceipt(c.UserContext(), middleware.CurrentUser(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, "Could not confirm receipt", err)
	}
	return c.JSON(orderView{Order: *order, Label: feed.DisplayLabel(0, order.Status)})
}

// canView lets staff see every order and buyers see their own. Orders
// placed anonymously are visible to anyone holding the id.
func canView(p *models.Principal, order *models.Order) bool {
	if order.BuyerID == "" {
		return true
	}
	if p == nil {
		return false
	}
	return p.Admin || p.Courier || p.ID == order.BuyerID
}
