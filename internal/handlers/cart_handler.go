package handlers

import (
	"log/slog"

	"storefront/internal/cart"
	"storefront/internal/coupon"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// CartHandler exposes the shopper's cart and the coupon check.
type CartHandler struct {
	carts    *services.CartService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(carts *services.CartService, logger *slog.Logger) *CartHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CartHandler{carts: carts, validate: validator.New(), logger: logger}
}

// RegisterRoutes expects OptionalAuth to have run already.
func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	cartRoutes := router.Group("/cart")
	cartRoutes.Get("/", h.HandleGetCart)
	cartRoutes.Delete("/", h.HandleClearCart)
	cartRoutes.Post("/items", h.HandleAddItem)
	cartRoutes.Post("/items/:id/increase", h.HandleIncrease)
	cartRoutes.Post("/items/:id/decrease", h.HandleDecrease)
	cartRoutes.Delete("/items/:id", h.HandleRemoveItem)

	router.Post("/coupons/evaluate", h.HandleEvaluateCoupon)
}

type cartView struct {
	Lines    []models.OrderLine `json:"lines"`
	Count    int                `json:"count"`
	Subtotal decimal.Decimal    `json:"subtotal"`
}

func newCartView(snap cart.Snapshot) cartView {
	lines := snap.Lines
	if lines == nil {
		lines = []models.OrderLine{}
	}
	return cartView{Lines: lines, Count: snap.Count(), Subtotal: snap.Subtotal().Round(2)}
}

// HandleGetCart returns the caller's cart with its subtotal.
func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	key, ok := cartKey(c)
	if !ok {
		return missingCartKey(c)
	}
	return c.JSON(newCartView(h.carts.Cart(key).Snapshot()))
}

type addItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
}

// HandleAddItem adds one unit of a product.
func (h *CartHandler) HandleAddItem(c *fiber.Ctx) error {
	key, ok := cartKey(c)
	if !ok {
		return missingCartKey(c)
	}
	var req addItemRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}
	snap, err := h.carts.Add(c.UserContext(), key, req.ProductID)
	if err != nil {
		return respondError(c, h.logger, "Could not add item", err)
	}
	return c.JSON(newCartView(snap))
}

// HandleIncrease adds one unit to an existing line.
func (h *CartHandler) HandleIncrease(c *fiber.Ctx) error {
	return h.withKey(c, func(key string) cart.Snapshot { return h.carts.Increase(key, c.Params("id")) })
}

// HandleDecrease removes one unit from a line.
func (h *CartHandler) HandleDecrease(c *fiber.Ctx) error {
	return h.withKey(c, func(key string) cart.Snapshot { return h.carts.Decrease(key, c.Params("id")) })
}

// HandleRemoveItem drops a line.
func (h *CartHandler) HandleRemoveItem(c *fiber.Ctx) error {
	return h.withKey(c, func(key string) cart.Snapshot { return h.carts.Remove(key, c.Params("id")) })
}

// HandleClearCart empties the cart.
func (h *CartHandler) HandleClearCart(c *fiber.Ctx) error {
	return h.withKey(c, h.carts.Clear)
}

func (h *CartHandler) withKey(c *fiber.Ctx, op func(key string) cart.Snapshot) error {
	key, ok := cartKey(c)
	if !ok {
		return missingCartKey(c)
	}
	return c.JSON(newCartView(op(key)))
}

type couponRequest struct {
	Code string `json:"code"`
}

type couponResponse struct {
	coupon.Result
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// HandleEvaluateCoupon checks a code against the caller's current cart. An
// unknown code is not an error; it just yields no discount.
func (h *CartHandler) HandleEvaluateCoupon(c *fiber.Ctx) error {
	var req couponRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	var lines []models.OrderLine
	if key, ok := cartKey(c); ok {
		lines = h.carts.Cart(key).Snapshot().Lines
	}
	res := coupon.Evaluate(req.Code)
	subtotal, discount, total := services.Totals(lines, res.Code)
	return c.JSON(couponResponse{Result: res, Subtotal: subtotal, Discount: discount, Total: total})
}
