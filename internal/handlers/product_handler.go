package handlers

import (
	"encoding/json"
	"log/slog"

	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

// CatalogSourceHeader tells the client whether the list is live or cached.
const CatalogSourceHeader = "X-Catalog-Source"

// ProductHandler serves the catalog.
type ProductHandler struct {
	service  *services.ProductService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService, logger *slog.Logger) *ProductHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProductHandler{service: service, validate: validator.New(), logger: logger}
}

// RegisterRoutes mounts the public catalog routes. adminOnly guards writes.
func (h *ProductHandler) RegisterRoutes(router fiber.Router, adminOnly ...fiber.Handler) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleGetProducts)
	productRoutes.Get("/:id", h.HandleGetProductByID)

	productRoutes.Post("/", guarded(adminOnly, h.HandleCreateProduct)...)
	productRoutes.Put("/:id", guarded(adminOnly, h.HandleUpdateProduct)...)
	productRoutes.Delete("/:id", guarded(adminOnly, h.HandleDeleteProduct)...)
}

// HandleGetProducts never fails: when the store is down the cached list
// (possibly empty) is served instead.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	products, source := h.service.GetAllProducts(c.UserContext())
	c.Set(CatalogSourceHeader, string(source))
	return c.JSON(products)
}

// HandleGetProductByID retrieves a single product.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	product, err := h.service.GetProductByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve product", err)
	}
	return c.JSON(product)
}

// parseProduct decodes the body twice: once into the model and once as a
// loose map so legacy image fields can be picked up.
func (h *ProductHandler) parseProduct(c *fiber.Ctx) (*models.Product, map[string]any, error) {
	var product models.Product
	if err := c.BodyParser(&product); err != nil {
		return nil, nil, badBody(c, err)
	}
	var raw map[string]any
	if err := json.Unmarshal(c.Body(), &raw); err != nil {
		return nil, nil, badBody(c, err)
	}
	if err := h.validate.Struct(product); err != nil {
		return nil, nil, validationFailed(c, err)
	}
	return &product, raw, nil
}

// HandleCreateProduct adds a product to the catalog.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	product, raw, rendered := h.parseProduct(c)
	if product == nil {
		return rendered
	}
	product.ID = ""
	if err := h.service.CreateProduct(c.UserContext(), product, raw); err != nil {
		return respondError(c, h.logger, "Could not create product", err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleUpdateProduct replaces a product.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	product, raw, rendered := h.parseProduct(c)
	if product == nil {
		return rendered
	}
	product.ID = utils.CopyString(c.Params("id"))
	if err := h.service.UpdateProduct(c.UserContext(), product, raw); err != nil {
		return respondError(c, h.logger, "Could not update product", err)
	}
	return c.JSON(product)
}

// HandleDeleteProduct removes a product.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	if err := h.service.DeleteProduct(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, h.logger, "Could not delete product", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
