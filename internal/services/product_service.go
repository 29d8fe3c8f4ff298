package services

import (
	"context"

	"storefront/internal/catalog"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

// ProductService handles business logic related to products.
type ProductService struct {
	repo    repositories.ProductRepository
	catalog *catalog.Catalog
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository, cat *catalog.Catalog) *ProductService {
	return &ProductService{
		repo:    repo,
		catalog: cat,
	}
}

// GetAllProducts returns the live list, or the cached one when the store
// cannot be read.
func (s *ProductService) GetAllProducts(ctx context.Context) ([]models.Product, catalog.Source) {
	return s.catalog.List(ctx)
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// CreateProduct stores a product. raw is the request body as received; its
// image fields are folded into ImageRef here so nothing downstream has to
// look at them.
func (s *ProductService) CreateProduct(ctx context.Context, product *models.Product, raw map[string]any) error {
	product.NormalizeImage(raw)
	return s.repo.Create(ctx, product)
}

// UpdateProduct updates an existing product.
func (s *ProductService) UpdateProduct(ctx context.Context, product *models.Product, raw map[string]any) error {
	product.NormalizeImage(raw)
	return s.repo.Update(ctx, product)
}

// DeleteProduct deletes a product by its ID.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
