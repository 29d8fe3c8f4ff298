package services_test

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/catalog"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyProducts fails GetAll while down is set.
type flakyProducts struct {
	*repositories.MockProductRepository
	down bool
}

func (f *flakyProducts) GetAll(ctx context.Context) ([]models.Product, error) {
	if f.down {
		return nil, errors.New("connection refused")
	}
	return f.MockProductRepository.GetAll(ctx)
}

func TestProductService_CreateNormalizesImage(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMockProductRepository()
	svc := services.NewProductService(repo, catalog.New(repo, catalog.NewCache(catalog.NewMemoryKV(), quiet), quiet))

	p := &models.Product{Name: "Vitamin C", Price: decimal.RequireFromString("12.90")}
	require.NoError(t, svc.CreateProduct(ctx, p, map[string]any{"img": "https://cdn.example.com/c.png"}))
	assert.NotEmpty(t, p.ID)

	got, err := svc.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/c.png", got.ImageRef)

	got.Name = "Vitamin C 500mg"
	require.NoError(t, svc.UpdateProduct(ctx, got, nil))
	again, _ := svc.GetProductByID(ctx, p.ID)
	assert.Equal(t, "Vitamin C 500mg", again.Name)
	assert.Equal(t, "https://cdn.example.com/c.png", again.ImageRef)

	require.NoError(t, svc.DeleteProduct(ctx, p.ID))
	_, err = svc.GetProductByID(ctx, p.ID)
	assert.ErrorIs(t, err, models.ErrProductNotFound)
}

func TestProductService_ServesCacheWhenStoreIsDown(t *testing.T) {
	ctx := context.Background()
	repo := &flakyProducts{MockProductRepository: repositories.NewMockProductRepository()}
	svc := services.NewProductService(repo, catalog.New(repo, catalog.NewCache(catalog.NewMemoryKV(), quiet), quiet))
	require.NoError(t, svc.CreateProduct(ctx, &models.Product{Name: "Ibuprofen"}, nil))

	list, src := svc.GetAllProducts(ctx)
	assert.Equal(t, catalog.SourceLive, src)
	require.Len(t, list, 1)

	repo.down = true
	cached, src := svc.GetAllProducts(ctx)
	assert.Equal(t, catalog.SourceCache, src)
	require.Len(t, cached, 1)
	assert.Equal(t, "Ibuprofen", cached[0].Name)
}
