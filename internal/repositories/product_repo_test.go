package repositories_test

import (
	"context"
	"testing"

	"storefront/internal/database"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, "sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)

	repos := map[string]repositories.ProductRepository{
		"mock": repositories.NewMockProductRepository(),
		"gorm": repositories.NewGORMProductRepository(db),
	}
	for name, repo := range repos {
		t.Run(name, func(t *testing.T) {
			p := &models.Product{Name: "Paracetamol 750mg", Price: decimal.RequireFromString("12.90"), Stock: 3}
			require.NoError(t, repo.Create(ctx, p))
			require.NotEmpty(t, p.ID)

			p.Stock = 1
			p.ImageRef = "https://cdn.example/p.png"
			require.NoError(t, repo.Update(ctx, p))

			got, err := repo.GetByID(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, got.Stock)
			assert.Equal(t, "https://cdn.example/p.png", got.ImageRef)

			all, err := repo.GetAll(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 1)

			require.NoError(t, repo.Delete(ctx, p.ID))
			_, err = repo.GetByID(ctx, p.ID)
			assert.ErrorIs(t, err, models.ErrProductNotFound)
			assert.ErrorIs(t, repo.Delete(ctx, p.ID), models.ErrProductNotFound)
			assert.ErrorIs(t, repo.Update(ctx, &models.Product{ID: "missing", Name: "x"}), models.ErrProductNotFound)
		})
	}
}
