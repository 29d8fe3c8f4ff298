package database_test

import (
	"context"
	"testing"

	"storefront/internal/database"
	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SQLiteMigrates(t *testing.T) {
	db, err := database.Open(context.Background(), "sqlite", "file:database_open?mode=memory&cache=shared")
	require.NoError(t, err)

	assert.True(t, db.Migrator().HasTable(&models.Order{}))
	assert.True(t, db.Migrator().HasTable(&models.Product{}))
	assert.True(t, db.Migrator().HasTable(&models.User{}))
	assert.True(t, db.Migrator().HasTable(&models.Notification{}))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := database.Open(context.Background(), "mysql", "")
	assert.Error(t, err)
}
