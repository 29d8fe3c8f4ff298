package services_test

import (
	"context"
	"testing"

	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/pkg/rabbitmq"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNotificationService_StoresAndPublishes(t *testing.T) {
	ctx := context.Background()
	publisher := new(MockPublisher)
	publisher.On("Publish", rabbitmq.RoutingNotificationCreated, mock.AnythingOfType("*models.Notification")).Return(nil).Once()
	svc := services.NewNotificationService(repositories.NewMockNotificationRepository(), publisher, quiet)

	svc.Notify(ctx, "u1", "o1", "Order shipped", "Your order is on the way.")
	svc.Notify(ctx, "", "o1", "ignored", "no recipient")

	list, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "o1", list[0].OrderID)
	assert.NotEmpty(t, list[0].ID)
	publisher.AssertExpectations(t)
}

func TestNotificationService_WithoutStore(t *testing.T) {
	svc := services.NewNotificationService(nil, nil, quiet)
	svc.Notify(context.Background(), "u1", "o1", "t", "b")
	list, err := svc.List(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []models.Notification{}, list)
}
