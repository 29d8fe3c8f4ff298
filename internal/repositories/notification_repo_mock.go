package repositories

import (
	"context"
	"sync"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
)

// MockNotificationRepository is an in-memory implementation of NotificationRepository.
type MockNotificationRepository struct {
	items []models.Notification
	mu    sync.RWMutex
}

// NewMockNotificationRepository creates an empty in-memory repository.
func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{}
}

// Create stores n, assigning its id and time.
func (r *MockNotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	r.items = append(r.items, *n)
	return nil
}

// ListByUser returns the user's notifications, newest first.
func (r *MockNotificationRepository) ListByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := []models.Notification{}
	for i := len(r.items) - 1; i >= 0; i-- {
		if r.items[i].UserID == userID {
			list = append(list, r.items[i])
		}
	}
	return list, nil
}
