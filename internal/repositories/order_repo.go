package repositories

import (
	"context"

	"storefront/internal/models"
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	GetAll(ctx context.Context) ([]models.Order, error)
	GetByID(ctx context.Context, id string) (*models.Order, error)
	ListByDriver(ctx context.Context, driverID string) ([]models.Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]models.Order, error)
	// Create assigns ID and CreatedAt when they are empty.
	Create(ctx context.Context, order *models.Order) error
	// Update applies the non-nil fields of upd and returns the stored order.
	// Writes are last-write-wins.
	Update(ctx context.Context, id string, upd models.OrderUpdate) (*models.Order, error)
}

// applyUpdate copies the set fields of upd onto o and returns the column
// names that changed.
func applyUpdate(o *models.Order, upd models.OrderUpdate) []string {
	var cols []string
	if upd.Status != nil {
		o.Status = *upd.Status
		cols = append(cols, "status")
	}
	if upd.DriverID != nil {
		o.DriverID = *upd.DriverID
		cols = append(cols, "driver_id")
	}
	if upd.DriverLocation != nil {
		loc := *upd.DriverLocation
		o.DriverLocation = &loc
		cols = append(cols, "driver_location")
	}
	if upd.ReceivedAt != nil {
		at := *upd.ReceivedAt
		o.ReceivedAt = &at
		cols = append(cols, "received_at")
	}
	return cols
}
