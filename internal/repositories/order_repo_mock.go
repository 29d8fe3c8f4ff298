package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
)

// MockOrderRepository is an in-memory implementation of OrderRepository.
type MockOrderRepository struct {
	orders map[string]models.Order
	mu     sync.RWMutex
}

// NewMockOrderRepository creates a new instance of MockOrderRepository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[string]models.Order),
	}
}

// GetAll returns all orders.
func (r *MockOrderRepository) GetAll(ctx context.Context) ([]models.Order, error) {
	return r.filter(func(models.Order) bool { return true }), nil
}

// GetByID returns an order by its ID.
func (r *MockOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, models.ErrOrderNotFound)
	}
	return cloneOrder(order), nil
}

// ListByDriver returns the orders assigned to driverID.
func (r *MockOrderRepository) ListByDriver(ctx context.Context, driverID string) ([]models.Order, error) {
	return r.filter(func(o models.Order) bool { return o.DriverID == driverID }), nil
}

// ListByBuyer returns the orders placed by buyerID.
func (r *MockOrderRepository) ListByBuyer(ctx context.Context, buyerID string) ([]models.Order, error) {
	return r.filter(func(o models.Order) bool { return o.BuyerID == buyerID }), nil
}

// Create adds a new order.
func (r *MockOrderRepository) Create(ctx context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	r.orders[order.ID] = *cloneOrder(*order)
	return nil
}

// Update applies upd to the stored order.
func (r *MockOrderRepository) Update(ctx context.Context, id string, upd models.OrderUpdate) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, models.ErrOrderNotFound)
	}
	applyUpdate(&order, upd)
	order.UpdatedAt = time.Now()
	r.orders[id] = order
	return cloneOrder(order), nil
}

func (r *MockOrderRepository) filter(keep func(models.Order) bool) []models.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orderList := make([]models.Order, 0, len(r.orders))
	for _, order := range r.orders {
		if keep(order) {
			orderList = append(orderList, *cloneOrder(order))
		}
	}
	return orderList
}

// cloneOrder copies the slice and pointer fields so callers cannot reach
// into the stored record.
func cloneOrder(o models.Order) *models.Order {
	o.Lines = append([]models.OrderLine(nil), o.Lines...)
	if o.DriverLocation != nil {
		loc := *o.DriverLocation
		o.DriverLocation = &loc
	}
	if o.ReceivedAt != nil {
		at := *o.ReceivedAt
		o.ReceivedAt = &at
	}
	return &o
}
