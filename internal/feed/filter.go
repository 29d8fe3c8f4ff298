package feed

import (
	"context"
	"errors"
	"sort"
	"strings"

	"storefront/internal/models"
)

// Source is the read side of the order store.
type Source interface {
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetAll(ctx context.Context) ([]models.Order, error)
	ListByDriver(ctx context.Context, driverID string) ([]models.Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]models.Order, error)
}

type filterKind int

const (
	kindOrder filterKind = iota
	kindAll
	kindDriver
	kindBuyer
)

// Filter selects the orders a subscription watches. Filters are comparable
// and can be used as map keys. The constructors copy their key, since a
// filter outlives the request whose buffers the caller may have read it from.
type Filter struct {
	kind filterKind
	key  string
}

// ByOrder watches a single order (buyer status screen).
func ByOrder(id string) Filter { return Filter{kind: kindOrder, key: strings.Clone(id)} }

// All watches every order, newest first (admin panel).
func All() Filter { return Filter{kind: kindAll} }

// ByDriver watches the orders assigned to a courier (courier map).
func ByDriver(driverID string) Filter { return Filter{kind: kindDriver, key: strings.Clone(driverID)} }

// ByBuyer watches the orders placed by one buyer (order history).
func ByBuyer(buyerID string) Filter { return Filter{kind: kindBuyer, key: strings.Clone(buyerID)} }

// String describes f for logs.
func (f Filter) String() string {
	switch f.kind {
	case kindOrder:
		return "order:" + f.key
	case kindAll:
		return "all"
	case kindDriver:
		return "driver:" + f.key
	default:
		return "buyer:" + f.key
	}
}

// affectedBy reports whether a change to orderID can alter the result of f.
// Driver and buyer views are always refreshed since a write may move an
// order into or out of them.
func (f Filter) affectedBy(orderID string) bool {
	if f.kind == kindOrder {
		return f.key == orderID
	}
	return true
}

// load runs the query behind f. A missing single order yields an empty
// list rather than an error.
func (f Filter) load(ctx context.Context, src Source) ([]models.Order, error) {
	var (
		orders []models.Order
		err    error
	)
	switch f.kind {
	case kindOrder:
		var o *models.Order
		o, err = src.GetByID(ctx, f.key)
		if errors.Is(err, models.ErrOrderNotFound) {
			err = nil
		}
		if o != nil {
			orders = []models.Order{*o}
		}
	case kindAll:
		orders, err = src.GetAll(ctx)
	case kindDriver:
		orders, err = src.ListByDriver(ctx, f.key)
	case kindBuyer:
		orders, err = src.ListByBuyer(ctx, f.key)
	}
	if err != nil {
		return nil, err
	}
	if f.kind != kindOrder {
		sort.SliceStable(orders, func(i, j int) bool {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		})
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}
