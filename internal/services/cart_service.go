package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"storefront/internal/cart"
	"storefront/internal/repositories"
)

// DefaultCartIdleTTL is how long an untouched cart is kept.
const DefaultCartIdleTTL = 24 * time.Hour

// CartService owns one cart aggregate per key (a user id, or a device id
// for anonymous shoppers). Carts live only in memory and are dropped once
// idle for longer than the configured TTL.
type CartService struct {
	products repositories.ProductRepository
	idleTTL  time.Duration
	now      func() time.Time

	mu    sync.Mutex
	carts map[string]*cartEntry
}

type cartEntry struct {
	cart     *cart.Cart
	lastUsed time.Time
}

// NewCartService creates a CartService. A non-positive idleTTL uses
// DefaultCartIdleTTL.
func NewCartService(products repositories.ProductRepository, idleTTL time.Duration) *CartService {
	if idleTTL <= 0 {
		idleTTL = DefaultCartIdleTTL
	}
	return &CartService{
		products: products,
		idleTTL:  idleTTL,
		now:      time.Now,
		carts:    make(map[string]*cartEntry),
	}
}

// Cart returns the cart for key, creating it on first use. Every call
// counts as activity.
func (s *CartService) Cart(key string) *cart.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.carts[key]
	if !ok {
		e = &cartEntry{cart: cart.New()}
		s.carts[key] = e
	}
	e.lastUsed = s.now()
	return e.cart
}

// Len is the number of carts held.
func (s *CartService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.carts)
}

// Sweep drops carts idle since before now minus the TTL and reports how
// many were removed.
func (s *CartService) Sweep(now time.Time) int {
	cutoff := now.Add(-s.idleTTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, e := range s.carts {
		if e.lastUsed.Before(cutoff) {
			delete(s.carts, key)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *CartService) RunSweeper(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(s.now()); n > 0 && logger != nil {
				logger.Debug("dropped idle carts", slog.Int("count", n), slog.Int("remaining", s.Len()))
			}
		}
	}
}

// Add looks productID up and adds one unit of it.
func (s *CartService) Add(ctx context.Context, key, productID string) (cart.Snapshot, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return cart.Snapshot{}, fmt.Errorf("cannot add to cart: %w", err)
	}
	return s.Cart(key).Add(*product), nil
}

// Increase adds one unit of productID to the cart at key.
func (s *CartService) Increase(key, productID string) cart.Snapshot {
	return s.Cart(key).Increase(productID)
}

// Decrease removes one unit of productID from the cart at key.
func (s *CartService) Decrease(key, productID string) cart.Snapshot {
	return s.Cart(key).Decrease(productID)
}

// Remove drops productID from the cart at key.
func (s *CartService) Remove(key, productID string) cart.Snapshot {
	return s.Cart(key).Remove(productID)
}

// Clear empties the cart at key.
func (s *CartService) Clear(key string) cart.Snapshot {
	return s.Cart(key).Clear()
}
