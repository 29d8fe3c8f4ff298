// Package feed delivers live order snapshots to buyer, admin and courier
// views.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"storefront/internal/models"
)

// ErrUnavailable is what subscribers see when the store cannot be read.
var ErrUnavailable = errors.New("could not load orders")

// Snapshot is the full current result of a filter. Consumers replace their
// whole view with it.
type Snapshot struct {
	Orders []models.Order
	Err    error
	At     time.Time
}

// Order returns the single order of a ByOrder snapshot, or nil.
func (s Snapshot) Order() *models.Order {
	if len(s.Orders) == 0 {
		return nil
	}
	return &s.Orders[0]
}

// Hub fans order changes out to subscriptions.
type Hub struct {
	src    Source
	logger *slog.Logger

	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64

	// refresh rounds run one at a time so every subscription sees
	// snapshots in the order they were read.
	refreshMu sync.Mutex
}

// NewHub creates a hub reading from src.
func NewHub(src Source, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		src:    src,
		logger: logger,
		subs:   make(map[uint64]*Subscription),
	}
}

// Subscribe registers a subscription for f and delivers the current
// snapshot before returning. The subscription is released when ctx is done
// or Close is called, whichever comes first.
func (h *Hub) Subscribe(ctx context.Context, f Filter) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.refreshMu.Lock()
	defer h.refreshMu.Unlock()

	orders, err := f.load(ctx, h.src)
	if err != nil {
		h.logger.Error("feed subscription setup failed", slog.String("filter", f.String()), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	sub := &Subscription{
		filter: f,
		ch:     make(chan Snapshot, 1),
		done:   make(chan struct{}),
		hub:    h,
	}

	h.mu.Lock()
	h.nextID++
	sub.id = h.nextID
	h.subs[sub.id] = sub
	h.mu.Unlock()

	sub.deliver(Snapshot{Orders: orders, At: time.Now()})

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	h.logger.Debug("feed subscribed", slog.String("filter", f.String()), slog.Uint64("subscription", sub.id))
	return sub, nil
}

// Notify re-reads every subscription affected by a change to orderID and
// pushes the new snapshots. Each distinct filter is queried once per round.
func (h *Hub) Notify(ctx context.Context, orderID string) {
	h.refreshMu.Lock()
	defer h.refreshMu.Unlock()

	h.mu.RLock()
	targets := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		if sub.filter.affectedBy(orderID) {
			targets = append(targets, sub)
		}
	}
	h.mu.RUnlock()

	type result struct {
		orders []models.Order
		err    error
	}
	results := make(map[Filter]result)
	now := time.Now()
	for _, sub := range targets {
		res, ok := results[sub.filter]
		if !ok {
			orders, err := sub.filter.load(ctx, h.src)
			if err != nil {
				h.logger.Error("feed refresh failed", slog.String("filter", sub.filter.String()), slog.String("order_id", orderID), slog.Any("error", err))
				err = ErrUnavailable
			}
			res = result{orders: orders, err: err}
			results[sub.filter] = res
		}
		// Each subscriber gets its own slice.
		orders := append([]models.Order(nil), res.orders...)
		sub.deliver(Snapshot{Orders: orders, Err: res.err, At: now})
	}
}

// Subscribers is the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close releases every subscription.
func (h *Hub) Close() {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.RUnlock()
	for _, s := range subs {
		s.Close()
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// Subscription is one live view. Only the newest undelivered snapshot is
// kept; a slow reader skips intermediate versions.
type Subscription struct {
	id     uint64
	filter Filter
	hub    *Hub

	mu     sync.Mutex
	ch     chan Snapshot
	closed bool
	done   chan struct{}
	once   sync.Once
}

// C delivers snapshots. It is closed when the subscription ends.
func (s *Subscription) C() <-chan Snapshot { return s.ch }

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Filter is the filter the subscription was opened with.
func (s *Subscription) Filter() Filter { return s.filter }

// Close ends the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s.id)
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *Subscription) deliver(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- snap:
		return
	default:
	}
	// Drop the stale snapshot; the channel has room for exactly one.
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
}
