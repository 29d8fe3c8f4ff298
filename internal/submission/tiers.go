package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/gofiber/fiber/v2"
)

// OrderCreator is the write side of the order store.
type OrderCreator interface {
	Create(ctx context.Context, order *models.Order) error
}

// StoreTier writes the order to the primary store. The store assigns the
// id and creation time.
type StoreTier struct {
	store OrderCreator
}

// NewStoreTier returns a tier that writes through store.
func NewStoreTier(store OrderCreator) *StoreTier {
	return &StoreTier{store: store}
}

// Name identifies the tier in receipts and logs.
func (t *StoreTier) Name() string { return "store" }

// Submit creates the order as pending with a store-assigned id.
func (t *StoreTier) Submit(ctx context.Context, order models.Order) (*Receipt, error) {
	order.ID = ""
	order.CreatedAt = time.Time{}
	order.Status = models.StatusPending
	if err := t.store.Create(ctx, &order); err != nil {
		return nil, err
	}
	return &Receipt{ID: order.ID, Status: order.Status, Order: &order}, nil
}

// HTTPTier posts the order JSON to a fallback endpoint and takes its JSON
// response as the result. Any non-2xx status is a failure.
type HTTPTier struct {
	url     string
	timeout time.Duration
}

// NewHTTPTier returns nil when url is empty, which NewChain skips.
func NewHTTPTier(url string, timeout time.Duration) Tier {
	if url == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPTier{url: url, timeout: timeout}
}

// Name identifies the tier in receipts and logs.
func (t *HTTPTier) Name() string { return "http" }

// Submit posts the order. The request is abandoned as soon as ctx is done;
// the agent's own timeout still bounds the connection left behind.
func (t *HTTPTier) Submit(ctx context.Context, order models.Order) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	order.Status = models.StatusPending
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}

	timeout := t.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}

	agent := fiber.Post(t.url)
	agent.JSON(order)
	agent.Timeout(timeout)
	if err := agent.Parse(); err != nil {
		return nil, fmt.Errorf("invalid fallback endpoint: %w", err)
	}

	done := make(chan httpResult, 1)
	go func() {
		code, body, errs := agent.Bytes()
		done <- httpResult{code: code, body: body, errs: errs}
	}()

	var res httpResult
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fallback request abandoned: %w", ctx.Err())
	case res = <-done:
	}
	if len(res.errs) > 0 {
		return nil, fmt.Errorf("fallback request failed: %w", errors.Join(res.errs...))
	}
	if res.code < 200 || res.code > 299 {
		return nil, fmt.Errorf("fallback endpoint returned status %d", res.code)
	}

	var raw map[string]any
	if err := json.Unmarshal(res.body, &raw); err != nil {
		return nil, fmt.Errorf("fallback endpoint returned invalid JSON: %w", err)
	}
	receipt := &Receipt{Status: models.StatusPending, Raw: raw}
	if id, ok := raw["id"]; ok && id != nil {
		receipt.ID = fmt.Sprint(id)
	}
	if s, ok := raw["status"].(string); ok && s != "" {
		receipt.Status = models.OrderStatus(s)
	}
	return receipt, nil
}

type httpResult struct {
	code int
	body []byte
	errs []error
}

// OfflineTier is a development and offline stub. It always succeeds after a
// fixed delay with a locally generated id, and must not be enabled in
// production.
type OfflineTier struct {
	delay time.Duration
	now   func() time.Time
}

// NewOfflineTier returns a stub that answers after delay.
func NewOfflineTier(delay time.Duration) *OfflineTier {
	return &OfflineTier{delay: delay, now: time.Now}
}

// Name identifies the tier in receipts and logs.
func (t *OfflineTier) Name() string { return "offline" }

// Submit waits out the delay, or until ctx is done, and returns a mock-<ms> id.
func (t *OfflineTier) Submit(ctx context.Context, order models.Order) (*Receipt, error) {
	timer := time.NewTimer(t.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	now := t.now()
	order.ID = fmt.Sprintf("mock-%d", now.UnixMilli())
	order.Status = models.StatusPending
	order.CreatedAt = now
	return &Receipt{ID: order.ID, Status: order.Status, Order: &order}, nil
}
