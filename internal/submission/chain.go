// Package submission persists new orders through an ordered list of tiers.
// The first tier that succeeds wins.
package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"storefront/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrAllTiersFailed is returned when no tier accepted the order.
var ErrAllTiersFailed = errors.New("order could not be submitted")

// Receipt identifies a persisted order.
type Receipt struct {
	ID     string             `json:"id"`
	Status models.OrderStatus `json:"status"`
	// Tier names the strategy that accepted the order.
	Tier string `json:"tier"`
	// Order is set by tiers that keep a typed record.
	Order *models.Order `json:"-"`
	// Raw is the remote response body for the HTTP tier.
	Raw map[string]any `json:"-"`
}

// Tier is one persistence strategy.
type Tier interface {
	Name() string
	Submit(ctx context.Context, order models.Order) (*Receipt, error)
}

// Chain tries its tiers in order.
type Chain struct {
	tiers  []Tier
	logger *slog.Logger
	tracer trace.Tracer
}

// NewChain builds a chain. Nil tiers are skipped so optional tiers can be
// passed unconditionally.
func NewChain(logger *slog.Logger, tiers ...Tier) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Chain{logger: logger, tracer: otel.Tracer("storefront/submission")}
	for _, t := range tiers {
		if t != nil {
			c.tiers = append(c.tiers, t)
		}
	}
	return c
}

// Tiers lists the active tier names in order.
func (c *Chain) Tiers() []string {
	names := make([]string, len(c.tiers))
	for i, t := range c.tiers {
		names[i] = t.Name()
	}
	return names
}

// Submit hands order to each tier until one succeeds. Every tier gets its
// own copy of the order.
func (c *Chain) Submit(ctx context.Context, order models.Order) (*Receipt, error) {
	ctx, span := c.tracer.Start(ctx, "submission.Submit")
	defer span.End()

	var errs []error
	for _, tier := range c.tiers {
		tctx, tspan := c.tracer.Start(ctx, "submission.tier", trace.WithAttributes(attribute.String("tier", tier.Name())))
		receipt, err := tier.Submit(tctx, order)
		if err != nil {
			tspan.RecordError(err)
			tspan.SetStatus(codes.Error, err.Error())
			tspan.End()
			c.logger.Warn("order submission tier failed", slog.String("tier", tier.Name()), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", tier.Name(), err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		tspan.End()

		receipt.Tier = tier.Name()
		span.SetAttributes(attribute.String("tier", tier.Name()), attribute.String("order_id", receipt.ID))
		c.logger.Info("order submitted", slog.String("tier", tier.Name()), slog.String("order_id", receipt.ID))
		return receipt, nil
	}

	if len(errs) == 0 {
		errs = append(errs, errors.New("no submission tiers configured"))
	}
	err := fmt.Errorf("%w: %w", ErrAllTiersFailed, errors.Join(errs...))
	span.SetStatus(codes.Error, err.Error())
	return nil, err
}
