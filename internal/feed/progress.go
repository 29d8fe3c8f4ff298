package feed

import (
	"context"
	"math"
	"sync"
	"time"

	"storefront/internal/models"
)

// Progress is the client-side delivery bar. It advances on its own clock and
// says nothing about the real order status.
type Progress struct {
	mu    sync.Mutex
	step  float64
	value float64
}

// NewProgress returns a bar that moves by step per tick.
func NewProgress(step float64) *Progress {
	if step <= 0 {
		step = 0.1
	}
	return &Progress{step: step}
}

// Advance moves the bar one step, capped at 1.
func (p *Progress) Advance() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = math.Min(1, p.value+p.step)
	return p.value
}

// Value is the current progress in [0, 1].
func (p *Progress) Value() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// Run advances the bar every interval and calls onTick with the new value
// until it reaches 1 or ctx ends.
func (p *Progress) Run(ctx context.Context, interval time.Duration, onTick func(float64)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v := p.Advance()
			if onTick != nil {
				onTick(v)
			}
			if v >= 1 {
				return
			}
		}
	}
}

var statusLabels = map[models.OrderStatus]string{
	models.StatusPending:   "Order placed",
	models.StatusPreparing: "Preparing your order",
	models.StatusEnRoute:   "On the way",
	models.StatusShipped:   "On the way",
	models.StatusDelivered: "Delivered",
	models.StatusReceived:  "Received",
}

// DisplayLabel picks the text for the status screen. A known remote status
// always wins; the progress value only fills in before one arrives.
func DisplayLabel(progress float64, remote models.OrderStatus) string {
	if label, ok := statusLabels[remote]; ok {
		return label
	}
	switch {
	case progress < 1.0/3:
		return statusLabels[models.StatusPending]
	case progress < 2.0/3:
		return statusLabels[models.StatusPreparing]
	default:
		return statusLabels[models.StatusEnRoute]
	}
}
