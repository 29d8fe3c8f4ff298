// Package cart holds the in-memory shopping cart aggregate.
package cart

import (
	"sync"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
)

// Snapshot is an immutable view of a cart at one point in time.
type Snapshot struct {
	Lines []models.OrderLine `json:"lines"`
}

// Subtotal sums UnitPrice * Quantity across all lines.
func (s Snapshot) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.Lines {
		total = total.Add(l.LineTotal())
	}
	return total
}

// Count is the number of units in the cart.
func (s Snapshot) Count() int {
	n := 0
	for _, l := range s.Lines {
		n += l.Quantity
	}
	return n
}

// IsEmpty reports whether the cart has no lines.
func (s Snapshot) IsEmpty() bool { return len(s.Lines) == 0 }

// Cart is a collection of lines with at most one line per product. Every
// mutation swaps in a freshly built slice, so a Snapshot handed out earlier
// is never modified.
type Cart struct {
	mu          sync.Mutex
	lines       []models.OrderLine
	onChange    func(Snapshot)
	checkingOut bool
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// OnChange registers fn to receive the new snapshot after every mutation.
func (c *Cart) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Snapshot returns the current lines.
func (c *Cart) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{Lines: c.lines}
}

// Add puts one unit of p in the cart. A product already present has its
// quantity bumped; a new one is appended after the existing lines.
func (c *Cart) Add(p models.Product) Snapshot {
	return c.mutate(func(lines []models.OrderLine) []models.OrderLine {
		for i := range lines {
			if lines[i].ProductID == p.ID {
				lines[i].Quantity++
				return lines
			}
		}
		return append(lines, p.Line())
	})
}

// Increase adds one unit to the line for productID. Unknown ids are ignored.
func (c *Cart) Increase(productID string) Snapshot {
	return c.mutate(func(lines []models.OrderLine) []models.OrderLine {
		for i := range lines {
			if lines[i].ProductID == productID {
				lines[i].Quantity++
			}
		}
		return lines
	})
}

// Decrease removes one unit from the line for productID, dropping the line
// when it reaches zero.
func (c *Cart) Decrease(productID string) Snapshot {
	return c.mutate(func(lines []models.OrderLine) []models.OrderLine {
		out := lines[:0]
		for _, l := range lines {
			if l.ProductID == productID {
				l.Quantity--
			}
			if l.Quantity >= 1 {
				out = append(out, l)
			}
		}
		return out
	})
}

// Remove drops the line for productID.
func (c *Cart) Remove(productID string) Snapshot {
	return c.mutate(func(lines []models.OrderLine) []models.OrderLine {
		out := lines[:0]
		for _, l := range lines {
			if l.ProductID != productID {
				out = append(out, l)
			}
		}
		return out
	})
}

// Clear empties the cart.
func (c *Cart) Clear() Snapshot {
	return c.mutate(func([]models.OrderLine) []models.OrderLine { return nil })
}

// Checkout passes the current snapshot to submit. The cart stays editable
// while submit runs, but a second Checkout fails with
// models.ErrCheckoutInProgress. If submit succeeds only the submitted
// quantities are taken out, so units added in the meantime are kept.
func (c *Cart) Checkout(submit func(Snapshot) error) error {
	c.mu.Lock()
	if c.checkingOut {
		c.mu.Unlock()
		return models.ErrCheckoutInProgress
	}
	c.checkingOut = true
	snap := Snapshot{Lines: c.lines}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.checkingOut = false
		c.mu.Unlock()
	}()

	if err := submit(snap); err != nil {
		return err
	}
	c.subtract(snap)
	return nil
}

// subtract removes the quantities in snap, dropping lines that reach zero.
func (c *Cart) subtract(snap Snapshot) Snapshot {
	submitted := make(map[string]int, len(snap.Lines))
	for _, l := range snap.Lines {
		submitted[l.ProductID] += l.Quantity
	}
	return c.mutate(func(lines []models.OrderLine) []models.OrderLine {
		out := lines[:0]
		for _, l := range lines {
			l.Quantity -= submitted[l.ProductID]
			if l.Quantity >= 1 {
				out = append(out, l)
			}
		}
		return out
	})
}

// mutate hands fn a private copy of the lines and installs its result.
func (c *Cart) mutate(fn func([]models.OrderLine) []models.OrderLine) Snapshot {
	c.mu.Lock()
	next := make([]models.OrderLine, len(c.lines))
	copy(next, c.lines)
	next = fn(next)
	if len(next) == 0 {
		next = nil
	}
	c.lines = next
	snap := Snapshot{Lines: next}
	notify := c.onChange
	c.mu.Unlock()

	if notify != nil {
		notify(snap)
	}
	return snap
}
