package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the remote-authoritative lifecycle value of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPreparing OrderStatus = "preparing"
	StatusEnRoute   OrderStatus = "enroute"
	StatusShipped   OrderStatus = "shipped"
	StatusDelivered OrderStatus = "delivered"
	StatusReceived  OrderStatus = "received"
)

// statusRank orders the lifecycle. Couriers say "enroute" where the admin
// panel says "shipped"; both sit on the same step.
var statusRank = map[OrderStatus]int{
	StatusPending:   0,
	StatusPreparing: 1,
	StatusEnRoute:   2,
	StatusShipped:   2,
	StatusDelivered: 3,
	StatusReceived:  4,
}

// String returns the stored form of the status.
func (s OrderStatus) String() string { return string(s) }

// IsValid reports whether s is a known status.
func (s OrderStatus) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// Rank returns the position of s in the lifecycle, or -1 when unknown.
func (s OrderStatus) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// CanAdvanceTo reports whether moving from s to next never goes backward.
// Same-rank moves (shipped <-> enroute) count as forward.
func (s OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	if !s.IsValid() || !next.IsValid() {
		return false
	}
	return next.Rank() >= s.Rank()
}

// ParseOrderStatus normalizes raw input into an OrderStatus.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if s == "en_route" || s == "en route" {
		s = StatusEnRoute
	}
	if !s.IsValid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}

// PaymentMethod is the payment selected at checkout.
type PaymentMethod string

const (
	PaymentCredit PaymentMethod = "credit"
	PaymentDebit  PaymentMethod = "debit"
	PaymentCash   PaymentMethod = "cash"
)

// ParsePaymentMethod accepts the method case-insensitively.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToLower(strings.TrimSpace(raw))); m {
	case PaymentCredit, PaymentDebit, PaymentCash:
		return m, nil
	default:
		return "", ErrPaymentMethodRequired
	}
}

// Location is a raw courier coordinate.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// OrderLine is a product/quantity pair. Cart lines and order line snapshots
// share this shape.
type OrderLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	ImageRef  string          `json:"image_ref,omitempty"`
}

// LineTotal is UnitPrice * Quantity.
func (l OrderLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order represents a submitted checkout. Only Status, DriverID,
// DriverLocation and ReceivedAt change after creation.
type Order struct {
	ID             string          `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Lines          []OrderLine     `json:"lines" gorm:"serializer:json"`
	Subtotal       decimal.Decimal `json:"subtotal" gorm:"type:numeric(12,2)"`
	Discount       decimal.Decimal `json:"discount" gorm:"type:numeric(12,2)"`
	Total          decimal.Decimal `json:"total" gorm:"type:numeric(12,2)"`
	PaymentMethod  PaymentMethod   `json:"payment_method" gorm:"type:varchar(16)"`
	CouponCode     string          `json:"coupon_code,omitempty" gorm:"type:varchar(32)"`
	Status         OrderStatus     `json:"status" gorm:"type:varchar(16);index"`
	BuyerID        string          `json:"buyer_id,omitempty" gorm:"type:varchar(36);index"`
	BuyerEmail     string          `json:"buyer_email,omitempty" gorm:"type:varchar(255)"`
	DriverID       string          `json:"driver_id,omitempty" gorm:"type:varchar(36);index"`
	DriverLocation *Location       `json:"driver_location,omitempty" gorm:"serializer:json"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	ReceivedAt     *time.Time      `json:"received_at,omitempty"`
}

// OrderUpdate carries the mutable fields of an order. Nil fields are left
// untouched.
type OrderUpdate struct {
	Status         *OrderStatus
	DriverID       *string
	DriverLocation *Location
	ReceivedAt     *time.Time
}
