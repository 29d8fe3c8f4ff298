package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"storefront/internal/cart"
	"storefront/internal/coupon"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/submission"
	"storefront/pkg/rabbitmq"

	"github.com/shopspring/decimal"
)

// FeedNotifier is told about every order write so live views refresh.
type FeedNotifier interface {
	Notify(ctx context.Context, orderID string)
}

// EventPublisher publishes a JSON payload under a routing key.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// OrderService handles checkout and the order status lifecycle.
type OrderService struct {
	orderRepo     repositories.OrderRepository
	chain         *submission.Chain
	feed          FeedNotifier
	publisher     EventPublisher
	notifications *NotificationService
	logger        *slog.Logger
	instanceID    string
}

// OrderServiceConfig groups the collaborators of OrderService. Feed,
// Publisher and Notifications are optional.
type OrderServiceConfig struct {
	Orders        repositories.OrderRepository
	Chain         *submission.Chain
	Feed          FeedNotifier
	Publisher     EventPublisher
	Notifications *NotificationService
	Logger        *slog.Logger
	// InstanceID tags published events so an instance can skip its own.
	InstanceID string
}

// NewOrderService creates a new OrderService.
func NewOrderService(cfg OrderServiceConfig) *OrderService {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &OrderService{
		orderRepo:     cfg.Orders,
		chain:         cfg.Chain,
		feed:          cfg.Feed,
		publisher:     cfg.Publisher,
		notifications: cfg.Notifications,
		logger:        cfg.Logger,
		instanceID:    cfg.InstanceID,
	}
}

// SubmitRequest is the checkout form.
type SubmitRequest struct {
	PaymentMethod string `json:"payment_method"`
	CouponCode    string `json:"coupon_code"`
}

// SubmitResult is what the buyer gets back after checkout.
type SubmitResult struct {
	ID     string             `json:"id"`
	Status models.OrderStatus `json:"status"`
	Tier   string             `json:"tier"`
	Total  decimal.Decimal    `json:"total"`
	Raw    map[string]any     `json:"remote,omitempty"`
}

// Totals computes subtotal, discount and total for lines under a coupon
// code. All three are rounded to cents.
func Totals(lines []models.OrderLine, couponCode string) (subtotal, discount, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.LineTotal())
	}
	subtotal = subtotal.Round(2)
	discount = coupon.Discount(subtotal, couponCode)
	total = subtotal.Sub(discount)
	return subtotal, discount, total
}

// BuildOrder validates the checkout input and turns a cart snapshot into an
// order record. Nothing is sent anywhere.
func BuildOrder(snap cart.Snapshot, req SubmitRequest, caller *models.Principal) (models.Order, error) {
	if snap.IsEmpty() {
		return models.Order{}, models.ErrEmptyCart
	}
	method, err := models.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return models.Order{}, err
	}

	code := ""
	if strings.TrimSpace(req.CouponCode) != "" {
		res := coupon.Evaluate(req.CouponCode)
		if !res.Recognized {
			return models.Order{}, models.ErrInvalidCoupon
		}
		code = res.Code
	}

	lines := append([]models.OrderLine(nil), snap.Lines...)
	subtotal, discount, total := Totals(lines, code)
	order := models.Order{
		Lines:         lines,
		Subtotal:      subtotal,
		Discount:      discount,
		Total:         total,
		PaymentMethod: method,
		CouponCode:    code,
		Status:        models.StatusPending,
	}
	if caller != nil {
		order.BuyerID = caller.ID
		order.BuyerEmail = caller.Email
	}
	return order, nil
}

// Submit checks out c. On success the submitted lines leave the cart and
// anything added during submission stays; when every tier fails the cart is
// left as it was. Only one checkout per cart runs at a time.
func (s *OrderService) Submit(ctx context.Context, caller *models.Principal, c *cart.Cart, req SubmitRequest) (*SubmitResult, error) {
	var (
		order   models.Order
		receipt *submission.Receipt
	)
	err := c.Checkout(func(snap cart.Snapshot) error {
		var err error
		if order, err = BuildOrder(snap, req, caller); err != nil {
			return err
		}
		if receipt, err = s.chain.Submit(ctx, order); err != nil {
			s.logger.Error("order submission failed", slog.Any("error", err))
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if receipt.Order != nil && receipt.Tier == "store" {
		s.afterWrite(ctx, receipt.Order, true)
	}

	return &SubmitResult{
		ID:     receipt.ID,
		Status: receipt.Status,
		Tier:   receipt.Tier,
		Total:  order.Total,
		Raw:    receipt.Raw,
	}, nil
}

// GetOrder returns one order.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return s.orderRepo.GetByID(ctx, id)
}

// ListAll returns every order, newest first.
func (s *OrderService) ListAll(ctx context.Context) ([]models.Order, error) {
	return s.orderRepo.GetAll(ctx)
}

// ListForDriver returns the orders assigned to a courier.
func (s *OrderService) ListForDriver(ctx context.Context, driverID string) ([]models.Order, error) {
	return s.orderRepo.ListByDriver(ctx, driverID)
}

// ListForBuyer returns the orders placed by a buyer.
func (s *OrderService) ListForBuyer(ctx context.Context, buyerID string) ([]models.Order, error) {
	return s.orderRepo.ListByBuyer(ctx, buyerID)
}

// ConfirmReceipt is the buyer's delivered -> received transition. The
// checks run in order: signed in, owns the order, order delivered.
func (s *OrderService) ConfirmReceipt(ctx context.Context, caller *models.Principal, orderID string) (*models.Order, error) {
	if caller == nil || caller.ID == "" {
		return nil, models.ErrUnauthenticated
	}
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != caller.ID {
		return nil, models.ErrNotOrderOwner
	}
	if order.Status != models.StatusDelivered {
		return nil, models.ErrNotDelivered
	}

	status := models.StatusReceived
	now := time.Now()
	updated, err := s.orderRepo.Update(ctx, orderID, models.OrderUpdate{Status: &status, ReceivedAt: &now})
	if err != nil {
		return nil, fmt.Errorf("failed to confirm receipt of order %s: %w", orderID, err)
	}
	s.afterWrite(ctx, updated, true)
	return updated, nil
}

// UpdateStatus overwrites the status of an order. Admin and courier
// screens call it; moving backward is allowed but logged. Received is
// reserved for the buyer and goes through ConfirmReceipt.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error) {
	if !status.IsValid() {
		return nil, models.ErrInvalidStatus
	}
	if status == models.StatusReceived {
		return nil, fmt.Errorf("only the buyer can mark an order received: %w", models.ErrForbidden)
	}
	current, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanAdvanceTo(status) {
		s.logger.Warn("order status moved backward",
			slog.String("order_id", orderID),
			slog.String("from", current.Status.String()),
			slog.String("to", status.String()))
	}

	updated, err := s.orderRepo.Update(ctx, orderID, models.OrderUpdate{Status: &status})
	if err != nil {
		return nil, fmt.Errorf("failed to update order status for order %s: %w", orderID, err)
	}
	s.afterWrite(ctx, updated, true)
	return updated, nil
}

// AssignDriver sets the courier responsible for an order.
func (s *OrderService) AssignDriver(ctx context.Context, orderID, driverID string) (*models.Order, error) {
	updated, err := s.orderRepo.Update(ctx, orderID, models.OrderUpdate{DriverID: &driverID})
	if err != nil {
		return nil, fmt.Errorf("failed to assign driver to order %s: %w", orderID, err)
	}
	s.afterWrite(ctx, updated, false)
	return updated, nil
}

// UpdateDriverLocation stores the courier's last reported position as is.
func (s *OrderService) UpdateDriverLocation(ctx context.Context, orderID string, loc models.Location) (*models.Order, error) {
	updated, err := s.orderRepo.Update(ctx, orderID, models.OrderUpdate{DriverLocation: &loc})
	if err != nil {
		return nil, fmt.Errorf("failed to update driver location for order %s: %w", orderID, err)
	}
	s.afterWrite(ctx, updated, false)
	return updated, nil
}

var statusMessages = map[models.OrderStatus]string{
	models.StatusPending:   "We received your order.",
	models.StatusPreparing: "Your order is being prepared.",
	models.StatusEnRoute:   "Your order is on the way.",
	models.StatusShipped:   "Your order is on the way.",
	models.StatusDelivered: "Your order was delivered. Please confirm receipt.",
	models.StatusReceived:  "Thanks for confirming receipt.",
}

// afterWrite refreshes local feeds, tells other instances and, for status
// changes, notifies the buyer. None of these can fail the write that
// already happened.
func (s *OrderService) afterWrite(ctx context.Context, order *models.Order, statusChanged bool) {
	if s.feed != nil {
		s.feed.Notify(ctx, order.ID)
	}
	if s.publisher != nil {
		evt := rabbitmq.OrderChanged{
			OrderID: order.ID,
			Status:  order.Status.String(),
			Origin:  s.instanceID,
			At:      time.Now(),
		}
		if err := s.publisher.Publish(ctx, rabbitmq.RoutingOrderChanged, evt); err != nil {
			s.logger.Warn("failed to publish order change", slog.String("order_id", order.ID), slog.Any("error", err))
		}
	}
	if statusChanged && s.notifications != nil {
		if msg, ok := statusMessages[order.Status]; ok {
			s.notifications.Notify(ctx, order.BuyerID, order.ID, "Order "+order.Status.String(), msg)
		}
	}
}
