package services_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"storefront/internal/cart"
	"storefront/internal/feed"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/internal/submission"
	"storefront/pkg/rabbitmq"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	return m.Called(routingKey, payload).Error(0)
}

type failingStore struct{ calls int }

func (f *failingStore) Create(ctx context.Context, order *models.Order) error {
	f.calls++
	return errors.New("PERMISSION_DENIED")
}

type countingTier struct {
	calls int
	err   error
}

func (c *countingTier) Name() string { return "counting" }

func (c *countingTier) Submit(ctx context.Context, order models.Order) (*submission.Receipt, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &submission.Receipt{ID: "counted", Status: models.StatusPending}, nil
}

// gatedTier blocks every submission until release is closed.
type gatedTier struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func newGatedTier() *gatedTier {
	return &gatedTier{started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *gatedTier) Name() string { return "gated" }

func (g *gatedTier) Submit(ctx context.Context, order models.Order) (*submission.Receipt, error) {
	g.calls.Add(1)
	g.started <- struct{}{}
	<-g.release
	return &submission.Receipt{ID: "gated", Status: models.StatusPending}, nil
}

var (
	buyer    = &models.Principal{ID: "buyer-1", Email: "buyer@example.com"}
	intruder = &models.Principal{ID: "buyer-2"}
)

func product(id, price string) models.Product {
	return models.Product{ID: id, Name: "Product " + id, Price: decimal.RequireFromString(price)}
}

func twoLineCart() *cart.Cart {
	c := cart.New()
	c.Add(product("A", "10.00"))
	c.Add(product("A", "10.00"))
	c.Add(product("B", "5.00"))
	return c
}

type fixture struct {
	svc   *services.OrderService
	repo  *repositories.MockOrderRepository
	hub   *feed.Hub
	notes *repositories.MockNotificationRepository
}

func newFixture(t *testing.T, publisher services.EventPublisher) fixture {
	t.Helper()
	repo := repositories.NewMockOrderRepository()
	hub := feed.NewHub(repo, quiet)
	t.Cleanup(hub.Close)
	notes := repositories.NewMockNotificationRepository()
	svc := services.NewOrderService(services.OrderServiceConfig{
		Orders:        repo,
		Chain:         submission.NewChain(quiet, submission.NewStoreTier(repo)),
		Feed:          hub,
		Publisher:     publisher,
		Notifications: services.NewNotificationService(notes, nil, quiet),
		Logger:        quiet,
		InstanceID:    "node-a",
	})
	return fixture{svc: svc, repo: repo, hub: hub, notes: notes}
}

func TestTotals_CouponScenario(t *testing.T) {
	subtotal, discount, total := services.Totals(twoLineCart().Snapshot().Lines, "SAVE10")
	assert.Equal(t, "25.00", subtotal.StringFixed(2))
	assert.Equal(t, "2.50", discount.StringFixed(2))
	assert.Equal(t, "22.50", total.StringFixed(2))
	assert.True(t, total.Equal(subtotal.Sub(discount)))
}

func TestBuildOrder_Validation(t *testing.T) {
	_, err := services.BuildOrder(cart.Snapshot{}, services.SubmitRequest{PaymentMethod: "cash"}, buyer)
	assert.ErrorIs(t, err, models.ErrEmptyCart)

	snap := twoLineCart().Snapshot()
	_, err = services.BuildOrder(snap, services.SubmitRequest{}, buyer)
	assert.ErrorIs(t, err, models.ErrPaymentMethodRequired)

	_, err = services.BuildOrder(snap, services.SubmitRequest{PaymentMethod: "bitcoin"}, buyer)
	assert.ErrorIs(t, err, models.ErrPaymentMethodRequired)

	_, err = services.BuildOrder(snap, services.SubmitRequest{PaymentMethod: "Credit", CouponCode: "BOGUS"}, buyer)
	assert.ErrorIs(t, err, models.ErrInvalidCoupon)

	order, err := services.BuildOrder(snap, services.SubmitRequest{PaymentMethod: "Credit", CouponCode: " save5 "}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCredit, order.PaymentMethod)
	assert.Equal(t, "SAVE5", order.CouponCode)
	assert.Empty(t, order.BuyerID, "anonymous orders carry no buyer")
	assert.Equal(t, "1.25", order.Discount.StringFixed(2))
}

func TestSubmit_EmptyCartNeverReachesATier(t *testing.T) {
	tier := &countingTier{}
	svc := services.NewOrderService(services.OrderServiceConfig{
		Orders: repositories.NewMockOrderRepository(),
		Chain:  submission.NewChain(quiet, tier),
		Logger: quiet,
	})

	_, err := svc.Submit(context.Background(), buyer, cart.New(), services.SubmitRequest{PaymentMethod: "cash"})
	assert.ErrorIs(t, err, models.ErrEmptyCart)

	_, err = svc.Submit(context.Background(), buyer, twoLineCart(), services.SubmitRequest{})
	assert.ErrorIs(t, err, models.ErrPaymentMethodRequired)
	assert.Equal(t, 0, tier.calls)
}

func TestSubmit_PersistsAndClearsCart(t *testing.T) {
	publisher := new(MockPublisher)
	publisher.On("Publish", rabbitmq.RoutingOrderChanged, mock.MatchedBy(func(evt rabbitmq.OrderChanged) bool {
		return evt.Status == "pending" && evt.Origin == "node-a"
	})).Return(nil).Once()
	f := newFixture(t, publisher)
	c := twoLineCart()

	res, err := f.svc.Submit(context.Background(), buyer, c, services.SubmitRequest{PaymentMethod: "debit", CouponCode: "SAVE10"})
	require.NoError(t, err)
	assert.Equal(t, "store", res.Tier)
	assert.Equal(t, models.StatusPending, res.Status)
	assert.Equal(t, "22.50", res.Total.StringFixed(2))
	assert.True(t, c.Snapshot().IsEmpty())

	stored, err := f.repo.GetByID(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, "buyer-1", stored.BuyerID)
	assert.Equal(t, "buyer@example.com", stored.BuyerEmail)
	assert.Equal(t, "25.00", stored.Subtotal.StringFixed(2))
	assert.Equal(t, "2.50", stored.Discount.StringFixed(2))
	assert.Len(t, stored.Lines, 2)

	notes, _ := f.notes.ListByUser(context.Background(), "buyer-1")
	assert.Len(t, notes, 1)
	publisher.AssertExpectations(t)
}

func TestSubmit_StoreDownFallsBackToOfflineStub(t *testing.T) {
	store := &failingStore{}
	svc := services.NewOrderService(services.OrderServiceConfig{
		Orders: repositories.NewMockOrderRepository(),
		Chain: submission.NewChain(quiet,
			submission.NewStoreTier(store),
			submission.NewHTTPTier("", 0),
			submission.NewOfflineTier(10*time.Millisecond),
		),
		Logger: quiet,
	})
	c := twoLineCart()

	res, err := svc.Submit(context.Background(), buyer, c, services.SubmitRequest{PaymentMethod: "cash"})
	require.NoError(t, err)
	assert.Regexp(t, `^mock-\d+$`, res.ID)
	assert.Equal(t, models.StatusPending, res.Status)
	assert.Equal(t, "offline", res.Tier)
	assert.Equal(t, 1, store.calls)
	assert.True(t, c.Snapshot().IsEmpty())
}

func TestSubmit_AllTiersFailedKeepsCart(t *testing.T) {
	svc := services.NewOrderService(services.OrderServiceConfig{
		Orders: repositories.NewMockOrderRepository(),
		Chain:  submission.NewChain(quiet, submission.NewStoreTier(&failingStore{})),
		Logger: quiet,
	})
	c := twoLineCart()

	_, err := svc.Submit(context.Background(), buyer, c, services.SubmitRequest{PaymentMethod: "cash"})
	assert.ErrorIs(t, err, submission.ErrAllTiersFailed)
	assert.Equal(t, 3, c.Snapshot().Count())
}

func TestSubmit_LinesAddedDuringSubmissionSurvive(t *testing.T) {
	tier := newGatedTier()
	svc := services.NewOrderService(services.OrderServiceConfig{
		Orders: repositories.NewMockOrderRepository(),
		Chain:  submission.NewChain(quiet, tier),
		Logger: quiet,
	})
	c := twoLineCart()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Submit(context.Background(), buyer, c, services.SubmitRequest{PaymentMethod: "cash"})
		done <- err
	}()
	<-tier.started

	c.Add(product("C", "2.00"))
	_, err := svc.Submit(context.Background(), buyer, c, services.SubmitRequest{PaymentMethod: "cash"})
	assert.ErrorIs(t, err, models.ErrCheckoutInProgress)

	close(tier.release)
	require.NoError(t, <-done)

	snap := c.Snapshot()
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, "C", snap.Lines[0].ProductID)
	assert.Equal(t, 1, snap.Lines[0].Quantity)
	assert.Equal(t, int32(1), tier.calls.Load())
}

func placeOrder(t *testing.T, f fixture) string {
	t.Helper()
	res, err := f.svc.Submit(context.Background(), buyer, twoLineCart(), services.SubmitRequest{PaymentMethod: "cash"})
	require.NoError(t, err)
	return res.ID
}

func TestConfirmReceipt_Guards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	id := placeOrder(t, f)

	_, err := f.svc.ConfirmReceipt(ctx, nil, id)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)

	for _, s := range []models.OrderStatus{models.StatusPending, models.StatusShipped} {
		_, err = f.svc.UpdateStatus(ctx, id, s)
		require.NoError(t, err)
		_, err = f.svc.ConfirmReceipt(ctx, buyer, id)
		assert.ErrorIs(t, err, models.ErrNotDelivered, s)
	}

	_, err = f.svc.UpdateStatus(ctx, id, models.StatusDelivered)
	require.NoError(t, err)

	// Ownership is checked before status.
	_, err = f.svc.ConfirmReceipt(ctx, intruder, id)
	assert.ErrorIs(t, err, models.ErrNotOrderOwner)
	stored, _ := f.repo.GetByID(ctx, id)
	assert.Equal(t, models.StatusDelivered, stored.Status)

	order, err := f.svc.ConfirmReceipt(ctx, buyer, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReceived, order.Status)
	require.NotNil(t, order.ReceivedAt)

	_, err = f.svc.ConfirmReceipt(ctx, buyer, id)
	assert.ErrorIs(t, err, models.ErrNotDelivered, "already received")

	_, err = f.svc.ConfirmReceipt(ctx, buyer, "missing")
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
}

func TestLifecycle_AdminDrivesBuyerConfirms(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	id := placeOrder(t, f)

	sub, err := f.hub.Subscribe(ctx, feed.ByOrder(id))
	require.NoError(t, err)
	defer sub.Close()
	assert.Equal(t, models.StatusPending, (<-sub.C()).Order().Status)

	for _, s := range []models.OrderStatus{models.StatusPreparing, models.StatusShipped} {
		_, err := f.svc.UpdateStatus(ctx, id, s)
		require.NoError(t, err)
		assert.Equal(t, s, (<-sub.C()).Order().Status)

		_, err = f.svc.ConfirmReceipt(ctx, buyer, id)
		assert.ErrorIs(t, err, models.ErrNotDelivered)
	}

	_, err = f.svc.UpdateStatus(ctx, id, models.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, (<-sub.C()).Order().Status)

	_, err = f.svc.ConfirmReceipt(ctx, buyer, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReceived, (<-sub.C()).Order().Status)

	notes, _ := f.notes.ListByUser(ctx, buyer.ID)
	assert.Len(t, notes, 5)
}

func TestUpdateStatus_BackwardIsAllowed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	id := placeOrder(t, f)

	_, err := f.svc.UpdateStatus(ctx, id, models.StatusDelivered)
	require.NoError(t, err)
	order, err := f.svc.UpdateStatus(ctx, id, models.StatusPreparing)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPreparing, order.Status)

	_, err = f.svc.UpdateStatus(ctx, id, models.OrderStatus("cancelled"))
	assert.ErrorIs(t, err, models.ErrInvalidStatus)
	_, err = f.svc.UpdateStatus(ctx, "missing", models.StatusShipped)
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
}

func TestUpdateStatus_ReceivedIsBuyerOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	id := placeOrder(t, f)

	_, err := f.svc.UpdateStatus(ctx, id, models.StatusReceived)
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = f.svc.UpdateStatus(ctx, id, models.StatusDelivered)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, id, models.StatusReceived)
	assert.ErrorIs(t, err, models.ErrForbidden)

	stored, err := f.repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, stored.Status)
	assert.Nil(t, stored.ReceivedAt)
}

func TestCourierUpdates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	id := placeOrder(t, f)

	sub, err := f.hub.Subscribe(ctx, feed.ByDriver("courier-1"))
	require.NoError(t, err)
	defer sub.Close()
	assert.Empty(t, (<-sub.C()).Orders)

	_, err = f.svc.AssignDriver(ctx, id, "courier-1")
	require.NoError(t, err)
	assert.Len(t, (<-sub.C()).Orders, 1)

	_, err = f.svc.UpdateDriverLocation(ctx, id, models.Location{Lat: -23.5, Lng: -46.6})
	require.NoError(t, err)
	got := (<-sub.C()).Orders
	require.Len(t, got, 1)
	assert.Equal(t, &models.Location{Lat: -23.5, Lng: -46.6}, got[0].DriverLocation)

	_, err = f.svc.UpdateStatus(ctx, id, models.StatusEnRoute)
	require.NoError(t, err)

	assigned, err := f.svc.ListForDriver(ctx, "courier-1")
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, models.StatusEnRoute, assigned[0].Status)

	// Location pings do not notify the buyer; the submission and the status
	// change do.
	notes, _ := f.notes.ListByUser(ctx, buyer.ID)
	assert.Len(t, notes, 2)
}

func TestAfterWrite_PublishFailureIsNotFatal(t *testing.T) {
	publisher := new(MockPublisher)
	publisher.On("Publish", rabbitmq.RoutingOrderChanged, mock.Anything).Return(errors.New("broker down"))
	f := newFixture(t, publisher)

	id := placeOrder(t, f)
	_, err := f.svc.UpdateStatus(context.Background(), id, models.StatusPreparing)
	assert.NoError(t, err)
}
