package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"boutique-backend/internal/application/address"
	"boutique-backend/internal/domain/aggregate"
	"boutique-backend/internal/domain/event"
	"boutique-backend/internal/infrastructure/bus"
	"boutique-backend/internal/infrastructure/eventstore"
	"boutique-backend/internal/infrastructure/payment"
	apperrors "boutique-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCartRepo struct {
	carts map[string]*aggregate.Cart
}

func (f *fakeCartRepo) GetCartWithItems(ctx context.Context, cartID string) (*aggregate.Cart, error) {
	cart, ok := f.carts[cartID]
	if !ok {
		return nil, apperrors.NewNotFoundError("cart not found")
	}
	return cart, nil
}

type fakeOrderRepo struct {
	mu           sync.Mutex
	orders       map[string]*aggregate.Order
	saveCalls    int
	markPaidHits int
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]*aggregate.Order)}
}

func (f *fakeOrderRepo) GetByID(ctx context.Context, id string) (*aggregate.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("order not found")
	}
	return order, nil
}

func (f *fakeOrderRepo) Save(ctx context.Context, order *aggregate.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCalls++
	f.orders[order.ID()] = order
	return nil
}

func (f *fakeOrderRepo) MarkPaid(ctx context.Context, orderID, paymentIntentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return false, apperrors.NewNotFoundError("order not found")
	}
	if order.IsPaid() {
		return false, nil
	}
	if err := order.MarkPaid(paymentIntentID); err != nil {
		return false, nil
	}
	f.markPaidHits++
	return true, nil
}

type fakeProvider struct {
	mu           sync.Mutex
	createErrs   []error
	createCalls  int
	lastRequest  *payment.SessionRequest
	session      *payment.Session
	webhookEvent *payment.WebhookEvent
	webhookErr   error
	verifyCalls  int
}

func (f *fakeProvider) CreateSession(ctx context.Context, req *payment.SessionRequest) (*payment.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.lastRequest = req
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if f.session == nil {
		return &payment.Session{ID: "cs_test_1", URL: "https://pay.example/cs_test_1"}, nil
	}
	return f.session, nil
}

func (f *fakeProvider) VerifyWebhook(payload []byte, sigHeader string) (*payment.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	if f.webhookErr != nil {
		return nil, f.webhookErr
	}
	return f.webhookEvent, nil
}

type testHarness struct {
	service  *Service
	carts    *fakeCartRepo
	orders   *fakeOrderRepo
	provider *fakeProvider
	store    *eventstore.MemoryEventStore
	bus      *bus.EventBus
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	carts := &fakeCartRepo{carts: map[string]*aggregate.Cart{
		"cart-1": {
			ID:       "cart-1",
			UserID:   "user-1",
			Currency: "eur",
			Items: []aggregate.CartItem{
				{ProductID: "prod-1", Name: "Linen Shirt", UnitAmount: 4500, Quantity: 1},
				{ProductID: "prod-2", Name: "Wool Socks", UnitAmount: 1499, Quantity: 1},
			},
		},
		"cart-empty": {ID: "cart-empty", UserID: "user-1", Currency: "eur"},
	}}
	orders := newFakeOrderRepo()
	provider := &fakeProvider{}
	store := eventstore.NewMemoryEventStore()
	eventBus := bus.NewEventBus(zap.NewNop())

	svc := NewService(
		address.NewValidator(),
		carts,
		orders,
		store,
		eventBus,
		provider,
		nil,
		Config{
			Currency: "eur",
			Retry: RetryPolicy{
				MaxAttempts: 3,
				BaseDelay:   time.Millisecond,
				Classify:    apperrors.IsRetryable,
			},
		},
		zap.NewNop(),
	)

	return &testHarness{
		service:  svc,
		carts:    carts,
		orders:   orders,
		provider: provider,
		store:    store,
		bus:      eventBus,
	}
}

func validRequest() *CreateSessionRequest {
	return &CreateSessionRequest{
		UserID: "user-1",
		CartID: "cart-1",
		ShippingAddress: &address.Address{
			Line1:      "123 Test Street",
			City:       "Paris",
			PostalCode: "75001",
			Country:    "FR",
		},
		ShippingMethod: "standard",
	}
}

func TestCreateCheckoutSessionHappyPath(t *testing.T) {
	h := newTestHarness(t)

	resp, err := h.service.CreateCheckoutSession(context.Background(), validRequest())
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.NotEmpty(t, resp.OrderID)
	assert.Equal(t, "https://pay.example/cs_test_1", resp.SessionURL)

	// The provider sees minor units in the shop currency, one line per item
	require.NotNil(t, h.provider.lastRequest)
	assert.Equal(t, "eur", h.provider.lastRequest.Currency)
	require.Len(t, h.provider.lastRequest.LineItems, 2)
	assert.Equal(t, int64(4500), h.provider.lastRequest.LineItems[0].UnitAmount)
	assert.Equal(t, int64(1499), h.provider.lastRequest.LineItems[1].UnitAmount)
	assert.Equal(t, resp.OrderID, h.provider.lastRequest.Metadata["order_id"])
	assert.Equal(t, "cart-1", h.provider.lastRequest.Metadata["cart_id"])

	order, err := h.orders.GetByID(context.Background(), resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, int64(5999), order.AmountTotal())
	assert.Equal(t, aggregate.OrderStatusUnpaid, order.Status())
	assert.Equal(t, "cs_test_1", order.SessionID())

	events, err := h.store.GetEvents(context.Background(), resp.OrderID, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.TypeCheckoutSessionCreated, events[0].EventType)
	assert.Equal(t, 1, events[0].Version)
}

func TestCreateCheckoutSessionRetriesTransientProviderFailures(t *testing.T) {
	h := newTestHarness(t)
	h.provider.createErrs = []error{
		apperrors.NewPaymentProviderError("rate limited", true),
		apperrors.NewPaymentProviderError("upstream 502", true),
	}

	resp, err := h.service.CreateCheckoutSession(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, 3, h.provider.createCalls)
	assert.NotEmpty(t, resp.SessionURL)
}

func TestCreateCheckoutSessionFailsAfterRetryExhaustion(t *testing.T) {
	h := newTestHarness(t)
	h.provider.createErrs = []error{
		apperrors.NewPaymentProviderError("down", true),
		apperrors.NewPaymentProviderError("down", true),
		apperrors.NewPaymentProviderError("down", true),
	}

	resp, err := h.service.CreateCheckoutSession(context.Background(), validRequest())
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, 3, h.provider.createCalls)
	assert.True(t, apperrors.HasCode(err, "PAYMENT_PROVIDER_ERROR"))

	// The order is marked failed and the failure is recorded in the log
	require.Len(t, h.orders.orders, 1)
	for _, order := range h.orders.orders {
		assert.Equal(t, aggregate.OrderStatusFailed, order.Status())

		events, storeErr := h.store.GetEvents(context.Background(), order.ID(), 0)
		require.NoError(t, storeErr)
		require.Len(t, events, 1)
		assert.Equal(t, event.TypeOrderPaymentFailed, events[0].EventType)
	}
}

func TestCreateCheckoutSessionDoesNotRetryDeclinedCards(t *testing.T) {
	h := newTestHarness(t)
	h.provider.createErrs = []error{apperrors.NewCardDeclinedError("card declined")}

	_, err := h.service.CreateCheckoutSession(context.Background(), validRequest())
	require.Error(t, err)
	assert.Equal(t, 1, h.provider.createCalls)
	assert.True(t, apperrors.HasCode(err, "CARD_DECLINED"))
}

func TestCreateCheckoutSessionRejectsEmptyCart(t *testing.T) {
	h := newTestHarness(t)
	req := validRequest()
	req.CartID = "cart-empty"

	_, err := h.service.CreateCheckoutSession(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "VALIDATION_ERROR"))
	assert.Equal(t, 0, h.provider.createCalls)
}

func TestCreateCheckoutSessionRejectsInvalidAddress(t *testing.T) {
	h := newTestHarness(t)
	req := validRequest()
	req.ShippingAddress.PostalCode = "not-a-code"

	_, err := h.service.CreateCheckoutSession(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "VALIDATION_ERROR"))
	assert.Equal(t, 0, h.provider.createCalls, "provider must not be called for invalid input")
}

func TestCreateCheckoutSessionRejectsUnknownCart(t *testing.T) {
	h := newTestHarness(t)
	req := validRequest()
	req.CartID = "cart-missing"

	_, err := h.service.CreateCheckoutSession(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "NOT_FOUND"))
}

func completedWebhook(orderID string) *payment.WebhookEvent {
	return &payment.WebhookEvent{
		ID:   "evt_1",
		Type: "checkout.session.completed",
		Session: &payment.CheckoutSessionData{
			ID:              "cs_test_1",
			PaymentStatus:   "paid",
			PaymentIntentID: "pi_test_1",
			AmountTotal:     5999,
			Currency:        "eur",
			Metadata:        map[string]string{"order_id": orderID},
		},
	}
}

func TestProcessWebhookMarksOrderPaid(t *testing.T) {
	h := newTestHarness(t)
	resp, err := h.service.CreateCheckoutSession(context.Background(), validRequest())
	require.NoError(t, err)

	h.provider.webhookEvent = completedWebhook(resp.OrderID)
	require.NoError(t, h.service.ProcessWebhook(context.Background(), []byte(`{}`), "sig"))

	order, err := h.orders.GetByID(context.Background(), resp.OrderID)
	require.NoError(t, err)
	assert.True(t, order.IsPaid())
	assert.Equal(t, "pi_test_1", order.PaymentIntentID())

	events, err := h.store.GetEvents(context.Background(), resp.OrderID, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, event.TypeCheckoutSessionCreated, events[0].EventType)
	assert.Equal(t, event.TypeOrderPaid, events[1].EventType)
	assert.Equal(t, 1, events[0].Version)
	assert.Equal(t, 2, events[1].Version)
}

func TestProcessWebhookDuplicateDeliveryIsNoOp(t *testing.T) {
	h := newTestHarness(t)
	resp, err := h.service.CreateCheckoutSession(context.Background(), validRequest())
	require.NoError(t, err)

	h.provider.webhookEvent = completedWebhook(resp.OrderID)
	require.NoError(t, h.service.ProcessWebhook(context.Background(), []byte(`{}`), "sig"))
	require.NoError(t, h.service.ProcessWebhook(context.Background(), []byte(`{}`), "sig"))

	assert.Equal(t, 1, h.orders.markPaidHits, "paid transition applies exactly once")

	events, err := h.store.GetEvents(context.Background(), resp.OrderID, 0)
	require.NoError(t, err)
	var paidEvents int
	for _, evt := range events {
		if evt.EventType == event.TypeOrderPaid {
			paidEvents++
		}
	}
	assert.Equal(t, 1, paidEvents, "duplicate delivery must not append a second paid event")
}

func TestProcessWebhookRejectsBadSignatureBeforeAnyWork(t *testing.T) {
	h := newTestHarness(t)
	h.provider.webhookErr = apperrors.NewSignatureError("signature mismatch")

	err := h.service.ProcessWebhook(context.Background(), []byte(`{}`), "bad-sig")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "SIGNATURE_ERROR"))
	assert.Empty(t, h.orders.orders, "no order state may be touched")
	assert.Equal(t, 0, h.orders.markPaidHits)
}

func TestProcessWebhookIgnoresUnrecognizedEventTypes(t *testing.T) {
	h := newTestHarness(t)
	h.provider.webhookEvent = &payment.WebhookEvent{ID: "evt_2", Type: "invoice.created"}

	require.NoError(t, h.service.ProcessWebhook(context.Background(), []byte(`{}`), "sig"))
	assert.Equal(t, 0, h.orders.markPaidHits)
}

func TestProcessWebhookLeavesUnpaidSessionsAlone(t *testing.T) {
	h := newTestHarness(t)
	resp, err := h.service.CreateCheckoutSession(context.Background(), validRequest())
	require.NoError(t, err)

	evt := completedWebhook(resp.OrderID)
	evt.Session.PaymentStatus = "unpaid"
	h.provider.webhookEvent = evt

	require.NoError(t, h.service.ProcessWebhook(context.Background(), []byte(`{}`), "sig"))

	order, err := h.orders.GetByID(context.Background(), resp.OrderID)
	require.NoError(t, err)
	assert.False(t, order.IsPaid())
}

func TestProcessWebhookRequiresOrderMetadata(t *testing.T) {
	h := newTestHarness(t)
	h.provider.webhookEvent = &payment.WebhookEvent{
		ID:      "evt_3",
		Type:    "checkout.session.completed",
		Session: &payment.CheckoutSessionData{ID: "cs_x", PaymentStatus: "paid"},
	}

	err := h.service.ProcessWebhook(context.Background(), []byte(`{}`), "sig")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "VALIDATION_ERROR"))
}

func expiredWebhook(orderID string) *payment.WebhookEvent {
	return &payment.WebhookEvent{
		ID:   "evt_exp_1",
		Type: "checkout.session.expired",
		Session: &payment.CheckoutSessionData{
			ID:            "cs_test_1",
			PaymentStatus: "unpaid",
			Metadata:      map[string]string{"order_id": orderID},
		},
	}
}

func TestProcessWebhookExpiredSessionMarksOrderFailed(t *testing.T) {
	h := newTestHarness(t)
	resp, err := h.service.CreateCheckoutSession(context.Background(), validRequest())
	require.NoError(t, err)

	h.provider.webhookEvent = expiredWebhook(resp.OrderID)
	require.NoError(t, h.service.ProcessWebhook(context.Background(), []byte(`{}`), "sig"))

	order, err := h.orders.GetByID(context.Background(), resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, aggregate.OrderStatusFailed, order.Status())

	events, err := h.store.GetEvents(context.Background(), resp.OrderID, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, event.TypeOrderPaymentFailed, events[1].EventType)

	var failed event.OrderPaymentFailed
	require.NoError(t, events[1].DecodeData(&failed))
	assert.Equal(t, "checkout session expired", failed.Reason)

	// A duplicate expiry is a no-op and appends nothing
	require.NoError(t, h.service.ProcessWebhook(context.Background(), []byte(`{}`), "sig"))
	events, err = h.store.GetEvents(context.Background(), resp.OrderID, 0)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestProcessWebhookExpiryAfterPaymentIsNoOp(t *testing.T) {
	h := newTestHarness(t)
	resp, err := h.service.CreateCheckoutSession(context.Background(), validRequest())
	require.NoError(t, err)

	h.provider.webhookEvent = completedWebhook(resp.OrderID)
	require.NoError(t, h.service.ProcessWebhook(context.Background(), []byte(`{}`), "sig"))

	h.provider.webhookEvent = expiredWebhook(resp.OrderID)
	require.NoError(t, h.service.ProcessWebhook(context.Background(), []byte(`{}`), "sig"))

	order, err := h.orders.GetByID(context.Background(), resp.OrderID)
	require.NoError(t, err)
	assert.True(t, order.IsPaid(), "a paid order never transitions to failed")
}

func TestProcessWebhookUnknownOrderIsNotFound(t *testing.T) {
	h := newTestHarness(t)
	h.provider.webhookEvent = completedWebhook("order-does-not-exist")

	err := h.service.ProcessWebhook(context.Background(), []byte(`{}`), "sig")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "NOT_FOUND"))
}
