package checkout

import (
	"context"
	"strings"
	"time"

	"boutique-backend/internal/application/address"
	"boutique-backend/internal/domain/aggregate"
	"boutique-backend/internal/domain/event"
	"boutique-backend/internal/domain/repository"
	"boutique-backend/internal/infrastructure/bus"
	"boutique-backend/internal/infrastructure/eventstore"
	"boutique-backend/internal/infrastructure/payment"
	apperrors "boutique-backend/pkg/errors"

	"go.uber.org/zap"
)

// PaymentProvider is the outbound payment boundary the orchestrator needs
type PaymentProvider interface {
	CreateSession(ctx context.Context, req *payment.SessionRequest) (*payment.Session, error)
	VerifyWebhook(payload []byte, sigHeader string) (*payment.WebhookEvent, error)
}

// SecurityAuditor records security-relevant events
type SecurityAuditor interface {
	RecordSecurityEvent(ctx context.Context, kind string, fields map[string]string)
}

// Config tunes the orchestrator
type Config struct {
	// Currency is the shop's operating currency, lower-case ISO code
	Currency string
	// ProviderTimeout bounds the whole provider call including retries
	ProviderTimeout time.Duration
	Retry           RetryPolicy
}

// Service orchestrates checkout: address validation, cart read, provider
// session creation under a bounded retry policy, and webhook
// reconciliation into order state plus the event store.
type Service struct {
	addresses *address.Validator
	carts     repository.CartRepository
	orders    repository.OrderRepository
	store     eventstore.EventStore
	events    *bus.EventBus
	provider  PaymentProvider
	auditor   SecurityAuditor
	cfg       Config
	logger    *zap.Logger
}

// NewService creates a checkout service. auditor may be nil.
func NewService(
	addresses *address.Validator,
	carts repository.CartRepository,
	orders repository.OrderRepository,
	store eventstore.EventStore,
	events *bus.EventBus,
	provider PaymentProvider,
	auditor SecurityAuditor,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "eur"
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 15 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.Retry.Classify == nil {
		cfg.Retry.Classify = apperrors.IsRetryable
	}
	return &Service{
		addresses: addresses,
		carts:     carts,
		orders:    orders,
		store:     store,
		events:    events,
		provider:  provider,
		auditor:   auditor,
		cfg:       cfg,
		logger:    logger,
	}
}

// CreateSessionRequest is one checkout attempt
type CreateSessionRequest struct {
	UserID          string           `json:"-"`
	CartID          string           `json:"cart_id"`
	ShippingAddress *address.Address `json:"shipping_address"`
	BillingAddress  *address.Address `json:"billing_address,omitempty"`
	ShippingMethod  string           `json:"shipping_method"`
}

// CreateSessionResponse carries the hosted session the client redirects to
type CreateSessionResponse struct {
	OrderID    string `json:"order_id"`
	SessionURL string `json:"session_url"`
}

// CreateCheckoutSession validates addresses, loads the cart, creates an
// order and a hosted payment session for it. Transient provider errors are
// retried with exponential backoff; declined cards and validation failures
// are terminal.
func (s *Service) CreateCheckoutSession(ctx context.Context, req *CreateSessionRequest) (*CreateSessionResponse, error) {
	if req.CartID == "" {
		return nil, apperrors.NewValidationError("cart_id is required")
	}

	addrs, err := s.addresses.ValidateAndProcessAddresses(req.ShippingAddress, req.BillingAddress)
	if err != nil {
		return nil, err
	}

	cart, err := s.carts.GetCartWithItems(ctx, req.CartID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, apperrors.NewValidationError("cart is empty")
	}

	order, err := aggregate.NewOrder(req.UserID, cart.ID, cart.Total(), s.cfg.Currency, req.ShippingMethod)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if err := s.orders.Save(ctx, order); err != nil {
		return nil, err
	}

	sessionReq := &payment.SessionRequest{
		Currency:  strings.ToLower(s.cfg.Currency),
		LineItems: buildLineItems(cart),
		Metadata: map[string]string{
			"order_id":        order.ID(),
			"user_id":         req.UserID,
			"cart_id":         cart.ID,
			"shipping_method": req.ShippingMethod,
		},
	}

	providerCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	var session *payment.Session
	err = s.cfg.Retry.Do(providerCtx, func(ctx context.Context) error {
		var createErr error
		session, createErr = s.provider.CreateSession(ctx, sessionReq)
		return createErr
	})
	if err != nil {
		s.logger.Error("payment session creation failed",
			zap.String("operation", "create_checkout_session"),
			zap.String("order_id", order.ID()),
			zap.String("cart_id", cart.ID),
			zap.Error(err),
		)
		s.recordPaymentFailure(ctx, order, err)
		return nil, err
	}

	if err := order.AttachSession(session.ID, session.URL); err != nil {
		return nil, apperrors.NewInternalError(err.Error())
	}
	if err := s.orders.Save(ctx, order); err != nil {
		return nil, err
	}

	if err := s.appendAndPublish(ctx, event.TypeCheckoutSessionCreated, order.ID(), req.UserID,
		event.CheckoutSessionCreated{
			OrderID:        order.ID(),
			UserID:         req.UserID,
			CartID:         cart.ID,
			SessionID:      session.ID,
			SessionURL:     session.URL,
			AmountTotal:    order.AmountTotal(),
			Currency:       s.cfg.Currency,
			ShippingMethod: req.ShippingMethod,
			Timestamp:      time.Now().UTC(),
		}); err != nil {
		// The session exists; losing the audit event must not fail checkout
		s.logger.Error("failed to record checkout session event",
			zap.String("order_id", order.ID()),
			zap.Error(err),
		)
	}

	s.logger.Info("checkout session created",
		zap.String("operation", "create_checkout_session"),
		zap.String("order_id", order.ID()),
		zap.String("session_id", session.ID),
		zap.Int64("amount_total", order.AmountTotal()),
		zap.String("shipping_country", addrs.Shipping.Country),
	)

	return &CreateSessionResponse{
		OrderID:    order.ID(),
		SessionURL: session.URL,
	}, nil
}

// ProcessWebhook verifies the event signature, then reconciles recognized
// event types into order state. Duplicate deliveries for an already-paid
// order are successful no-ops.
func (s *Service) ProcessWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	webhookEvent, err := s.provider.VerifyWebhook(payload, sigHeader)
	if err != nil {
		s.logger.Warn("webhook rejected",
			zap.String("operation", "process_webhook"),
			zap.Error(err),
		)
		if s.auditor != nil && apperrors.HasCode(err, "SIGNATURE_ERROR") {
			s.auditor.RecordSecurityEvent(ctx, "webhook_signature_failed", map[string]string{
				"reason": err.Error(),
			})
		}
		return err
	}

	switch webhookEvent.Type {
	case event.TypeCheckoutSessionCompleted:
		return s.reconcileCompletedSession(ctx, webhookEvent)
	case event.TypeCheckoutSessionExpired:
		return s.reconcileExpiredSession(ctx, webhookEvent)
	default:
		s.logger.Info("ignoring webhook event type",
			zap.String("event_type", webhookEvent.Type),
			zap.String("event_id", webhookEvent.ID),
		)
		return nil
	}
}

func (s *Service) reconcileCompletedSession(ctx context.Context, webhookEvent *payment.WebhookEvent) error {
	sess := webhookEvent.Session
	if sess == nil {
		return apperrors.NewValidationError("webhook event is missing session data")
	}
	orderID := sess.Metadata["order_id"]
	if orderID == "" {
		return apperrors.NewValidationError("webhook session is missing order_id metadata")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.IsPaid() {
		s.logger.Info("duplicate webhook for paid order, skipping",
			zap.String("operation", "process_webhook"),
			zap.String("order_id", orderID),
			zap.String("session_id", sess.ID),
		)
		return nil
	}

	if sess.PaymentStatus != "paid" && sess.PaymentStatus != "no_payment_required" {
		s.logger.Info("session completed without payment, leaving order unpaid",
			zap.String("order_id", orderID),
			zap.String("payment_status", sess.PaymentStatus),
		)
		return nil
	}

	applied, err := s.orders.MarkPaid(ctx, orderID, sess.PaymentIntentID)
	if err != nil {
		return err
	}
	if !applied {
		// Lost the race against a concurrent delivery; state is already correct
		return nil
	}

	if err := s.appendAndPublish(ctx, event.TypeOrderPaid, orderID, order.UserID(),
		event.OrderPaid{
			OrderID:         orderID,
			SessionID:       sess.ID,
			PaymentIntentID: sess.PaymentIntentID,
			SessionAmount:   sess.AmountTotal,
			Currency:        sess.Currency,
			Timestamp:       time.Now().UTC(),
		}); err != nil {
		s.logger.Error("failed to record order paid event",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
	}

	s.logger.Info("order reconciled as paid",
		zap.String("operation", "process_webhook"),
		zap.String("order_id", orderID),
		zap.String("payment_intent_id", sess.PaymentIntentID),
	)
	return nil
}

// reconcileExpiredSession marks the order failed when its hosted session
// expired unpaid. An expiry delivered after payment, or a duplicate expiry,
// is a successful no-op.
func (s *Service) reconcileExpiredSession(ctx context.Context, webhookEvent *payment.WebhookEvent) error {
	sess := webhookEvent.Session
	if sess == nil {
		return apperrors.NewValidationError("webhook event is missing session data")
	}
	orderID := sess.Metadata["order_id"]
	if orderID == "" {
		return apperrors.NewValidationError("webhook session is missing order_id metadata")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status() != aggregate.OrderStatusUnpaid {
		s.logger.Info("expiry for settled order, skipping",
			zap.String("operation", "process_webhook"),
			zap.String("order_id", orderID),
			zap.String("order_status", string(order.Status())),
		)
		return nil
	}

	if err := order.MarkFailed(); err != nil {
		return nil
	}
	if err := s.orders.Save(ctx, order); err != nil {
		return err
	}

	if err := s.appendAndPublish(ctx, event.TypeOrderPaymentFailed, orderID, order.UserID(),
		event.OrderPaymentFailed{
			OrderID:   orderID,
			SessionID: sess.ID,
			Reason:    "checkout session expired",
			Timestamp: time.Now().UTC(),
		}); err != nil {
		s.logger.Error("failed to record payment failure event",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
	}

	s.logger.Info("order reconciled as failed after session expiry",
		zap.String("operation", "process_webhook"),
		zap.String("order_id", orderID),
		zap.String("session_id", sess.ID),
	)
	return nil
}

func (s *Service) recordPaymentFailure(ctx context.Context, order *aggregate.Order, cause error) {
	if err := order.MarkFailed(); err != nil {
		return
	}
	if err := s.orders.Save(ctx, order); err != nil {
		s.logger.Error("failed to persist failed order",
			zap.String("order_id", order.ID()),
			zap.Error(err),
		)
	}
	if err := s.appendAndPublish(ctx, event.TypeOrderPaymentFailed, order.ID(), order.UserID(),
		event.OrderPaymentFailed{
			OrderID:   order.ID(),
			SessionID: order.SessionID(),
			Reason:    cause.Error(),
			Timestamp: time.Now().UTC(),
		}); err != nil {
		s.logger.Error("failed to record payment failure event",
			zap.String("order_id", order.ID()),
			zap.Error(err),
		)
	}
}

func (s *Service) appendAndPublish(ctx context.Context, eventType, aggregateID, userID string, data interface{}) error {
	version, err := s.nextVersion(ctx, aggregateID)
	if err != nil {
		return err
	}

	evt, err := event.New(eventType, aggregateID, event.AggregateTypeOrder, data, version)
	if err != nil {
		return err
	}
	evt = evt.WithUser(userID)

	if err := s.store.Append(ctx, evt); err != nil {
		return err
	}
	return s.events.Publish(ctx, evt)
}

func (s *Service) nextVersion(ctx context.Context, aggregateID string) (int, error) {
	meta, err := s.store.GetStreamMetadata(ctx, aggregateID)
	if err != nil {
		return 0, err
	}
	if meta == nil {
		return 1, nil
	}
	return meta.CurrentVersion + 1, nil
}

func buildLineItems(cart *aggregate.Cart) []payment.LineItem {
	items := make([]payment.LineItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		if item.Quantity <= 0 {
			continue
		}
		items = append(items, payment.LineItem{
			Name:       item.Name,
			UnitAmount: item.UnitAmount,
			Quantity:   item.Quantity,
		})
	}
	return items
}
