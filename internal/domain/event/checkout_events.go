package event

import "time"

// Aggregate types
const (
	AggregateTypeOrder = "order"
)

// Event types recorded by the checkout subsystem
const (
	TypeCheckoutSessionCreated   = "checkout.session.created"
	TypeCheckoutSessionCompleted = "checkout.session.completed"
	TypeCheckoutSessionExpired   = "checkout.session.expired"
	TypeOrderPaid                = "order.paid"
	TypeOrderPaymentFailed       = "order.payment_failed"
)

// CheckoutSessionCreated is recorded when a hosted payment session has been
// created for an order.
type CheckoutSessionCreated struct {
	OrderID        string    `json:"order_id"`
	UserID         string    `json:"user_id"`
	CartID         string    `json:"cart_id"`
	SessionID      string    `json:"session_id"`
	SessionURL     string    `json:"session_url"`
	AmountTotal    int64     `json:"amount_total"`
	Currency       string    `json:"currency"`
	ShippingMethod string    `json:"shipping_method"`
	Timestamp      time.Time `json:"timestamp"`
}

// OrderPaid is recorded when a webhook confirms payment for an order.
// SessionAmount is the amount the provider reported at completion time so
// drift against the order total can be detected later.
type OrderPaid struct {
	OrderID         string    `json:"order_id"`
	SessionID       string    `json:"session_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	SessionAmount   int64     `json:"session_amount"`
	Currency        string    `json:"currency"`
	Timestamp       time.Time `json:"timestamp"`
}

// OrderPaymentFailed is recorded when the provider reports a failed or
// expired payment for an order.
type OrderPaymentFailed struct {
	OrderID   string    `json:"order_id"`
	SessionID string    `json:"session_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}
