package aggregate

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OrderStatus represents the payment status of an order
type OrderStatus string

const (
	OrderStatusUnpaid OrderStatus = "UNPAID"
	OrderStatusPaid   OrderStatus = "PAID"
	OrderStatusFailed OrderStatus = "FAILED"
)

// Order represents an order aggregate root. Its only transition of concern
// here is UNPAID -> PAID, applied exactly once per payment intent.
type Order struct {
	id              string
	userID          string
	cartID          string
	amountTotal     int64
	currency        string
	shippingMethod  string
	status          OrderStatus
	sessionID       string
	sessionURL      string
	paymentIntentID string
	version         int
	createdAt       time.Time
	updatedAt       time.Time
}

// NewOrder creates a new unpaid order for a checkout attempt
func NewOrder(userID, cartID string, amountTotal int64, currency, shippingMethod string) (*Order, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}
	if cartID == "" {
		return nil, fmt.Errorf("cartID cannot be empty")
	}
	if amountTotal <= 0 {
		return nil, fmt.Errorf("amount must be greater than 0")
	}
	if currency == "" {
		return nil, fmt.Errorf("currency cannot be empty")
	}

	now := time.Now().UTC()
	return &Order{
		id:             uuid.New().String(),
		userID:         userID,
		cartID:         cartID,
		amountTotal:    amountTotal,
		currency:       currency,
		shippingMethod: shippingMethod,
		status:         OrderStatusUnpaid,
		version:        1,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// RehydrateOrder rebuilds an order from persisted state
func RehydrateOrder(id, userID, cartID string, amountTotal int64, currency, shippingMethod string,
	status OrderStatus, sessionID, sessionURL, paymentIntentID string, version int,
	createdAt, updatedAt time.Time) *Order {
	return &Order{
		id:              id,
		userID:          userID,
		cartID:          cartID,
		amountTotal:     amountTotal,
		currency:        currency,
		shippingMethod:  shippingMethod,
		status:          status,
		sessionID:       sessionID,
		sessionURL:      sessionURL,
		paymentIntentID: paymentIntentID,
		version:         version,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}
}

// AttachSession records the provider session created for this order
func (o *Order) AttachSession(sessionID, sessionURL string) error {
	if o.status != OrderStatusUnpaid {
		return fmt.Errorf("cannot attach session to order with status %s", o.status)
	}
	o.sessionID = sessionID
	o.sessionURL = sessionURL
	o.version++
	o.updatedAt = time.Now().UTC()
	return nil
}

// MarkPaid transitions the order to PAID. The transition is terminal; a
// second call for an already-paid order is an error the caller treats as a
// duplicate delivery.
func (o *Order) MarkPaid(paymentIntentID string) error {
	if o.status == OrderStatusPaid {
		return fmt.Errorf("order %s is already paid", o.id)
	}
	if o.status != OrderStatusUnpaid {
		return fmt.Errorf("cannot mark order as paid with status %s", o.status)
	}
	o.status = OrderStatusPaid
	o.paymentIntentID = paymentIntentID
	o.version++
	o.updatedAt = time.Now().UTC()
	return nil
}

// MarkFailed records a failed payment attempt
func (o *Order) MarkFailed() error {
	if o.status == OrderStatusPaid {
		return fmt.Errorf("cannot fail a paid order")
	}
	o.status = OrderStatusFailed
	o.version++
	o.updatedAt = time.Now().UTC()
	return nil
}

// IsPaid reports whether the order has reached the terminal paid state
func (o *Order) IsPaid() bool {
	return o.status == OrderStatusPaid
}

func (o *Order) ID() string               { return o.id }
func (o *Order) UserID() string           { return o.userID }
func (o *Order) CartID() string           { return o.cartID }
func (o *Order) AmountTotal() int64       { return o.amountTotal }
func (o *Order) Currency() string         { return o.currency }
func (o *Order) ShippingMethod() string   { return o.shippingMethod }
func (o *Order) Status() OrderStatus      { return o.status }
func (o *Order) SessionID() string        { return o.sessionID }
func (o *Order) SessionURL() string       { return o.sessionURL }
func (o *Order) PaymentIntentID() string  { return o.paymentIntentID }
func (o *Order) Version() int             { return o.version }
func (o *Order) CreatedAt() time.Time     { return o.createdAt }
func (o *Order) UpdatedAt() time.Time     { return o.updatedAt }
