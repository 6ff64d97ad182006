package repository

import (
	"context"

	"boutique-backend/internal/domain/aggregate"
)

// OrderRepository provides access to order aggregates
type OrderRepository interface {
	// GetByID loads an order, returning a NOT_FOUND ApplicationError when
	// no order exists with the given id
	GetByID(ctx context.Context, id string) (*aggregate.Order, error)

	// Save persists the order state
	Save(ctx context.Context, order *aggregate.Order) error

	// MarkPaid applies the unpaid -> paid transition conditionally. It
	// returns false when the order was already paid (duplicate webhook
	// delivery), without modifying stored state.
	MarkPaid(ctx context.Context, orderID, paymentIntentID string) (bool, error)
}
