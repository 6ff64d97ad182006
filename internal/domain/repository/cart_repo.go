package repository

import (
	"context"

	"boutique-backend/internal/domain/aggregate"
)

// CartRepository provides read access to cart aggregates
type CartRepository interface {
	// GetCartWithItems loads a cart with its items as a point-in-time
	// snapshot. Returns a NOT_FOUND ApplicationError when the cart does
	// not exist and a DATABASE_ERROR on store failures.
	GetCartWithItems(ctx context.Context, cartID string) (*aggregate.Cart, error)
}
