package aggregate

import "time"

// CartItem is a product line inside a cart. UnitAmount is the unit price in
// minor units of the shop currency (5999 = 59.99 EUR).
type CartItem struct {
	ProductID  string `json:"product_id" bson:"product_id"`
	Name       string `json:"name" bson:"name"`
	UnitAmount int64  `json:"unit_amount" bson:"unit_amount"`
	Quantity   int64  `json:"quantity" bson:"quantity"`
}

// Cart is the authoritative cart for a user or anonymous session. The
// checkout flow treats a loaded cart as a point-in-time snapshot.
type Cart struct {
	ID        string     `json:"id" bson:"_id"`
	UserID    string     `json:"user_id" bson:"user_id"`
	Items     []CartItem `json:"items" bson:"items"`
	Currency  string     `json:"currency" bson:"currency"`
	UpdatedAt time.Time  `json:"updated_at" bson:"updated_at"`
}

// IsEmpty reports whether the cart has no purchasable items
func (c *Cart) IsEmpty() bool {
	for _, item := range c.Items {
		if item.Quantity > 0 {
			return false
		}
	}
	return true
}

// Total returns the cart total in minor units
func (c *Cart) Total() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.UnitAmount * item.Quantity
	}
	return total
}
