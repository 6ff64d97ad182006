package payment

// LineItem is one purchasable line in a hosted session request. UnitAmount
// is in minor units of the session currency.
type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int64
}

// SessionRequest describes the hosted checkout session to create
type SessionRequest struct {
	Currency   string
	LineItems  []LineItem
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// Session is the provider's hosted checkout session
type Session struct {
	ID  string
	URL string
}

// CheckoutSessionData is the session object carried by a webhook event
type CheckoutSessionData struct {
	ID              string
	PaymentStatus   string
	PaymentIntentID string
	AmountTotal     int64
	Currency        string
	CustomerEmail   string
	Metadata        map[string]string
}

// WebhookEvent is a verified inbound provider event
type WebhookEvent struct {
	ID      string
	Type    string
	Session *CheckoutSessionData
}
