package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "boutique-backend/pkg/errors"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/checkout/session"
	"github.com/stripe/stripe-go/v80/webhook"
)

// Config holds the configuration for the Stripe integration
type Config struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

// StripeService wraps the official Stripe SDK
type StripeService struct {
	config *Config
}

// NewStripeService creates a new Stripe service
func NewStripeService(config *Config) (*StripeService, error) {
	if config.SecretKey == "" {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	if config.WebhookSecret == "" {
		return nil, fmt.Errorf("STRIPE_WEBHOOK_SECRET is required")
	}

	stripe.Key = config.SecretKey
	return &StripeService{config: config}, nil
}

// CreateSession creates a hosted checkout session. Provider errors are
// classified into the application taxonomy so the caller's retry policy can
// tell transient failures from terminal ones.
func (s *StripeService) CreateSession(ctx context.Context, req *SessionRequest) (*Session, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.LineItems))
	for _, item := range req.LineItems {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(req.Currency),
				UnitAmount: stripe.Int64(item.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Params:     stripe.Params{Context: ctx},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(s.config.SuccessURL),
		CancelURL:  stripe.String(s.config.CancelURL),
		LineItems:  lineItems,
	}
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}

	sess, err := session.New(params)
	if err != nil {
		return nil, classifyError(err)
	}

	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

// VerifyWebhook checks the event signature against the shared secret and
// parses the envelope. Invalid signatures are rejected before any business
// logic runs.
func (s *StripeService) VerifyWebhook(payload []byte, sigHeader string) (*WebhookEvent, error) {
	stripeEvent, err := webhook.ConstructEvent(payload, sigHeader, s.config.WebhookSecret)
	if err != nil {
		return nil, apperrors.NewSignatureError("webhook signature verification failed")
	}

	evt := &WebhookEvent{
		ID:   stripeEvent.ID,
		Type: string(stripeEvent.Type),
	}

	if stripeEvent.Type == "checkout.session.completed" || stripeEvent.Type == "checkout.session.expired" {
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(stripeEvent.Data.Raw, &sess); err != nil {
			return nil, apperrors.NewValidationError("malformed checkout session payload")
		}

		data := &CheckoutSessionData{
			ID:            sess.ID,
			PaymentStatus: string(sess.PaymentStatus),
			AmountTotal:   sess.AmountTotal,
			Currency:      string(sess.Currency),
			Metadata:      sess.Metadata,
		}
		if sess.PaymentIntent != nil {
			data.PaymentIntentID = sess.PaymentIntent.ID
		}
		if sess.CustomerDetails != nil {
			data.CustomerEmail = sess.CustomerDetails.Email
		}
		evt.Session = data
	}

	return evt, nil
}

// classifyError maps SDK errors onto the application taxonomy
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTimeoutError("payment provider call timed out")
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch {
		case stripeErr.Type == stripe.ErrorTypeCard:
			return apperrors.NewCardDeclinedError("card was declined")
		case stripeErr.HTTPStatusCode == 429:
			return apperrors.NewPaymentProviderError("payment provider rate limited the request", true)
		case stripeErr.HTTPStatusCode >= 500:
			return apperrors.NewPaymentProviderError("payment provider is unavailable", true)
		case stripeErr.Type == stripe.ErrorTypeInvalidRequest:
			return apperrors.NewPaymentProviderError("payment provider rejected the request", false)
		default:
			return apperrors.NewPaymentProviderError(stripeErr.Msg, false)
		}
	}

	// Transport-level failure: worth another attempt
	return apperrors.NewPaymentProviderError("payment provider request failed: "+err.Error(), true)
}
