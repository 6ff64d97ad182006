package http

import (
	"io"
	"net/http"

	"boutique-backend/internal/application/checkout"
	apperrors "boutique-backend/pkg/errors"
	"boutique-backend/pkg/response"
)

// Stripe sends at most 64KB of payload
const maxWebhookBodyBytes = 65536

// HTTPWebhookController receives payment-provider webhook deliveries
type HTTPWebhookController struct {
	checkoutService *checkout.Service
}

// NewHTTPWebhookController creates a new webhook controller
func NewHTTPWebhookController(checkoutService *checkout.Service) *HTTPWebhookController {
	return &HTTPWebhookController{checkoutService: checkoutService}
}

// HandleStripeWebhook handles POST /api/webhooks/stripe. A non-2xx status
// tells the provider to redeliver, so infrastructure failures return 500
// and leave retrying to the sender.
func (c *HTTPWebhookController) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		response.SendBadRequest(w, r, "Unable to read request body")
		return
	}

	err = c.checkoutService.ProcessWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if appErr, ok := err.(*apperrors.ApplicationError); ok {
			switch appErr.Code {
			case "SIGNATURE_ERROR", "VALIDATION_ERROR":
				response.SendApplicationError(w, r, appErr)
				return
			case "NOT_FOUND":
				// Nothing to reconcile; redelivery will not help
				response.SendApplicationError(w, r, appErr)
				return
			}
		}
		response.SendInternalError(w, r, "Webhook processing failed")
		return
	}

	response.SendSuccess(w, r, map[string]string{"status": "received"})
}
