package http

import (
	"encoding/json"
	"net/http"

	"boutique-backend/internal/application/checkout"
	apperrors "boutique-backend/pkg/errors"
	"boutique-backend/pkg/middleware"
	"boutique-backend/pkg/response"
)

// HTTPCheckoutController handles HTTP requests for checkout operations
type HTTPCheckoutController struct {
	checkoutService *checkout.Service
}

// NewHTTPCheckoutController creates a new HTTP checkout controller
func NewHTTPCheckoutController(checkoutService *checkout.Service) *HTTPCheckoutController {
	return &HTTPCheckoutController{checkoutService: checkoutService}
}

// CreateSession handles POST /api/checkout/sessions
func (c *HTTPCheckoutController) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		response.SendUnauthorized(w, r, "Authentication required")
		return
	}

	var req checkout.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.SendBadRequest(w, r, "Invalid request body")
		return
	}
	req.UserID = userID

	result, err := c.checkoutService.CreateCheckoutSession(r.Context(), &req)
	if err != nil {
		c.sendCheckoutError(w, r, err)
		return
	}

	response.SendCreated(w, r, result)
}

// sendCheckoutError surfaces actionable messages for user errors and a
// generic retry-later message for infrastructure failures
func (c *HTTPCheckoutController) sendCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	if appErr, ok := err.(*apperrors.ApplicationError); ok {
		switch appErr.Code {
		case "VALIDATION_ERROR", "NOT_FOUND", "CARD_DECLINED":
			response.SendApplicationError(w, r, appErr)
			return
		case "TIMEOUT_ERROR", "PAYMENT_PROVIDER_ERROR", "DATABASE_ERROR":
			response.SendError(w, r, http.StatusServiceUnavailable, appErr.Code,
				"Checkout is temporarily unavailable, please try again")
			return
		}
	}
	response.SendInternalError(w, r, "Internal server error")
}
