package http

import (
	"net/http"
	"time"

	jwtutil "boutique-backend/pkg/jwt"
	"boutique-backend/pkg/middleware"

	"github.com/go-chi/chi/v5"
)

// RouterDeps collects everything the HTTP surface needs
type RouterDeps struct {
	Checkout   *HTTPCheckoutController
	Webhook    *HTTPWebhookController
	Admin      *HTTPAdminController
	JWTManager *jwtutil.JWTManager
	RoleGuard  *middleware.RoleGuard
}

// NewRouter builds the service's HTTP router
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RecoveryMiddleware)
	r.Use(middleware.LoggingMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"boutique-backend"}`))
	})

	// Webhooks authenticate by signature, not by bearer token
	r.Post("/api/webhooks/stripe", deps.Webhook.HandleStripeWebhook)

	r.Group(func(r chi.Router) {
		r.Use(middleware.TimeoutMiddleware(30 * time.Second))
		r.Use(middleware.JWTAuthMiddleware(deps.JWTManager))

		r.Post("/api/checkout/sessions", deps.Checkout.CreateSession)

		r.Group(func(r chi.Router) {
			r.Use(deps.RoleGuard.RequireAdmin)

			r.Get("/api/admin/events/statistics", deps.Admin.GetStatistics)
			r.Get("/api/admin/events/type/{eventType}", deps.Admin.GetEventsByType)
			r.Get("/api/admin/events/verify/{eventID}", deps.Admin.VerifyEventIntegrity)
			r.Get("/api/admin/events/{aggregateID}", deps.Admin.GetAggregateEvents)
		})
	})

	return r
}
