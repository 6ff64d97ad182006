package http

import (
	"net/http"
	"strconv"
	"time"

	"boutique-backend/internal/infrastructure/bus"
	"boutique-backend/internal/infrastructure/eventstore"
	"boutique-backend/pkg/response"

	"github.com/go-chi/chi/v5"
)

// HTTPAdminController exposes event-store observability to admins
type HTTPAdminController struct {
	store    eventstore.EventStore
	eventBus *bus.EventBus
}

// NewHTTPAdminController creates a new admin controller
func NewHTTPAdminController(store eventstore.EventStore, eventBus *bus.EventBus) *HTTPAdminController {
	return &HTTPAdminController{store: store, eventBus: eventBus}
}

// GetStatistics handles GET /api/admin/events/statistics
func (c *HTTPAdminController) GetStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := c.store.GetStatistics(r.Context())
	if err != nil {
		response.SendApplicationError(w, r, err)
		return
	}

	response.SendSuccess(w, r, map[string]interface{}{
		"store": stats,
		"bus":   c.eventBus.Statistics(),
	})
}

// GetAggregateEvents handles GET /api/admin/events/{aggregateID}. The
// from_version query parameter starts the read partway through the stream.
func (c *HTTPAdminController) GetAggregateEvents(w http.ResponseWriter, r *http.Request) {
	aggregateID := chi.URLParam(r, "aggregateID")
	if aggregateID == "" {
		response.SendBadRequest(w, r, "aggregateID is required")
		return
	}

	fromVersion := 0
	if raw := r.URL.Query().Get("from_version"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.SendBadRequest(w, r, "from_version must be a non-negative integer")
			return
		}
		fromVersion = parsed
	}

	events, err := c.store.GetEvents(r.Context(), aggregateID, fromVersion)
	if err != nil {
		response.SendApplicationError(w, r, err)
		return
	}

	meta, err := c.store.GetStreamMetadata(r.Context(), aggregateID)
	if err != nil {
		response.SendApplicationError(w, r, err)
		return
	}
	if meta == nil {
		response.SendNotFound(w, r, "No events for aggregate")
		return
	}

	response.SendSuccess(w, r, map[string]interface{}{
		"metadata": meta,
		"events":   events,
	})
}

// GetEventsByType handles GET /api/admin/events/type/{eventType}
func (c *HTTPAdminController) GetEventsByType(w http.ResponseWriter, r *http.Request) {
	eventType := chi.URLParam(r, "eventType")

	var fromDate time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.SendBadRequest(w, r, "from must be an RFC3339 timestamp")
			return
		}
		fromDate = parsed
	}

	events, err := c.store.GetEventsByType(r.Context(), eventType, fromDate)
	if err != nil {
		response.SendApplicationError(w, r, err)
		return
	}
	response.SendSuccess(w, r, events)
}

// VerifyEventIntegrity handles GET /api/admin/events/verify/{eventID}
func (c *HTTPAdminController) VerifyEventIntegrity(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	valid, err := c.store.VerifyEventIntegrity(r.Context(), eventID)
	if err != nil {
		response.SendApplicationError(w, r, err)
		return
	}
	response.SendSuccess(w, r, map[string]bool{"valid": valid})
}
