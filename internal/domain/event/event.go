package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is an immutable fact about something that happened to an aggregate.
// Versions are contiguous and strictly increasing per aggregate, starting
// at 1; the event store rejects appends that would break that.
type Event struct {
	EventID       string          `json:"event_id" bson:"event_id"`
	EventType     string          `json:"event_type" bson:"event_type"`
	AggregateID   string          `json:"aggregate_id" bson:"aggregate_id"`
	AggregateType string          `json:"aggregate_type" bson:"aggregate_type"`
	EventData     json.RawMessage `json:"event_data" bson:"event_data"`
	Version       int             `json:"version" bson:"version"`
	OccurredAt    time.Time       `json:"occurred_at" bson:"occurred_at"`
	UserID        string          `json:"user_id,omitempty" bson:"user_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	CausationID   string          `json:"causation_id,omitempty" bson:"causation_id,omitempty"`
	Checksum      string          `json:"checksum,omitempty" bson:"checksum,omitempty"`
}

// New builds an event with a fresh id and timestamp, marshalling data as the
// opaque payload.
func New(eventType, aggregateID, aggregateType string, data interface{}, version int) (Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal event data: %w", err)
	}

	return Event{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventData:     payload,
		Version:       version,
		OccurredAt:    time.Now().UTC(),
	}, nil
}

// WithUser returns a copy of the event attributed to the given user
func (e Event) WithUser(userID string) Event {
	e.UserID = userID
	return e
}

// WithCorrelation returns a copy carrying correlation/causation ids
func (e Event) WithCorrelation(correlationID, causationID string) Event {
	e.CorrelationID = correlationID
	e.CausationID = causationID
	return e
}

// DecodeData unmarshals the opaque payload into v
func (e Event) DecodeData(v interface{}) error {
	return json.Unmarshal(e.EventData, v)
}
