package eventstore

import (
	"context"
	"encoding/json"
	"time"

	"boutique-backend/internal/domain/event"
)

// Snapshot is a compaction point for a stream: replays can start from
// Version instead of 1.
type Snapshot struct {
	Version int             `json:"version" bson:"version"`
	Data    json.RawMessage `json:"data" bson:"data"`
	TakenAt time.Time       `json:"taken_at" bson:"taken_at"`
}

// StreamMetadata summarizes one aggregate's event stream. CurrentVersion
// always equals the version of the most recently appended event.
type StreamMetadata struct {
	AggregateID    string    `json:"aggregate_id" bson:"_id"`
	AggregateType  string    `json:"aggregate_type" bson:"aggregate_type"`
	CurrentVersion int       `json:"current_version" bson:"current_version"`
	FirstEventID   string    `json:"first_event_id" bson:"first_event_id"`
	LastEventID    string    `json:"last_event_id" bson:"last_event_id"`
	EventCount     int       `json:"event_count" bson:"event_count"`
	Snapshot       *Snapshot `json:"snapshot,omitempty" bson:"snapshot,omitempty"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at"`
}

// Statistics are aggregate counts over the whole store, for observability
type Statistics struct {
	TotalEvents  int            `json:"total_events"`
	TotalStreams int            `json:"total_streams"`
	EventsByType map[string]int `json:"events_by_type"`
	OldestEvent  *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent  *time.Time     `json:"newest_event,omitempty"`
}

// EventStore is the append-only store for domain events. Append enforces
// optimistic concurrency: an event's version must be exactly one past the
// aggregate's current version or the append is rejected with a
// CONCURRENCY_ERROR.
type EventStore interface {
	Append(ctx context.Context, evt event.Event) error

	// AppendBatch appends events atomically, grouped by aggregate and
	// preserving per-aggregate version ordering; all-or-nothing.
	AppendBatch(ctx context.Context, events []event.Event) error

	// GetEvents returns an aggregate's events in ascending version order,
	// starting from fromVersion (0 means from the beginning).
	GetEvents(ctx context.Context, aggregateID string, fromVersion int) ([]event.Event, error)

	// GetEventsByType returns events of one type ordered by occurrence
	// time; the zero time means no lower bound.
	GetEventsByType(ctx context.Context, eventType string, fromDate time.Time) ([]event.Event, error)

	// GetAllEvents returns events across all aggregates ordered by
	// occurrence time; limit <= 0 means no limit.
	GetAllEvents(ctx context.Context, fromDate time.Time, limit int) ([]event.Event, error)

	// GetStreamMetadata returns stream info, or nil when the aggregate
	// has no events.
	GetStreamMetadata(ctx context.Context, aggregateID string) (*StreamMetadata, error)

	// CreateSnapshot upserts a compaction point for the aggregate
	CreateSnapshot(ctx context.Context, aggregateID, aggregateType string, version int, data json.RawMessage) error

	// VerifyEventIntegrity recomputes the event's checksum and compares
	// it to the stored one.
	VerifyEventIntegrity(ctx context.Context, eventID string) (bool, error)

	GetStatistics(ctx context.Context) (*Statistics, error)
}
