package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"boutique-backend/internal/domain/event"
	apperrors "boutique-backend/pkg/errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	eventsCollection  = "events"
	streamsCollection = "event_streams"
)

// MongoEventStore is the durable event store. Optimistic concurrency is an
// explicit compare-and-swap: the stream document's current_version is the
// precondition of every append, and the unique (aggregate_id, version)
// index rejects the loser of any remaining race. No in-process locks.
type MongoEventStore struct {
	client  *mongo.Client
	events  *mongo.Collection
	streams *mongo.Collection
}

// NewMongoEventStore creates a Mongo-backed event store
func NewMongoEventStore(client *mongo.Client, database *mongo.Database) *MongoEventStore {
	return &MongoEventStore{
		client:  client,
		events:  database.Collection(eventsCollection),
		streams: database.Collection(streamsCollection),
	}
}

// EnsureIndexes creates the indexes the store relies on. The unique
// (aggregate_id, version) index is the correctness anchor, not an
// optimization.
func (s *MongoEventStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.events.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "aggregate_id", Value: 1}, {Key: "version", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "event_type", Value: 1}, {Key: "occurred_at", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "occurred_at", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create event store indexes: %w", err)
	}
	return nil
}

// Append persists one event under the version check
func (s *MongoEventStore) Append(ctx context.Context, evt event.Event) error {
	session, err := s.client.StartSession()
	if err != nil {
		return apperrors.NewDatabaseError("failed to start session: " + err.Error())
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, s.appendOne(sc, evt)
	})
	return err
}

// AppendBatch appends events atomically inside one transaction
func (s *MongoEventStore) AppendBatch(ctx context.Context, events []event.Event) error {
	if len(events) == 0 {
		return nil
	}

	session, err := s.client.StartSession()
	if err != nil {
		return apperrors.NewDatabaseError("failed to start session: " + err.Error())
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		for _, evt := range events {
			if err := s.appendOne(sc, evt); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

func (s *MongoEventStore) appendOne(ctx context.Context, evt event.Event) error {
	checksum, err := ComputeChecksum(evt)
	if err != nil {
		return apperrors.NewInternalError("failed to compute event checksum: " + err.Error())
	}
	evt.Checksum = checksum
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	now := time.Now().UTC()
	if evt.Version == 1 {
		_, err = s.streams.InsertOne(ctx, StreamMetadata{
			AggregateID:    evt.AggregateID,
			AggregateType:  evt.AggregateType,
			CurrentVersion: 1,
			FirstEventID:   evt.EventID,
			LastEventID:    evt.EventID,
			EventCount:     1,
			UpdatedAt:      now,
		})
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.NewConcurrencyError(fmt.Sprintf(
				"version conflict for aggregate %s: stream already exists", evt.AggregateID))
		}
		if err != nil {
			return apperrors.NewDatabaseError("failed to create stream metadata: " + err.Error())
		}
	} else {
		// CAS on current_version: only one writer can move v-1 -> v
		result, err := s.streams.UpdateOne(ctx,
			bson.M{"_id": evt.AggregateID, "current_version": evt.Version - 1},
			bson.M{
				"$set": bson.M{
					"current_version": evt.Version,
					"last_event_id":   evt.EventID,
					"updated_at":      now,
				},
				"$inc": bson.M{"event_count": 1},
			})
		if err != nil {
			return apperrors.NewDatabaseError("failed to update stream metadata: " + err.Error())
		}
		if result.MatchedCount == 0 {
			return apperrors.NewConcurrencyError(fmt.Sprintf(
				"version conflict for aggregate %s: expected current version %d",
				evt.AggregateID, evt.Version-1))
		}
	}

	if _, err := s.events.InsertOne(ctx, evt); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.NewConcurrencyError(fmt.Sprintf(
				"version conflict for aggregate %s at version %d", evt.AggregateID, evt.Version))
		}
		return apperrors.NewDatabaseError("failed to insert event: " + err.Error())
	}
	return nil
}

// GetEvents returns an aggregate's events ordered by ascending version
func (s *MongoEventStore) GetEvents(ctx context.Context, aggregateID string, fromVersion int) ([]event.Event, error) {
	filter := bson.M{"aggregate_id": aggregateID}
	if fromVersion > 0 {
		filter["version"] = bson.M{"$gte": fromVersion}
	}

	cursor, err := s.events.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "version", Value: 1}}))
	if err != nil {
		return nil, apperrors.NewDatabaseError("failed to query events: " + err.Error())
	}
	return decodeEvents(ctx, cursor)
}

// GetEventsByType returns events of one type ordered by occurrence time
func (s *MongoEventStore) GetEventsByType(ctx context.Context, eventType string, fromDate time.Time) ([]event.Event, error) {
	filter := bson.M{"event_type": eventType}
	if !fromDate.IsZero() {
		filter["occurred_at"] = bson.M{"$gte": fromDate}
	}

	cursor, err := s.events.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "occurred_at", Value: 1}}))
	if err != nil {
		return nil, apperrors.NewDatabaseError("failed to query events by type: " + err.Error())
	}
	return decodeEvents(ctx, cursor)
}

// GetAllEvents returns events across all aggregates ordered by occurrence time
func (s *MongoEventStore) GetAllEvents(ctx context.Context, fromDate time.Time, limit int) ([]event.Event, error) {
	filter := bson.M{}
	if !fromDate.IsZero() {
		filter["occurred_at"] = bson.M{"$gte": fromDate}
	}

	opts := options.Find().SetSort(bson.D{{Key: "occurred_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.events.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperrors.NewDatabaseError("failed to query events: " + err.Error())
	}
	return decodeEvents(ctx, cursor)
}

// GetStreamMetadata returns stream info, or nil when the aggregate has no events
func (s *MongoEventStore) GetStreamMetadata(ctx context.Context, aggregateID string) (*StreamMetadata, error) {
	var meta StreamMetadata
	err := s.streams.FindOne(ctx, bson.M{"_id": aggregateID}).Decode(&meta)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("failed to load stream metadata: " + err.Error())
	}
	return &meta, nil
}

// CreateSnapshot upserts a compaction point for the aggregate
func (s *MongoEventStore) CreateSnapshot(ctx context.Context, aggregateID, aggregateType string, version int, data json.RawMessage) error {
	meta, err := s.GetStreamMetadata(ctx, aggregateID)
	if err != nil {
		return err
	}
	if meta == nil {
		return apperrors.NewNotFoundError("event stream")
	}
	if version < 1 || version > meta.CurrentVersion {
		return apperrors.NewValidationError(fmt.Sprintf(
			"snapshot version %d outside stream range 1..%d", version, meta.CurrentVersion))
	}

	_, err = s.streams.UpdateOne(ctx,
		bson.M{"_id": aggregateID},
		bson.M{"$set": bson.M{
			"aggregate_type": aggregateType,
			"snapshot": Snapshot{
				Version: version,
				Data:    data,
				TakenAt: time.Now().UTC(),
			},
			"updated_at": time.Now().UTC(),
		}})
	if err != nil {
		return apperrors.NewDatabaseError("failed to store snapshot: " + err.Error())
	}
	return nil
}

// VerifyEventIntegrity recomputes the checksum of a stored event
func (s *MongoEventStore) VerifyEventIntegrity(ctx context.Context, eventID string) (bool, error) {
	var evt event.Event
	err := s.events.FindOne(ctx, bson.M{"event_id": eventID}).Decode(&evt)
	if err == mongo.ErrNoDocuments {
		return false, apperrors.NewNotFoundError("event")
	}
	if err != nil {
		return false, apperrors.NewDatabaseError("failed to load event: " + err.Error())
	}

	checksum, err := ComputeChecksum(evt)
	if err != nil {
		return false, apperrors.NewInternalError("failed to compute event checksum: " + err.Error())
	}
	return checksum == evt.Checksum, nil
}

// GetStatistics returns counts over the whole store
func (s *MongoEventStore) GetStatistics(ctx context.Context) (*Statistics, error) {
	totalEvents, err := s.events.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, apperrors.NewDatabaseError("failed to count events: " + err.Error())
	}
	totalStreams, err := s.streams.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, apperrors.NewDatabaseError("failed to count streams: " + err.Error())
	}

	stats := &Statistics{
		TotalEvents:  int(totalEvents),
		TotalStreams: int(totalStreams),
		EventsByType: make(map[string]int),
	}

	cursor, err := s.events.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$event_type", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("failed to aggregate event types: " + err.Error())
	}
	var typeCounts []struct {
		EventType string `bson:"_id"`
		Count     int    `bson:"count"`
	}
	if err := cursor.All(ctx, &typeCounts); err != nil {
		return nil, apperrors.NewDatabaseError("failed to decode event type counts: " + err.Error())
	}
	for _, tc := range typeCounts {
		stats.EventsByType[tc.EventType] = tc.Count
	}

	if totalEvents > 0 {
		oldest, err := s.boundaryTimestamp(ctx, 1)
		if err != nil {
			return nil, err
		}
		newest, err := s.boundaryTimestamp(ctx, -1)
		if err != nil {
			return nil, err
		}
		stats.OldestEvent = oldest
		stats.NewestEvent = newest
	}
	return stats, nil
}

func (s *MongoEventStore) boundaryTimestamp(ctx context.Context, direction int) (*time.Time, error) {
	var evt event.Event
	err := s.events.FindOne(ctx, bson.M{},
		options.FindOne().SetSort(bson.D{{Key: "occurred_at", Value: direction}})).Decode(&evt)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("failed to load boundary event: " + err.Error())
	}
	t := evt.OccurredAt
	return &t, nil
}

func decodeEvents(ctx context.Context, cursor *mongo.Cursor) ([]event.Event, error) {
	var events []event.Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, apperrors.NewDatabaseError("failed to decode events: " + err.Error())
	}
	return events, nil
}
