package eventstore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"boutique-backend/internal/domain/event"
	apperrors "boutique-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeEvent(t *testing.T, aggregateID string, version int, eventType string) event.Event {
	t.Helper()
	evt, err := event.New(eventType, aggregateID, event.AggregateTypeOrder,
		map[string]string{"order_id": aggregateID}, version)
	require.NoError(t, err)
	return evt
}

// corrupt overwrites a stored event's payload without updating its checksum
func (s *MemoryEventStore) corrupt(eventID string, data json.RawMessage) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	evt, ok := s.byID[eventID]
	if !ok {
		return false
	}
	evt.EventData = data
	s.byID[eventID] = evt
	for i, stored := range s.streams[evt.AggregateID] {
		if stored.EventID == eventID {
			s.streams[evt.AggregateID][i] = evt
		}
	}
	return true
}

func TestAppendEnforcesContiguousVersions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEventStore()

	require.NoError(t, store.Append(ctx, makeEvent(t, "agg-1", 1, event.TypeCheckoutSessionCreated)))
	require.NoError(t, store.Append(ctx, makeEvent(t, "agg-1", 2, event.TypeOrderPaid)))

	// Version gap
	err := store.Append(ctx, makeEvent(t, "agg-1", 4, event.TypeOrderPaid))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "CONCURRENCY_ERROR"))

	// Stale version (concurrent writer lost)
	err = store.Append(ctx, makeEvent(t, "agg-1", 2, event.TypeOrderPaid))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "CONCURRENCY_ERROR"))

	// First event of a stream must be version 1
	err = store.Append(ctx, makeEvent(t, "agg-2", 3, event.TypeOrderPaid))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "CONCURRENCY_ERROR"))
}

func TestGetEventsReturnsAscendingVersions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEventStore()

	for v := 1; v <= 3; v++ {
		require.NoError(t, store.Append(ctx, makeEvent(t, "agg-1", v, event.TypeOrderPaid)))
	}

	events, err := store.GetEvents(ctx, "agg-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, evt := range events {
		assert.Equal(t, i+1, evt.Version)
	}

	fromSecond, err := store.GetEvents(ctx, "agg-1", 2)
	require.NoError(t, err)
	require.Len(t, fromSecond, 2)
	assert.Equal(t, 2, fromSecond[0].Version)
	assert.Equal(t, 3, fromSecond[1].Version)
}

func TestAppendBatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEventStore()

	require.NoError(t, store.Append(ctx, makeEvent(t, "agg-1", 1, event.TypeCheckoutSessionCreated)))

	// Batch with one wrong version rejects the whole batch
	batch := []event.Event{
		makeEvent(t, "agg-1", 2, event.TypeOrderPaid),
		makeEvent(t, "agg-2", 1, event.TypeCheckoutSessionCreated),
		makeEvent(t, "agg-2", 3, event.TypeOrderPaid),
	}
	err := store.AppendBatch(ctx, batch)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "CONCURRENCY_ERROR"))

	// No partial set became visible
	events, err := store.GetEvents(ctx, "agg-1", 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
	events, err = store.GetEvents(ctx, "agg-2", 0)
	require.NoError(t, err)
	assert.Empty(t, events)

	// A valid batch spanning two aggregates lands entirely
	valid := []event.Event{
		makeEvent(t, "agg-1", 2, event.TypeOrderPaid),
		makeEvent(t, "agg-2", 1, event.TypeCheckoutSessionCreated),
		makeEvent(t, "agg-2", 2, event.TypeOrderPaid),
	}
	require.NoError(t, store.AppendBatch(ctx, valid))

	meta, err := store.GetStreamMetadata(ctx, "agg-2")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, 2, meta.CurrentVersion)
	assert.Equal(t, 2, meta.EventCount)
}

func TestAppendBatchRejectsUnmarshalablePayloadWithoutPartialWrite(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEventStore()

	broken := makeEvent(t, "agg-1", 2, event.TypeOrderPaid)
	broken.EventData = json.RawMessage("")

	err := store.AppendBatch(ctx, []event.Event{
		makeEvent(t, "agg-1", 1, event.TypeCheckoutSessionCreated),
		broken,
	})
	require.Error(t, err)

	// The valid leading event must not have landed
	events, err := store.GetEvents(ctx, "agg-1", 0)
	require.NoError(t, err)
	assert.Empty(t, events, "no partial set may become visible")

	meta, err := store.GetStreamMetadata(ctx, "agg-1")
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestStreamMetadataTracksCurrentVersion(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEventStore()

	meta, err := store.GetStreamMetadata(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, meta)

	first := makeEvent(t, "agg-1", 1, event.TypeCheckoutSessionCreated)
	second := makeEvent(t, "agg-1", 2, event.TypeOrderPaid)
	require.NoError(t, store.Append(ctx, first))
	require.NoError(t, store.Append(ctx, second))

	meta, err = store.GetStreamMetadata(ctx, "agg-1")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, 2, meta.CurrentVersion)
	assert.Equal(t, first.EventID, meta.FirstEventID)
	assert.Equal(t, second.EventID, meta.LastEventID)
	assert.Equal(t, 2, meta.EventCount)
	assert.Equal(t, event.AggregateTypeOrder, meta.AggregateType)
}

func TestCreateSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEventStore()

	err := store.CreateSnapshot(ctx, "missing", event.AggregateTypeOrder, 1, json.RawMessage(`{}`))
	assert.True(t, apperrors.HasCode(err, "NOT_FOUND"))

	for v := 1; v <= 3; v++ {
		require.NoError(t, store.Append(ctx, makeEvent(t, "agg-1", v, event.TypeOrderPaid)))
	}

	err = store.CreateSnapshot(ctx, "agg-1", event.AggregateTypeOrder, 5, json.RawMessage(`{}`))
	assert.True(t, apperrors.HasCode(err, "VALIDATION_ERROR"))

	snapData := json.RawMessage(`{"status":"PAID"}`)
	require.NoError(t, store.CreateSnapshot(ctx, "agg-1", event.AggregateTypeOrder, 2, snapData))

	meta, err := store.GetStreamMetadata(ctx, "agg-1")
	require.NoError(t, err)
	require.NotNil(t, meta.Snapshot)
	assert.Equal(t, 2, meta.Snapshot.Version)
	assert.JSONEq(t, `{"status":"PAID"}`, string(meta.Snapshot.Data))
	assert.False(t, meta.Snapshot.TakenAt.IsZero())
}

func TestVerifyEventIntegrity(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEventStore()

	evt := makeEvent(t, "agg-1", 1, event.TypeOrderPaid)
	require.NoError(t, store.Append(ctx, evt))

	valid, err := store.VerifyEventIntegrity(ctx, evt.EventID)
	require.NoError(t, err)
	assert.True(t, valid)

	// Tampering with the payload without updating the checksum is detected
	require.True(t, store.corrupt(evt.EventID, json.RawMessage(`{"order_id":"tampered"}`)))
	valid, err = store.VerifyEventIntegrity(ctx, evt.EventID)
	require.NoError(t, err)
	assert.False(t, valid)

	_, err = store.VerifyEventIntegrity(ctx, "unknown-event")
	assert.True(t, apperrors.HasCode(err, "NOT_FOUND"))
}

func TestGetEventsByTypeAndGetAllEvents(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEventStore()

	created := makeEvent(t, "agg-1", 1, event.TypeCheckoutSessionCreated)
	created.OccurredAt = time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	paid := makeEvent(t, "agg-1", 2, event.TypeOrderPaid)
	paid.OccurredAt = time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC)
	other := makeEvent(t, "agg-2", 1, event.TypeOrderPaid)
	other.OccurredAt = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, created))
	require.NoError(t, store.Append(ctx, paid))
	require.NoError(t, store.Append(ctx, other))

	byType, err := store.GetEventsByType(ctx, event.TypeOrderPaid, time.Time{})
	require.NoError(t, err)
	require.Len(t, byType, 2)
	assert.Equal(t, paid.EventID, byType[0].EventID)
	assert.Equal(t, other.EventID, byType[1].EventID)

	since, err := store.GetEventsByType(ctx, event.TypeOrderPaid,
		time.Date(2026, 1, 1, 11, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, other.EventID, since[0].EventID)

	all, err := store.GetAllEvents(ctx, time.Time{}, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := store.GetAllEvents(ctx, time.Time{}, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, created.EventID, limited[0].EventID)
}

func TestGetStatistics(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEventStore()

	stats, err := store.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalEvents)
	assert.Zero(t, stats.TotalStreams)
	assert.Nil(t, stats.OldestEvent)

	require.NoError(t, store.Append(ctx, makeEvent(t, "agg-1", 1, event.TypeCheckoutSessionCreated)))
	require.NoError(t, store.Append(ctx, makeEvent(t, "agg-1", 2, event.TypeOrderPaid)))
	require.NoError(t, store.Append(ctx, makeEvent(t, "agg-2", 1, event.TypeCheckoutSessionCreated)))

	stats, err = store.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalEvents)
	assert.Equal(t, 2, stats.TotalStreams)
	assert.Equal(t, 2, stats.EventsByType[event.TypeCheckoutSessionCreated])
	assert.Equal(t, 1, stats.EventsByType[event.TypeOrderPaid])
	require.NotNil(t, stats.OldestEvent)
	require.NotNil(t, stats.NewestEvent)
	assert.False(t, stats.NewestEvent.Before(*stats.OldestEvent))
}
