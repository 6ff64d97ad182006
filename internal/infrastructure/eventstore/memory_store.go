package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"boutique-backend/internal/domain/event"
	apperrors "boutique-backend/pkg/errors"
)

// MemoryEventStore is an in-process event store. It backs tests and local
// development; the Mongo store is the durable implementation.
type MemoryEventStore struct {
	mutex    sync.RWMutex
	streams  map[string][]event.Event
	metadata map[string]*StreamMetadata
	byID     map[string]event.Event
}

// NewMemoryEventStore returns a new in-memory event store
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{
		streams:  make(map[string][]event.Event),
		metadata: make(map[string]*StreamMetadata),
		byID:     make(map[string]event.Event),
	}
}

// Append persists one event under the optimistic-concurrency check
func (s *MemoryEventStore) Append(ctx context.Context, evt event.Event) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.appendLocked(evt)
}

// AppendBatch appends all events or none. The whole batch is validated and
// prepared before anything is written, so a mid-batch failure cannot leave
// a partial set visible.
func (s *MemoryEventStore) AppendBatch(ctx context.Context, events []event.Event) error {
	if len(events) == 0 {
		return nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	next := make(map[string]int)
	prepared := make([]event.Event, 0, len(events))
	for _, evt := range events {
		expected, ok := next[evt.AggregateID]
		if !ok {
			expected = s.currentVersionLocked(evt.AggregateID) + 1
		}
		if evt.Version != expected {
			return apperrors.NewConcurrencyError(fmt.Sprintf(
				"version conflict for aggregate %s: expected %d, got %d",
				evt.AggregateID, expected, evt.Version))
		}
		next[evt.AggregateID] = expected + 1

		ready, err := prepareEvent(evt)
		if err != nil {
			return err
		}
		prepared = append(prepared, ready)
	}

	for _, evt := range prepared {
		s.applyLocked(evt)
	}
	return nil
}

func (s *MemoryEventStore) appendLocked(evt event.Event) error {
	current := s.currentVersionLocked(evt.AggregateID)
	if evt.Version != current+1 {
		return apperrors.NewConcurrencyError(fmt.Sprintf(
			"version conflict for aggregate %s: expected %d, got %d",
			evt.AggregateID, current+1, evt.Version))
	}

	ready, err := prepareEvent(evt)
	if err != nil {
		return err
	}
	s.applyLocked(ready)
	return nil
}

// prepareEvent stamps the checksum and timestamp without touching store state
func prepareEvent(evt event.Event) (event.Event, error) {
	checksum, err := ComputeChecksum(evt)
	if err != nil {
		return event.Event{}, apperrors.NewInternalError("failed to compute event checksum: " + err.Error())
	}
	evt.Checksum = checksum
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	return evt, nil
}

func (s *MemoryEventStore) applyLocked(evt event.Event) {
	s.streams[evt.AggregateID] = append(s.streams[evt.AggregateID], evt)
	s.byID[evt.EventID] = evt

	meta, ok := s.metadata[evt.AggregateID]
	if !ok {
		meta = &StreamMetadata{
			AggregateID:   evt.AggregateID,
			AggregateType: evt.AggregateType,
			FirstEventID:  evt.EventID,
		}
		s.metadata[evt.AggregateID] = meta
	}
	meta.CurrentVersion = evt.Version
	meta.LastEventID = evt.EventID
	meta.EventCount++
	meta.UpdatedAt = time.Now().UTC()
}

func (s *MemoryEventStore) currentVersionLocked(aggregateID string) int {
	if meta, ok := s.metadata[aggregateID]; ok {
		return meta.CurrentVersion
	}
	return 0
}

// GetEvents returns an aggregate's events ordered by ascending version
func (s *MemoryEventStore) GetEvents(ctx context.Context, aggregateID string, fromVersion int) ([]event.Event, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var result []event.Event
	for _, evt := range s.streams[aggregateID] {
		if evt.Version >= fromVersion {
			result = append(result, evt)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Version < result[j].Version })
	return result, nil
}

// GetEventsByType returns events of one type ordered by occurrence time
func (s *MemoryEventStore) GetEventsByType(ctx context.Context, eventType string, fromDate time.Time) ([]event.Event, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var result []event.Event
	for _, stream := range s.streams {
		for _, evt := range stream {
			if evt.EventType == eventType && !evt.OccurredAt.Before(fromDate) {
				result = append(result, evt)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].OccurredAt.Before(result[j].OccurredAt) })
	return result, nil
}

// GetAllEvents returns events across all aggregates ordered by occurrence time
func (s *MemoryEventStore) GetAllEvents(ctx context.Context, fromDate time.Time, limit int) ([]event.Event, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var result []event.Event
	for _, stream := range s.streams {
		for _, evt := range stream {
			if !evt.OccurredAt.Before(fromDate) {
				result = append(result, evt)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].OccurredAt.Before(result[j].OccurredAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetStreamMetadata returns stream info, or nil when the aggregate has no events
func (s *MemoryEventStore) GetStreamMetadata(ctx context.Context, aggregateID string) (*StreamMetadata, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	meta, ok := s.metadata[aggregateID]
	if !ok {
		return nil, nil
	}
	copied := *meta
	if meta.Snapshot != nil {
		snap := *meta.Snapshot
		copied.Snapshot = &snap
	}
	return &copied, nil
}

// CreateSnapshot upserts a compaction point for the aggregate
func (s *MemoryEventStore) CreateSnapshot(ctx context.Context, aggregateID, aggregateType string, version int, data json.RawMessage) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	meta, ok := s.metadata[aggregateID]
	if !ok {
		return apperrors.NewNotFoundError("event stream")
	}
	if version < 1 || version > meta.CurrentVersion {
		return apperrors.NewValidationError(fmt.Sprintf(
			"snapshot version %d outside stream range 1..%d", version, meta.CurrentVersion))
	}

	meta.Snapshot = &Snapshot{
		Version: version,
		Data:    append(json.RawMessage(nil), data...),
		TakenAt: time.Now().UTC(),
	}
	meta.AggregateType = aggregateType
	meta.UpdatedAt = time.Now().UTC()
	return nil
}

// VerifyEventIntegrity recomputes the checksum of a stored event
func (s *MemoryEventStore) VerifyEventIntegrity(ctx context.Context, eventID string) (bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	evt, ok := s.byID[eventID]
	if !ok {
		return false, apperrors.NewNotFoundError("event")
	}

	checksum, err := ComputeChecksum(evt)
	if err != nil {
		return false, apperrors.NewInternalError("failed to compute event checksum: " + err.Error())
	}
	return checksum == evt.Checksum, nil
}

// GetStatistics returns counts over the whole store
func (s *MemoryEventStore) GetStatistics(ctx context.Context) (*Statistics, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	stats := &Statistics{
		TotalStreams: len(s.streams),
		EventsByType: make(map[string]int),
	}
	for _, stream := range s.streams {
		for _, evt := range stream {
			stats.TotalEvents++
			stats.EventsByType[evt.EventType]++
			occurred := evt.OccurredAt
			if stats.OldestEvent == nil || occurred.Before(*stats.OldestEvent) {
				t := occurred
				stats.OldestEvent = &t
			}
			if stats.NewestEvent == nil || occurred.After(*stats.NewestEvent) {
				t := occurred
				stats.NewestEvent = &t
			}
		}
	}
	return stats, nil
}
