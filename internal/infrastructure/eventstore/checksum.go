package eventstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"boutique-backend/internal/domain/event"
)

// checksumEnvelope is the canonical serialization the digest covers. Field
// order is fixed by the struct, so re-serializing the same event always
// yields the same bytes.
type checksumEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventData     json.RawMessage `json:"event_data"`
	Version       int             `json:"version"`
}

// ComputeChecksum returns the hex SHA-256 digest over the event's canonical
// fields. Any change to the payload or identity fields changes the digest.
func ComputeChecksum(evt event.Event) (string, error) {
	canonical, err := json.Marshal(checksumEnvelope{
		EventID:       evt.EventID,
		EventType:     evt.EventType,
		AggregateID:   evt.AggregateID,
		AggregateType: evt.AggregateType,
		EventData:     evt.EventData,
		Version:       evt.Version,
	})
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
