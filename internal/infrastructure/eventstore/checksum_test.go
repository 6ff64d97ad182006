package eventstore

import (
	"encoding/json"
	"testing"

	"boutique-backend/internal/domain/event"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeChecksumIsStable(t *testing.T) {
	evt, err := event.New(event.TypeOrderPaid, "order-1", event.AggregateTypeOrder,
		map[string]interface{}{"amount": 5999, "currency": "eur"}, 1)
	require.NoError(t, err)

	first, err := ComputeChecksum(evt)
	require.NoError(t, err)
	second, err := ComputeChecksum(evt)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64) // hex sha-256
}

func TestComputeChecksumDetectsChanges(t *testing.T) {
	evt, err := event.New(event.TypeOrderPaid, "order-1", event.AggregateTypeOrder,
		map[string]string{"status": "paid"}, 1)
	require.NoError(t, err)

	original, err := ComputeChecksum(evt)
	require.NoError(t, err)

	tampered := evt
	tampered.EventData = json.RawMessage(`{"status":"refunded"}`)
	changed, err := ComputeChecksum(tampered)
	require.NoError(t, err)
	assert.NotEqual(t, original, changed)

	reversioned := evt
	reversioned.Version = 2
	changed, err = ComputeChecksum(reversioned)
	require.NoError(t, err)
	assert.NotEqual(t, original, changed)
}

func TestChecksumIgnoresNonCanonicalFields(t *testing.T) {
	evt, err := event.New(event.TypeOrderPaid, "order-1", event.AggregateTypeOrder,
		map[string]string{"status": "paid"}, 1)
	require.NoError(t, err)

	original, err := ComputeChecksum(evt)
	require.NoError(t, err)

	attributed := evt.WithUser("user-42").WithCorrelation("corr-1", "cause-1")
	same, err := ComputeChecksum(attributed)
	require.NoError(t, err)
	assert.Equal(t, original, same)
}
