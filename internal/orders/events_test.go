package orders

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	ev, err := NewEnvelope(EventOrderCreated, "farm-market-api", "o-1", OrderCreatedPayload{
		OrderID:     "o-1",
		Quantity:    3,
		UnitPrice:   decimal.RequireFromString("12.50"),
		TotalAmount: decimal.RequireFromString("37.50"),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, 1, ev.EventVersion)
	assert.Equal(t, "o-1", ev.CorrelationID)
	assert.False(t, ev.OccurredAt.IsZero())

	var p OrderCreatedPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &p))
	assert.True(t, p.TotalAmount.Equal(decimal.RequireFromString("37.5")))
	assert.Equal(t, []byte("o-1"), PartitionKey(ev.CorrelationID))
}
