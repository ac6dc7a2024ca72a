package events

import (
	"encoding/json"
	"testing"

	"bazaar/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToTypeSubscribers(t *testing.T) {
	bus := NewBus()

	var got []Event
	bus.Subscribe(EventItemSold, func(e Event) { got = append(got, e) })
	bus.Subscribe(EventItemCreated, func(e Event) { t.Error("wrong type delivered") })

	err := bus.PublishJSON(EventItemSold, ItemSoldPayload{Buyer: "bob", ItemID: 4, Quantity: 2})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, EventItemSold, got[0].Type)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].CreatedAt.IsZero())

	var payload ItemSoldPayload
	require.NoError(t, json.Unmarshal(got[0].Payload, &payload))
	assert.Equal(t, models.AccountID("bob"), payload.Buyer)
	assert.Equal(t, models.ItemID(4), payload.ItemID)
	assert.Equal(t, uint32(2), payload.Quantity)
}

func TestSubscribeAllSeesEveryEvent(t *testing.T) {
	bus := NewBus()

	var types []string
	bus.SubscribeAll(func(e Event) { types = append(types, e.Type) })

	require.NoError(t, bus.PublishJSON(EventItemCreated, ItemCreatedPayload{Actor: "alice"}))
	require.NoError(t, bus.PublishJSON(EventItemRemoved, ItemQuantityPayload{Actor: "alice"}))
	require.NoError(t, bus.PublishJSON(EventTransferMade, TransferMadePayload{From: "bob", To: "alice"}))

	assert.Equal(t, []string{EventItemCreated, EventItemRemoved, EventTransferMade}, types)
}

func TestNilBusIsSafe(t *testing.T) {
	var bus *Bus
	assert.NoError(t, bus.PublishJSON(EventItemAdded, ItemQuantityPayload{}))
}

func TestEventIDsAreUnique(t *testing.T) {
	bus := NewBus()

	seen := make(map[string]bool)
	bus.SubscribeAll(func(e Event) { seen[e.ID] = true })

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.PublishJSON(EventItemAdded, ItemQuantityPayload{}))
	}
	assert.Len(t, seen, 10)
}
