package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"bazaar/internal/catalog"
	"bazaar/internal/database"
	"bazaar/internal/events"
	"bazaar/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupWorker(t *testing.T) (*JournalWorker, *database.DB, *catalog.Catalog, *events.Bus) {
	t.Helper()

	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "bazaar.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cat := catalog.New()
	bus := events.NewBus()
	w := NewJournalWorker(db, cat, RetryPolicy{}, &logger)
	w.Attach(bus)
	return w, db, cat, bus
}

func TestWorkerPersistsPublishedEvents(t *testing.T) {
	w, db, cat, bus := setupWorker(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	id, err := cat.Create("alice", models.Item{Name: "lamp"}, 10, models.Price{Asset: 1, Amount: 5})
	require.NoError(t, err)
	require.NoError(t, bus.PublishJSON(events.EventItemCreated, events.ItemCreatedPayload{
		Actor:    "alice",
		ItemID:   id,
		Quantity: 10,
	}))

	assert.Eventually(t, func() bool {
		count, err := db.CountEvents(context.Background())
		return err == nil && count == 1
	}, 2*time.Second, 10*time.Millisecond)

	// The listings projection follows the event.
	assert.Eventually(t, func() bool {
		records, err := db.ListListings(context.Background())
		return err == nil && len(records) == 1 && records[0].Item.Name == "lamp"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestWorkerDrainsQueueOnShutdown(t *testing.T) {
	w, db, cat, bus := setupWorker(t)

	id, err := cat.Create("alice", models.Item{Name: "rug"}, 3, models.Price{Asset: 1, Amount: 2})
	require.NoError(t, err)

	// Publish before Run: events sit in the queue.
	for i := 0; i < 5; i++ {
		require.NoError(t, bus.PublishJSON(events.EventItemAdded, events.ItemQuantityPayload{
			Actor:  "alice",
			ItemID: id,
		}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Run(ctx) // returns immediately after draining

	count, err := db.CountEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
}

func TestWorkerIgnoresNonItemEvents(t *testing.T) {
	w, db, _, bus := setupWorker(t)

	require.NoError(t, bus.PublishJSON(events.EventTransferMade, events.TransferMadePayload{
		Asset: 1, From: "a", To: "b", Amount: 10,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Run(ctx)

	// Journaled but not projected.
	count, err := db.CountEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	records, err := db.ListListings(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRetryPolicyDelays(t *testing.T) {
	p := RetryPolicy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, MaxAttempts: 5}

	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 400*time.Millisecond, p.Delay(3))
	assert.Equal(t, time.Second, p.Delay(10))
}

func TestRetryPolicyDefaults(t *testing.T) {
	var p RetryPolicy
	assert.Positive(t, p.Delay(1))
	assert.LessOrEqual(t, p.Delay(100), 5*time.Second)
}
