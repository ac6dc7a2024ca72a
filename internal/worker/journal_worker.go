package worker

import (
	"context"
	"encoding/json"
	"time"

	"bazaar/internal/database"
	"bazaar/internal/events"
	"bazaar/internal/metrics"
	"bazaar/internal/models"

	"github.com/rs/zerolog"
)

// CatalogReader is the slice of the catalog the worker needs to project
// listing snapshots into sqlite.
type CatalogReader interface {
	Record(id models.ItemID) (models.ListingRecord, bool)
}

// JournalWorker drains published events into the durable journal and keeps
// the listings projection current. Emitting stays non-blocking and infallible
// for the settlement engine; durability failures are retried here.
type JournalWorker struct {
	db      *database.DB
	catalog CatalogReader
	queue   chan events.Event
	retry   RetryPolicy
	logger  *zerolog.Logger
}

func NewJournalWorker(db *database.DB, catalog CatalogReader, retry RetryPolicy, logger *zerolog.Logger) *JournalWorker {
	return &JournalWorker{
		db:      db,
		catalog: catalog,
		queue:   make(chan events.Event, 256),
		retry:   retry.withDefaults(),
		logger:  logger,
	}
}

// Attach subscribes the worker to every event the bus delivers.
func (w *JournalWorker) Attach(bus *events.Bus) {
	bus.SubscribeAll(func(event events.Event) {
		select {
		case w.queue <- event:
		default:
			// Queue is full; better to lose a journal row than to stall a
			// settlement inside its transaction.
			w.logger.Warn().Str("event_id", event.ID).Str("event_type", event.Type).Msg("journal queue full, dropping event")
			metrics.IncJournalAppend("dropped")
		}
	})
}

// Run processes queued events until the context is canceled.
func (w *JournalWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case event := <-w.queue:
			w.process(ctx, event)
		}
	}
}

// drain makes a best-effort pass over whatever is still queued at shutdown.
func (w *JournalWorker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	for {
		select {
		case event := <-w.queue:
			w.process(ctx, event)
		default:
			return
		}
	}
}

func (w *JournalWorker) process(ctx context.Context, event events.Event) {
	var err error
	for attempt := 1; attempt <= w.retry.MaxAttempts; attempt++ {
		if err = w.db.AppendEvent(ctx, event); err == nil {
			break
		}
		w.logger.Warn().Err(err).Int("attempt", attempt).Str("event_id", event.ID).Msg("journal append failed")

		select {
		case <-ctx.Done():
			metrics.IncJournalAppend("error")
			return
		case <-time.After(w.retry.Delay(attempt)):
		}
	}
	if err != nil {
		metrics.IncJournalAppend("error")
		w.logger.Error().Err(err).Str("event_id", event.ID).Msg("journal append gave up")
		return
	}
	metrics.IncJournalAppend("ok")

	w.project(ctx, event)
}

// project refreshes the listings row touched by an item event.
func (w *JournalWorker) project(ctx context.Context, event events.Event) {
	switch event.Type {
	case events.EventItemCreated, events.EventItemAdded, events.EventItemRemoved,
		events.EventItemUpdated, events.EventItemSold:
	default:
		return
	}

	var ref struct {
		ItemID models.ItemID `json:"item_id"`
	}
	if err := json.Unmarshal(event.Payload, &ref); err != nil {
		w.logger.Error().Err(err).Str("event_id", event.ID).Msg("decode event payload")
		return
	}

	rec, ok := w.catalog.Record(ref.ItemID)
	if !ok {
		return
	}
	if err := w.db.UpsertListing(ctx, rec); err != nil {
		w.logger.Error().Err(err).Uint64("item_id", uint64(ref.ItemID)).Msg("project listing")
	}
}
