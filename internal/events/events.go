package events

import (
	"encoding/json"
	"sync"
	"time"

	"bazaar/internal/models"

	"github.com/google/uuid"
)

const (
	EventItemCreated  = "item_created"
	EventItemAdded    = "item_added"
	EventItemRemoved  = "item_removed"
	EventItemUpdated  = "item_updated"
	EventItemSold     = "item_sold"
	EventTransferMade = "transfer_made"
	EventAssetSwapped = "asset_swapped"
)

// ItemCreatedPayload snapshots a freshly created listing.
// (actor, item_id, quantity, item, price)
type ItemCreatedPayload struct {
	Actor    models.AccountID `json:"actor"`
	ItemID   models.ItemID    `json:"item_id"`
	Quantity uint32           `json:"quantity"`
	Item     models.Item      `json:"item"`
	Price    models.Price     `json:"price"`
}

// ItemQuantityPayload reports the resulting quantity after an add or remove.
type ItemQuantityPayload struct {
	Actor       models.AccountID `json:"actor"`
	ItemID      models.ItemID    `json:"item_id"`
	NewQuantity uint32           `json:"new_quantity"`
}

// ItemUpdatedPayload carries the overwritten quantity and price.
type ItemUpdatedPayload struct {
	Actor       models.AccountID `json:"actor"`
	ItemID      models.ItemID    `json:"item_id"`
	NewQuantity uint32           `json:"new_quantity"`
	NewPrice    models.Price     `json:"new_price"`
}

// ItemSoldPayload records a settled purchase. (buyer, item_id, quantity)
type ItemSoldPayload struct {
	Buyer    models.AccountID `json:"buyer"`
	ItemID   models.ItemID    `json:"item_id"`
	Quantity uint32           `json:"quantity"`
}

// TransferMadePayload is emitted by the balance ledger for direct transfers.
type TransferMadePayload struct {
	Asset  models.AssetID   `json:"asset"`
	From   models.AccountID `json:"from"`
	To     models.AccountID `json:"to"`
	Amount uint64           `json:"amount"`
}

// AssetSwappedPayload is emitted by the spot exchange after a swap settles.
type AssetSwappedPayload struct {
	Buyer        models.AccountID `json:"buyer"`
	Recipient    models.AccountID `json:"recipient"`
	AssetSold    models.AssetID   `json:"asset_sold"`
	AssetBought  models.AssetID   `json:"asset_bought"`
	AmountSold   uint64           `json:"amount_sold"`
	AmountBought uint64           `json:"amount_bought"`
}

// Event is one append-only journal entry.
type Event struct {
	ID        string
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Handler reacts to a published event. Handlers run synchronously on the
// publisher's goroutine.
type Handler func(event Event)

// Bus fans published events out to type subscribers and to catch-all
// subscribers (the journal worker). The bus itself never rejects a publish;
// durability is the journal worker's job.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Handler
	all         []Handler
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]Handler)}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, handler)
}

// PublishJSON serializes the payload and delivers the event.
func (b *Bus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   raw,
		CreatedAt: time.Now(),
	}

	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[eventType]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
	return nil
}
