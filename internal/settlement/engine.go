package settlement

import (
	"context"

	"bazaar/internal/catalog"
	"bazaar/internal/domain"
	"bazaar/internal/events"
	"bazaar/internal/metrics"
	"bazaar/internal/models"

	"github.com/rs/zerolog"
)

// Engine validates and executes the five marketplace operations against the
// catalog. It is the only component that talks to the payment collaborators.
//
// Every operation is all-or-nothing: validations run first, a collaborator is
// invoked at most once, and the catalog write always comes last, so a failure
// at any step leaves the catalog exactly as it was. The engine assumes calls
// are serialized by its caller, the same guarantee the host transaction
// ordering would provide.
type Engine struct {
	catalog  *catalog.Catalog
	ledger   domain.BalanceLedger
	exchange domain.AssetSwapper
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewEngine(cat *catalog.Catalog, balances domain.BalanceLedger, exchange domain.AssetSwapper, eventBus domain.EventPublisher, logger *zerolog.Logger) *Engine {
	return &Engine{
		catalog:  cat,
		ledger:   balances,
		exchange: exchange,
		eventBus: eventBus,
		logger:   logger,
	}
}

// Catalog exposes the read side for the API layer.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// CreateItem lists a new item owned by the caller and returns its id.
func (e *Engine) CreateItem(ctx context.Context, owner models.AccountID, quantity uint32, item models.Item, priceAsset models.AssetID, priceAmount uint64) (models.ItemID, error) {
	price := models.Price{Asset: priceAsset, Amount: priceAmount}

	id, err := e.catalog.Create(owner, item, quantity, price)
	if err != nil {
		metrics.IncOperation("create_item", "error")
		return models.MaxItemID, err
	}

	e.publish(events.EventItemCreated, events.ItemCreatedPayload{
		Actor:    owner,
		ItemID:   id,
		Quantity: quantity,
		Item:     item,
		Price:    price,
	})
	metrics.IncOperation("create_item", "ok")

	e.logger.Info().
		Str("owner", string(owner)).
		Uint64("item_id", uint64(id)).
		Uint32("quantity", quantity).
		Msg("item created")
	return id, nil
}

// AddItem tops up a listing's stock. The adjustment saturates at the numeric
// maximum and never fails; a missing id simply starts from zero stock, the
// record semantics of the underlying storage.
func (e *Engine) AddItem(ctx context.Context, actor models.AccountID, itemID models.ItemID, quantity uint32) error {
	newQuantity := e.catalog.AdjustQuantity(itemID, quantity, models.DirectionAdd)

	e.publish(events.EventItemAdded, events.ItemQuantityPayload{
		Actor:       actor,
		ItemID:      itemID,
		NewQuantity: newQuantity,
	})
	metrics.IncOperation("add_item", "ok")
	return nil
}

// RemoveItem takes stock out of a listing, clamping at zero.
func (e *Engine) RemoveItem(ctx context.Context, actor models.AccountID, itemID models.ItemID, quantity uint32) error {
	newQuantity := e.catalog.AdjustQuantity(itemID, quantity, models.DirectionSub)

	e.publish(events.EventItemRemoved, events.ItemQuantityPayload{
		Actor:       actor,
		ItemID:      itemID,
		NewQuantity: newQuantity,
	})
	metrics.IncOperation("remove_item", "ok")
	return nil
}

// UpdateItem overwrites quantity and price of an existing listing.
func (e *Engine) UpdateItem(ctx context.Context, actor models.AccountID, itemID models.ItemID, quantity uint32, priceAsset models.AssetID, priceAmount uint64) error {
	price := models.Price{Asset: priceAsset, Amount: priceAmount}

	if err := e.catalog.Update(itemID, quantity, price); err != nil {
		metrics.IncOperation("update_item", "error")
		return err
	}

	e.publish(events.EventItemUpdated, events.ItemUpdatedPayload{
		Actor:       actor,
		ItemID:      itemID,
		NewQuantity: quantity,
		NewPrice:    price,
	})
	metrics.IncOperation("update_item", "ok")
	return nil
}

// PurchaseItem settles a purchase of quantity units of itemID, paid in
// payingAsset with maxTotalPayingAmount as the buyer's ceiling.
//
// Stock is decremented with checked subtraction: requesting more units than
// exist is a hard error, not something to clamp. The quantity write happens
// only after payment succeeded.
func (e *Engine) PurchaseItem(ctx context.Context, buyer models.AccountID, quantity uint32, itemID models.ItemID, payingAsset models.AssetID, maxTotalPayingAmount uint64) error {
	onHand, ok := e.catalog.Quantity(itemID)
	if !ok {
		metrics.IncOperation("purchase_item", "error")
		return catalog.ErrItemNotFound
	}
	newQuantity, ok := catalog.CheckedSub(onHand, quantity)
	if !ok {
		metrics.IncOperation("purchase_item", "error")
		return ErrInsufficientStock
	}

	price, ok := e.catalog.Price(itemID)
	if !ok {
		metrics.IncOperation("purchase_item", "error")
		return ErrNoPriceSet
	}

	seller, ok := e.catalog.Owner(itemID)
	if !ok {
		metrics.IncOperation("purchase_item", "error")
		return ErrNoOwner
	}

	// A crafted large quantity must not wrap the total and underpay the
	// seller.
	totalAmount, ok := catalog.CheckedMul(price.Amount, uint64(quantity))
	if !ok {
		metrics.IncOperation("purchase_item", "error")
		return ErrPriceOverflow
	}

	if price.Asset == payingAsset {
		// Same asset: plain ledger transfer. The ceiling check is strictly
		// less-than, preserved from the original settlement rule.
		if totalAmount >= maxTotalPayingAmount {
			metrics.IncOperation("purchase_item", "error")
			return ErrPriceTooLow
		}
		if err := e.ledger.Transfer(ctx, price.Asset, buyer, seller, totalAmount); err != nil {
			metrics.IncOperation("purchase_item", "error")
			return err
		}
	} else {
		// Cross asset: the exchange delivers exactly the sell-asset total to
		// the seller, charging the buyer at most the ceiling.
		err := e.exchange.SwapForExactOutput(ctx, buyer, seller, payingAsset, price.Asset, totalAmount, maxTotalPayingAmount, e.exchange.CurrentFeeRate())
		if err != nil {
			metrics.IncOperation("purchase_item", "error")
			return err
		}
	}

	e.catalog.SetQuantity(itemID, newQuantity)

	e.publish(events.EventItemSold, events.ItemSoldPayload{
		Buyer:    buyer,
		ItemID:   itemID,
		Quantity: quantity,
	})
	metrics.IncOperation("purchase_item", "ok")
	metrics.AddUnitsSold(uint64(quantity))

	e.logger.Info().
		Str("buyer", string(buyer)).
		Uint64("item_id", uint64(itemID)).
		Uint32("quantity", quantity).
		Uint64("total_amount", totalAmount).
		Msg("item sold")
	return nil
}

func (e *Engine) publish(eventType string, payload interface{}) {
	if e.eventBus == nil {
		return
	}
	if err := e.eventBus.PublishJSON(eventType, payload); err != nil {
		e.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}
