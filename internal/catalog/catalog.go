package catalog

import (
	"bazaar/internal/models"
)

// Catalog owns the four listing maps and the id counter. Absence of a key in a
// map means the record does not exist. Records are never deleted; removing
// stock only drives quantity to zero, so an issued id stays resolvable for the
// lifetime of the catalog.
//
// The catalog performs no locking of its own. Callers (the settlement engine
// behind the API layer, or a test) are expected to serialize operations, which
// mirrors the transaction ordering the host system provides.
type Catalog struct {
	items      map[models.ItemID]models.Item
	owners     map[models.ItemID]models.AccountID
	quantities map[models.ItemID]uint32
	prices     map[models.ItemID]models.Price

	nextID models.ItemID
}

func New() *Catalog {
	return &Catalog{
		items:      make(map[models.ItemID]models.Item),
		owners:     make(map[models.ItemID]models.AccountID),
		quantities: make(map[models.ItemID]uint32),
		prices:     make(map[models.ItemID]models.Price),
	}
}

// Restore rebuilds a catalog from persisted listing records. The id counter is
// set past the highest restored id so restored catalogs keep the
// never-reissue guarantee.
func Restore(records []models.ListingRecord) *Catalog {
	c := New()
	for _, rec := range records {
		c.items[rec.ID] = rec.Item
		c.owners[rec.ID] = rec.Owner
		c.quantities[rec.ID] = rec.Quantity
		c.prices[rec.ID] = rec.Price
		if rec.ID >= c.nextID && rec.ID != models.MaxItemID {
			c.nextID = rec.ID + 1
		}
	}
	return c
}

// allocateID hands out the current counter value and advances it. The maximum
// representable id is the "exhausted" sentinel and is never issued; on
// overflow the counter is left untouched and no id is consumed.
func (c *Catalog) allocateID() (models.ItemID, error) {
	id := c.nextID
	if id == models.MaxItemID {
		return models.MaxItemID, ErrIDSpaceExhausted
	}
	c.nextID = id + 1
	return id, nil
}

// NextID exposes the counter for persistence and tests.
func (c *Catalog) NextID() models.ItemID {
	return c.nextID
}

// Create allocates a fresh id and populates all four maps for it. On
// allocation failure the catalog is unchanged.
func (c *Catalog) Create(owner models.AccountID, item models.Item, quantity uint32, price models.Price) (models.ItemID, error) {
	id, err := c.allocateID()
	if err != nil {
		return models.MaxItemID, err
	}

	c.items[id] = item
	c.owners[id] = owner
	c.quantities[id] = quantity
	c.prices[id] = price

	return id, nil
}

// AdjustQuantity applies a saturating delta to a listing's quantity and
// returns the resulting value. Subtraction clamps at zero, addition at the
// numeric maximum; this is bookkeeping, not settlement, and never fails.
func (c *Catalog) AdjustQuantity(id models.ItemID, delta uint32, dir models.Direction) uint32 {
	q := c.quantities[id]
	if dir == models.DirectionAdd {
		q = satAdd(q, delta)
	} else {
		q = satSub(q, delta)
	}
	c.quantities[id] = q
	return q
}

// SetQuantity overwrites a listing's quantity with an absolute value. Used by
// settlement after a checked computation; not saturating.
func (c *Catalog) SetQuantity(id models.ItemID, quantity uint32) {
	c.quantities[id] = quantity
}

// Update overwrites quantity and price for an existing listing.
func (c *Catalog) Update(id models.ItemID, quantity uint32, price models.Price) error {
	if _, ok := c.items[id]; !ok {
		return ErrItemNotFound
	}
	c.quantities[id] = quantity
	c.prices[id] = price
	return nil
}

func (c *Catalog) Item(id models.ItemID) (models.Item, bool) {
	item, ok := c.items[id]
	return item, ok
}

func (c *Catalog) Owner(id models.ItemID) (models.AccountID, bool) {
	owner, ok := c.owners[id]
	return owner, ok
}

// Quantity returns the units on hand. A missing record reads as zero with
// ok=false, matching the original storage default.
func (c *Catalog) Quantity(id models.ItemID) (uint32, bool) {
	q, ok := c.quantities[id]
	return q, ok
}

func (c *Catalog) Price(id models.ItemID) (models.Price, bool) {
	price, ok := c.prices[id]
	return price, ok
}

// Record assembles the full snapshot of one listing.
func (c *Catalog) Record(id models.ItemID) (models.ListingRecord, bool) {
	item, ok := c.items[id]
	if !ok {
		return models.ListingRecord{}, false
	}
	return models.ListingRecord{
		ID:       id,
		Item:     item,
		Owner:    c.owners[id],
		Quantity: c.quantities[id],
		Price:    c.prices[id],
	}, true
}

// Records returns snapshots of every listing, ordered by id.
func (c *Catalog) Records() []models.ListingRecord {
	records := make([]models.ListingRecord, 0, len(c.items))
	for id := models.ItemID(0); id < c.nextID; id++ {
		if rec, ok := c.Record(id); ok {
			records = append(records, rec)
		}
	}
	return records
}

// Len reports the number of listings ever created.
func (c *Catalog) Len() int {
	return len(c.items)
}
