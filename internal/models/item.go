package models

// Item is the immutable listing payload. Only quantity and price of a listing
// change after creation; the payload itself never does.
type Item struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description,omitempty"`
}

// Price is the listed unit price: the asset the seller wants and the amount
// per unit.
type Price struct {
	Asset  AssetID `yaml:"asset" json:"asset"`
	Amount uint64  `yaml:"amount" json:"amount"`
}

// Direction selects add or subtract for saturating quantity adjustments.
type Direction int

const (
	DirectionAdd Direction = iota
	DirectionSub
)

// ListingRecord is a full snapshot of one catalog entry, used by the
// persistence projection and the read API.
type ListingRecord struct {
	ID       ItemID    `json:"id"`
	Item     Item      `json:"item"`
	Owner    AccountID `json:"owner"`
	Quantity uint32    `json:"quantity"`
	Price    Price     `json:"price"`
}
