package models

import "math"

// ItemID identifies a catalog entry. IDs are allocated monotonically and are
// never reused, even after an item's quantity reaches zero.
type ItemID uint64

// MaxItemID is reserved as the "no id available" sentinel and is never issued.
const MaxItemID ItemID = math.MaxUint64

// AccountID references an account in the host identity system. The ledger
// treats it as opaque.
type AccountID string

// AssetID names a balance denomination in the multi-asset ledger.
type AssetID uint32
