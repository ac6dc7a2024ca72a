package domain

import (
	"context"

	"bazaar/internal/models"
)

// BalanceLedger moves value between accounts in a single asset. Failures
// (typically insufficient funds) are returned as-is to the caller; the
// settlement engine never rewrites them.
type BalanceLedger interface {
	Transfer(ctx context.Context, asset models.AssetID, from, to models.AccountID, amount uint64) error
}

// AssetSwapper converts between two asset denominations. SwapForExactOutput
// charges the buyer at most maxPaying of assetSold and delivers exactly
// exactBought of assetBought to the recipient, at the given fee rate in basis
// points.
type AssetSwapper interface {
	SwapForExactOutput(ctx context.Context, buyer, recipient models.AccountID, assetSold, assetBought models.AssetID, exactBought, maxPaying uint64, feeRateBps uint64) error
	CurrentFeeRate() uint64
}

// EventPublisher appends a structured notification for a successful state
// transition. Publishing is fire-and-forget from the caller's perspective.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// IdempotencyStore remembers request keys so duplicate submissions of the same
// operation can be rejected at the API boundary.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}
