package amm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"bazaar/internal/catalog"
	"bazaar/internal/domain"
	"bazaar/internal/events"
	"bazaar/internal/models"
)

var (
	ErrPoolNotFound          = errors.New("no liquidity pool for asset pair")
	ErrInsufficientLiquidity = errors.New("insufficient pool liquidity")
	ErrMaxPayingExceeded     = errors.New("required input exceeds maximum paying amount")
	ErrSameAsset             = errors.New("cannot swap an asset for itself")
	ErrAmountOverflow        = errors.New("swap amount overflow")
)

// FeeDenominator converts a fee rate in basis points to a fraction.
const FeeDenominator = 10_000

type pool struct {
	account  models.AccountID
	reserves map[models.AssetID]uint64
}

// Exchange is a constant-product spot market over asset pairs. Each pair has
// its own pool account; swaps settle through the balance ledger so pool
// holdings and account balances cannot drift apart.
type Exchange struct {
	mu         sync.Mutex
	pools      map[pairKey]*pool
	ledger     FundsLedger
	feeRateBps uint64
	eventBus   domain.EventPublisher
}

// FundsLedger is the slice of the balance ledger the exchange needs: moving
// funds between accounts and seeding pool accounts.
type FundsLedger interface {
	Transfer(ctx context.Context, asset models.AssetID, from, to models.AccountID, amount uint64) error
	Mint(asset models.AssetID, account models.AccountID, amount uint64) error
}

type pairKey struct {
	lo, hi models.AssetID
}

func keyFor(a, b models.AssetID) pairKey {
	if a < b {
		return pairKey{lo: a, hi: b}
	}
	return pairKey{lo: b, hi: a}
}

func NewExchange(funds FundsLedger, feeRateBps uint64, eventBus domain.EventPublisher) *Exchange {
	return &Exchange{
		pools:      make(map[pairKey]*pool),
		ledger:     funds,
		feeRateBps: feeRateBps,
		eventBus:   eventBus,
	}
}

// CurrentFeeRate reports the exchange-wide fee rate in basis points.
func (e *Exchange) CurrentFeeRate() uint64 {
	return e.feeRateBps
}

// SeedPool creates (or tops up) the pool for a pair, minting the reserves to
// the pool's account. Intended for genesis config and tests.
func (e *Exchange) SeedPool(assetA models.AssetID, reserveA uint64, assetB models.AssetID, reserveB uint64) error {
	if assetA == assetB {
		return ErrSameAsset
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	key := keyFor(assetA, assetB)
	p, ok := e.pools[key]
	if !ok {
		p = &pool{
			account:  models.AccountID(fmt.Sprintf("pool:%d:%d", key.lo, key.hi)),
			reserves: make(map[models.AssetID]uint64),
		}
		e.pools[key] = p
	}

	if err := e.ledger.Mint(assetA, p.account, reserveA); err != nil {
		return err
	}
	if err := e.ledger.Mint(assetB, p.account, reserveB); err != nil {
		return err
	}
	p.reserves[assetA] += reserveA
	p.reserves[assetB] += reserveB
	return nil
}

// SwapForExactOutput charges the buyer at most maxPaying of assetSold and
// delivers exactly exactBought of assetBought to the recipient. The required
// input follows the constant-product rule plus a proportional fee, which stays
// in the pool.
func (e *Exchange) SwapForExactOutput(ctx context.Context, buyer, recipient models.AccountID, assetSold, assetBought models.AssetID, exactBought, maxPaying uint64, feeRateBps uint64) error {
	if assetSold == assetBought {
		return ErrSameAsset
	}
	if exactBought == 0 {
		return ErrInsufficientLiquidity
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.pools[keyFor(assetSold, assetBought)]
	if !ok {
		return ErrPoolNotFound
	}

	reserveIn := p.reserves[assetSold]
	reserveOut := p.reserves[assetBought]
	if exactBought >= reserveOut {
		return ErrInsufficientLiquidity
	}

	input, err := requiredInput(reserveIn, reserveOut, exactBought, feeRateBps)
	if err != nil {
		return err
	}
	if input > maxPaying {
		return ErrMaxPayingExceeded
	}

	// Buyer pays the pool first; delivery only happens once the payment is in.
	if err := e.ledger.Transfer(ctx, assetSold, buyer, p.account, input); err != nil {
		return err
	}
	if err := e.ledger.Transfer(ctx, assetBought, p.account, recipient, exactBought); err != nil {
		// Refund the buyer so a half-settled swap cannot be observed.
		_ = e.ledger.Transfer(ctx, assetSold, p.account, buyer, input)
		return err
	}

	p.reserves[assetSold] = reserveIn + input
	p.reserves[assetBought] = reserveOut - exactBought

	if e.eventBus != nil {
		_ = e.eventBus.PublishJSON(events.EventAssetSwapped, events.AssetSwappedPayload{
			Buyer:        buyer,
			Recipient:    recipient,
			AssetSold:    assetSold,
			AssetBought:  assetBought,
			AmountSold:   input,
			AmountBought: exactBought,
		})
	}
	return nil
}

// Reserves reports the pool reserve of one asset in a pair, for tests and the
// read API.
func (e *Exchange) Reserves(assetA, assetB, query models.AssetID) (uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.pools[keyFor(assetA, assetB)]
	if !ok {
		return 0, false
	}
	r, ok := p.reserves[query]
	return r, ok
}

// requiredInput computes ceil(reserveIn*out/(reserveOut-out)) plus the fee,
// with checked arithmetic throughout.
func requiredInput(reserveIn, reserveOut, out, feeRateBps uint64) (uint64, error) {
	numerator, ok := catalog.CheckedMul(reserveIn, out)
	if !ok {
		return 0, ErrAmountOverflow
	}

	denominator := reserveOut - out
	base := numerator / denominator
	if numerator%denominator != 0 {
		base++
	}

	fee, ok := catalog.CheckedMul(base, feeRateBps)
	if !ok {
		return 0, ErrAmountOverflow
	}
	fee /= FeeDenominator

	if base > math.MaxUint64-fee {
		return 0, ErrAmountOverflow
	}
	return base + fee, nil
}
