package ledger

import (
	"context"
	"errors"
	"math"
	"sync"

	"bazaar/internal/domain"
	"bazaar/internal/events"
	"bazaar/internal/models"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBalanceOverflow   = errors.New("balance overflow")
	ErrZeroAmount        = errors.New("transfer amount must be positive")
)

// Ledger is an in-process multi-asset balance ledger. It stands in for the
// host system's generic asset module: the settlement engine only sees the
// domain.BalanceLedger interface.
type Ledger struct {
	mu       sync.Mutex
	balances map[models.AssetID]map[models.AccountID]uint64
	eventBus domain.EventPublisher
}

func New(eventBus domain.EventPublisher) *Ledger {
	return &Ledger{
		balances: make(map[models.AssetID]map[models.AccountID]uint64),
		eventBus: eventBus,
	}
}

// Mint credits an account out of thin air. Used for genesis seeding and tests.
func (l *Ledger) Mint(asset models.AssetID, account models.AccountID, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.credit(asset, account, amount)
}

// Balance reports the current holding; missing accounts read as zero.
func (l *Ledger) Balance(asset models.AssetID, account models.AccountID) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[asset][account]
}

// Transfer moves amount of asset from one account to another. The debit and
// credit happen together or not at all.
func (l *Ledger) Transfer(ctx context.Context, asset models.AssetID, from, to models.AccountID, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	available := l.balances[asset][from]
	if available < amount {
		return ErrInsufficientFunds
	}
	if l.balances[asset][to] > math.MaxUint64-amount {
		return ErrBalanceOverflow
	}

	l.balances[asset][from] = available - amount
	if err := l.credit(asset, to, amount); err != nil {
		// Overflow was checked above; restore the debit all the same.
		l.balances[asset][from] = available
		return err
	}

	if l.eventBus != nil {
		_ = l.eventBus.PublishJSON(events.EventTransferMade, events.TransferMadePayload{
			Asset:  asset,
			From:   from,
			To:     to,
			Amount: amount,
		})
	}
	return nil
}

func (l *Ledger) credit(asset models.AssetID, account models.AccountID, amount uint64) error {
	accounts := l.balances[asset]
	if accounts == nil {
		accounts = make(map[models.AccountID]uint64)
		l.balances[asset] = accounts
	}
	if accounts[account] > math.MaxUint64-amount {
		return ErrBalanceOverflow
	}
	accounts[account] += amount
	return nil
}
