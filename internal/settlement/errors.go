package settlement

import "errors"

// Validation failures raised by the purchase path. Collaborator errors
// (insufficient funds, slippage, liquidity) are propagated verbatim and are
// not listed here.
var (
	ErrInsufficientStock = errors.New("not enough quantity on hand")
	ErrNoPriceSet        = errors.New("no price recorded for item")
	ErrNoOwner           = errors.New("no owner recorded for item")
	ErrPriceOverflow     = errors.New("total price overflows")
	ErrPriceTooLow       = errors.New("maximum paying amount is too low")
)
