package catalog

import "errors"

var (
	// ErrIDSpaceExhausted means the id counter cannot advance without
	// overflowing. No id is consumed when this happens.
	ErrIDSpaceExhausted = errors.New("no new item id is available")

	// ErrItemNotFound means no catalog record exists for the given id.
	ErrItemNotFound = errors.New("item not found")
)
