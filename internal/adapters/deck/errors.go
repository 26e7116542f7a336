package deck

import "errors"

// Sentinel kinds for deck loading errors.
var (
	ErrReadDeck    = errors.New("read deck config failed")
	ErrInvalidDeck = errors.New("deck config has no itemNames array")
)
