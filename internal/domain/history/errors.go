package history

import "errors"

// ErrCorruptHistory reports persisted history that could not be decoded.
var ErrCorruptHistory = errors.New("history: corrupt persisted history")
