package storage

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrClosed     = errors.New("store closed")
	ErrEmptyKey   = errors.New("empty storage key")
	ErrOpenStore  = errors.New("open store failed")
	ErrStoreQuery = errors.New("store query failed")
)
