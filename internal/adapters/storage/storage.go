// Package storage provides the string key-value slots the rating state is
// persisted in.
//
// Values are opaque JSON text. A missing key is reported through the ok
// result of Get, never as an error.
package storage

import "context"

// Slot names used by the rating state.
const (
	KeyState   = "eloState"
	KeyHistory = "eloHistory"
)

// Store is a string key-value store.
type Store interface {
	// Get returns the value stored under key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Close releases resources. Further calls fail with ErrClosed.
	Close() error
}
