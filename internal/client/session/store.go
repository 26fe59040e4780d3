// Package session persists the small set of values that must survive a
// process restart within the same logical session: the user's salt and the
// derived master key. It is the Go analog of a browser's session storage, a
// key/value area scoped to the life of the session and wiped on logout.
package session

import "context"

// Store is a session-lifetime key/value store.
//
// Get returns (nil, nil) for an absent key so callers can distinguish
// "not set" from an error without a sentinel.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// SetMany writes all pairs atomically.
	SetMany(ctx context.Context, values map[string][]byte) error
	Delete(ctx context.Context, key string) error
	// Clear removes every key. Called on logout.
	Clear(ctx context.Context) error
}
