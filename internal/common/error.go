// Package common holds small helpers shared across the client layers:
// random bytes, base64 codecs, byte wiping and a sentinel error or two.
// Callers match the sentinels with errors.Is.
package common

import "errors"

// ErrTokenExpired marks a bearer token whose exp claim has passed. The API
// client wraps it into its unauthorized error so a new login can be prompted
// without a wasted round-trip.
var ErrTokenExpired = errors.New("token expired")
