package api

import "errors"

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")

	// ErrRecipientKeyUnavailable means the invitee has never logged in, so no
	// key pair exists for them yet. User-actionable ("ask them to log in
	// once first"), and deliberately distinct from generic fetch failures.
	ErrRecipientKeyUnavailable = errors.New("recipient has no published public key")
)
