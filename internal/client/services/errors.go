package services

import "errors"

var (
	// ErrDuplicateTransaction is returned when an identical transaction was
	// recorded moments ago, most likely a double submission.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrOrganizationNotFound is returned when the user is not a member of
	// the named organization.
	ErrOrganizationNotFound = errors.New("organization not found")

	// ErrInvitationNotFound is returned when no pending invitation matches
	// the given token.
	ErrInvitationNotFound = errors.New("invitation not found")
)
