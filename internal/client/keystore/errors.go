package keystore

import "errors"

var (
	// ErrUninitialized is returned when an operation requiring the master key
	// runs before register/login completed. This is a sequencing bug in the
	// caller, not a condition to retry.
	ErrUninitialized = errors.New("key store uninitialized")

	// ErrMissingSalt is returned when login is attempted for an account that
	// never completed end-to-end encryption provisioning. Terminal for that
	// login attempt.
	ErrMissingSalt = errors.New("missing salt")

	// ErrDEKNotLoaded is returned when an account key is needed but neither
	// cached nor supplied in wrapped form.
	ErrDEKNotLoaded = errors.New("account key not loaded")

	// ErrOrgKeyNotLoaded is returned when an organization key is needed but
	// has not been loaded. Callers must load all relevant organization keys
	// before decrypting any account that belongs to those organizations.
	ErrOrgKeyNotLoaded = errors.New("organization key not loaded")
)
