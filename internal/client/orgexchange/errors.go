package orgexchange

import "errors"

// ErrNoKeyPair is returned when an operation needs the RSA key pair before
// EnsureKeyPair has run.
var ErrNoKeyPair = errors.New("key pair not loaded")
