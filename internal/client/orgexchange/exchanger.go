// Package orgexchange moves organization keys between users. Each user owns
// an RSA key pair; the public half lives on the server in the clear, the
// private half is stored server-side encrypted under the user's master key.
// An inviter wraps the organization key with the invitee's public key, and
// the invitee unwraps it with their private key and re-wraps it under their
// own master key.
package orgexchange

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"sync"

	"github.com/ledgerlock/ledgerlock/internal/client/api"
	"github.com/ledgerlock/ledgerlock/internal/client/keystore"
	"github.com/ledgerlock/ledgerlock/internal/cryptox"
	"github.com/ledgerlock/ledgerlock/internal/logging"
)

type Exchanger struct {
	client api.Client
	keys   *keystore.KeyStore
	log    logging.Logger

	mu        sync.Mutex
	priv      *rsa.PrivateKey
	publicKey string
}

func New(client api.Client, keys *keystore.KeyStore, log logging.Logger) *Exchanger {
	if log == nil {
		log = logging.NopLogger{}
	}
	return &Exchanger{client: client, keys: keys, log: log}
}

// EnsureKeyPair makes the user's RSA key pair available in memory, fetching
// and decrypting the stored one or generating and uploading a new one on
// first use. Safe to call repeatedly.
func (e *Exchanger) EnsureKeyPair(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.priv != nil {
		return nil
	}

	master, err := e.keys.MasterKey()
	if err != nil {
		return err
	}

	encrypted, publicKey, err := e.client.GetEncryptedPrivateKey(ctx)
	switch {
	case errors.Is(err, api.ErrNotFound):
		encrypted = ""
	case err != nil:
		return fmt.Errorf("fetching encrypted private key: %w", err)
	}

	if encrypted == "" {
		return e.generateAndStore(ctx, master)
	}

	der, err := cryptox.Decrypt(master, encrypted)
	if err != nil {
		return fmt.Errorf("decrypting private key: %w", err)
	}
	priv, err := cryptox.ParsePrivateKey(der)
	if err != nil {
		return err
	}
	e.priv = priv
	e.publicKey = publicKey
	e.log.Debug(ctx, "loaded stored key pair")
	return nil
}

func (e *Exchanger) generateAndStore(ctx context.Context, master []byte) error {
	priv, err := cryptox.GenerateKeyPair()
	if err != nil {
		return err
	}
	if err := e.storeLocked(ctx, master, priv); err != nil {
		return err
	}
	e.log.Info(ctx, "generated key pair")
	return nil
}

// storeLocked encrypts and uploads the pair and caches it. e.mu must be held.
func (e *Exchanger) storeLocked(ctx context.Context, master []byte, priv *rsa.PrivateKey) error {
	der, err := cryptox.MarshalPrivateKey(priv)
	if err != nil {
		return err
	}
	encrypted, err := cryptox.Encrypt(master, der)
	if err != nil {
		return fmt.Errorf("encrypting private key: %w", err)
	}
	publicKey, err := cryptox.MarshalPublicKey(&priv.PublicKey)
	if err != nil {
		return err
	}
	if err := e.client.StoreEncryptedPrivateKey(ctx, encrypted, publicKey); err != nil {
		return fmt.Errorf("storing encrypted private key: %w", err)
	}

	e.priv = priv
	e.publicKey = publicKey
	return nil
}

// AdoptKeyPair takes ownership of an already-generated pair and uploads its
// encrypted private half. Registration needs this: it creates the pair
// before the authenticated upload endpoint is reachable.
func (e *Exchanger) AdoptKeyPair(ctx context.Context, priv *rsa.PrivateKey) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	master, err := e.keys.MasterKey()
	if err != nil {
		return err
	}
	return e.storeLocked(ctx, master, priv)
}

// PublicKey returns the user's public key in transport form. EnsureKeyPair
// must have succeeded first.
func (e *Exchanger) PublicKey() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.publicKey == "" {
		return "", ErrNoKeyPair
	}
	return e.publicKey, nil
}

// WrapOrgKeyForInvitee wraps the organization key with the invitee's public
// key so only they can recover it. The organization key must already be
// loaded in the key store.
func (e *Exchanger) WrapOrgKeyForInvitee(ctx context.Context, orgID, email string) (cryptox.RSAWrappedKey, error) {
	orgKey, err := e.keys.OrganizationKey(orgID)
	if err != nil {
		return "", err
	}

	publicKey, err := e.client.GetPublicKey(ctx, email)
	if err != nil {
		return "", err
	}
	pub, err := cryptox.ParsePublicKey(publicKey)
	if err != nil {
		return "", err
	}
	return cryptox.EncryptWithPublicKey(pub, orgKey)
}

// UnwrapInvitationOrgKey recovers the organization key from an invitation
// and re-wraps it under the user's master key, ready to send back on accept.
func (e *Exchanger) UnwrapInvitationOrgKey(ctx context.Context, wrapped cryptox.RSAWrappedKey) (cryptox.SymWrappedKey, error) {
	if err := e.EnsureKeyPair(ctx); err != nil {
		return "", err
	}

	e.mu.Lock()
	priv := e.priv
	e.mu.Unlock()

	orgKey, err := cryptox.DecryptWithPrivateKey(priv, wrapped)
	if err != nil {
		return "", fmt.Errorf("unwrapping invitation key: %w", err)
	}
	return e.keys.WrapWithMasterKey(orgKey)
}

// Clear drops the in-memory key pair, e.g. on logout.
func (e *Exchanger) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.priv = nil
	e.publicKey = ""
}
