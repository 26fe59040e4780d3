// Package services implements the client-side use cases on top of the API
// client and the key store: authentication, accounts, the transaction ledger
// and organization sharing. All encryption happens here or below; nothing
// above this layer ever sees a key.
package services

import (
	"context"
	"fmt"

	"github.com/ledgerlock/ledgerlock/internal/client/api"
	"github.com/ledgerlock/ledgerlock/internal/client/keystore"
	"github.com/ledgerlock/ledgerlock/internal/client/orgexchange"
	"github.com/ledgerlock/ledgerlock/internal/client/session"
	"github.com/ledgerlock/ledgerlock/internal/cryptox"
	"github.com/ledgerlock/ledgerlock/internal/logging"
)

// Session-store keys for the signed-in identity, alongside the key store's
// own entries.
const (
	sessionTokenKey = "access_token"
	sessionEmailKey = "email"
)

type AuthService interface {
	Register(ctx context.Context, email string, password []byte) error
	Login(ctx context.Context, email string, password []byte) error
	// Restore resumes a previous session from the local store without a
	// password, reporting the signed-in email when one was found.
	Restore(ctx context.Context) (string, bool, error)
	Logout(ctx context.Context) error
}

type authService struct {
	client   api.Client
	keys     *keystore.KeyStore
	exchange *orgexchange.Exchanger
	sess     session.Store
	log      logging.Logger
}

func NewAuthService(client api.Client, keys *keystore.KeyStore, exchange *orgexchange.Exchanger, sess session.Store, log logging.Logger) AuthService {
	if log == nil {
		log = logging.NopLogger{}
	}
	return &authService{client: client, keys: keys, exchange: exchange, sess: sess, log: log}
}

// Register creates the account end to end: derives the master key from a
// fresh salt, wraps a key for the user's default organization, generates the
// RSA pair and signs in. The password never leaves the process except inside
// the registration request itself.
func (s *authService) Register(ctx context.Context, email string, password []byte) error {
	saltB64, err := s.keys.InitOnRegister(ctx, password)
	if err != nil {
		return fmt.Errorf("initializing keys: %w", err)
	}

	orgKey := cryptox.GenerateDEK()
	wrappedOrgKey, err := s.keys.WrapWithMasterKey(orgKey)
	if err != nil {
		return fmt.Errorf("wrapping organization key: %w", err)
	}

	priv, err := cryptox.GenerateKeyPair()
	if err != nil {
		return err
	}
	publicKey, err := cryptox.MarshalPublicKey(&priv.PublicKey)
	if err != nil {
		return err
	}

	err = s.client.Register(ctx, api.RegisterRequest{
		Email:         email,
		Password:      string(password),
		Salt:          saltB64,
		WrappedOrgKey: wrappedOrgKey,
		PublicKey:     publicKey,
	})
	if err != nil {
		return fmt.Errorf("registering: %w", err)
	}

	// Registration does not authenticate; sign in to upload the encrypted
	// private key and load the default organization key.
	if _, err := s.client.Login(ctx, email, string(password)); err != nil {
		return fmt.Errorf("signing in after registration: %w", err)
	}
	if err := s.exchange.AdoptKeyPair(ctx, priv); err != nil {
		return err
	}

	if err := s.persistIdentity(ctx, email); err != nil {
		return err
	}
	s.loadOrganizationKeys(ctx)
	s.log.Info(ctx, "registered", "email", email)
	return nil
}

// Login authenticates, re-derives the master key from the server-stored salt
// and brings the RSA pair and organization keys into memory.
func (s *authService) Login(ctx context.Context, email string, password []byte) error {
	saltB64, err := s.client.Login(ctx, email, string(password))
	if err != nil {
		return err
	}
	if err := s.keys.InitOnLogin(ctx, password, saltB64); err != nil {
		return fmt.Errorf("initializing keys: %w", err)
	}
	if err := s.exchange.EnsureKeyPair(ctx); err != nil {
		return err
	}

	if err := s.persistIdentity(ctx, email); err != nil {
		return err
	}
	s.loadOrganizationKeys(ctx)
	s.log.Info(ctx, "logged in", "email", email)
	return nil
}

// Restore reloads the master key, bearer token and identity persisted by a
// previous login in the same session database. The token may have expired in
// the meantime; the next request will say so.
func (s *authService) Restore(ctx context.Context) (string, bool, error) {
	found, err := s.keys.Restore(ctx)
	if err != nil || !found {
		return "", false, err
	}

	token, err := s.sess.Get(ctx, sessionTokenKey)
	if err != nil {
		return "", false, err
	}
	email, err := s.sess.Get(ctx, sessionEmailKey)
	if err != nil {
		return "", false, err
	}
	if token == nil || email == nil {
		return "", false, nil
	}
	s.client.SetAccessToken(string(token))

	s.loadOrganizationKeys(ctx)
	s.log.Info(ctx, "session restored", "email", string(email))
	return string(email), true, nil
}

func (s *authService) persistIdentity(ctx context.Context, email string) error {
	err := s.sess.SetMany(ctx, map[string][]byte{
		sessionTokenKey: []byte(s.client.AccessToken()),
		sessionEmailKey: []byte(email),
	})
	if err != nil {
		return fmt.Errorf("persisting session identity: %w", err)
	}
	return nil
}

// Logout wipes every key from memory and the session store. The server is
// not involved; the bearer token simply stops being used.
func (s *authService) Logout(ctx context.Context) error {
	s.exchange.Clear()
	if err := s.keys.ClearKeys(ctx); err != nil {
		return fmt.Errorf("clearing keys: %w", err)
	}
	s.log.Info(ctx, "logged out")
	return nil
}

// loadOrganizationKeys unwraps the key of every organization the user
// belongs to. A key that fails to unwrap only disables that organization's
// shared accounts, so failures are logged and skipped.
func (s *authService) loadOrganizationKeys(ctx context.Context) {
	orgs, err := s.client.ListOrganizations(ctx)
	if err != nil {
		s.log.Warn(ctx, "listing organizations", "error", err)
		return
	}
	for _, org := range orgs {
		if _, err := s.keys.LoadOrganizationKey(org.ID, org.WrappedOrgKey); err != nil {
			s.log.Warn(ctx, "unwrapping organization key", "org_id", org.ID, "error", err)
		}
	}
}
