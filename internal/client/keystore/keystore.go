// Package keystore holds every unwrapped key of a session: the master key
// derived from the user's password, the per-account data-encryption keys and
// the shared organization keys.
//
// The store is an explicitly constructed object owned by the session; its
// lifecycle is Uninitialized -> Initialized on register/login and back on
// ClearKeys. The DEK and organization-key caches are sub-states that reset to
// empty whenever the store returns to Uninitialized.
//
// All methods are safe for concurrent use. Load operations are idempotent:
// the caches are consulted first and an unwrap result overwrites an identical
// value at worst, so redundant concurrent loads are wasted work rather than a
// correctness hazard.
package keystore

import (
	"context"
	"fmt"
	"sync"

	"github.com/ledgerlock/ledgerlock/internal/client/session"
	"github.com/ledgerlock/ledgerlock/internal/common"
	"github.com/ledgerlock/ledgerlock/internal/cryptox"
	"github.com/ledgerlock/ledgerlock/internal/logging"
)

// Fixed session-store keys. The salt is stored verbatim in its base64 text
// form; the master key as base64 of its raw bytes.
const (
	sessionSaltKey      = "e2e_salt"
	sessionMasterKeyKey = "e2e_master_key"
)

type KeyStore struct {
	mu   sync.RWMutex
	sess session.Store
	log  logging.Logger

	masterKey []byte
	salt      []byte
	deks      map[string][]byte
	orgKeys   map[string][]byte
}

// New constructs an empty (Uninitialized) key store backed by sess.
func New(sess session.Store, log logging.Logger) *KeyStore {
	if log == nil {
		log = logging.NopLogger{}
	}
	return &KeyStore{
		sess:    sess,
		log:     log,
		deks:    make(map[string][]byte),
		orgKeys: make(map[string][]byte),
	}
}

// InitOnRegister provisions end-to-end encryption for a brand-new user:
// it generates a fresh salt, derives the master key from the password, and
// persists both to the session store so a restart within the same session
// does not force re-authentication. The returned base64 salt is what the
// caller submits to the registration endpoint.
func (ks *KeyStore) InitOnRegister(ctx context.Context, password []byte) (string, error) {
	salt := cryptox.GenerateSalt()
	key := cryptox.DeriveMasterKey(password, salt)
	saltB64 := common.ToBase64(salt)

	if err := ks.install(ctx, key, salt, saltB64); err != nil {
		return "", err
	}
	ks.log.Info(ctx, "key store initialized", "reason", "register")
	return saltB64, nil
}

// InitOnLogin re-derives the master key from the salt issued at registration.
// saltB64 comes from the login response; an empty value means the account
// never completed E2EE provisioning and surfaces as ErrMissingSalt.
func (ks *KeyStore) InitOnLogin(ctx context.Context, password []byte, saltB64 string) error {
	if saltB64 == "" {
		return ErrMissingSalt
	}
	salt, err := common.FromBase64(saltB64)
	if err != nil {
		return fmt.Errorf("decoding salt: %w", err)
	}

	key := cryptox.DeriveMasterKey(password, salt)
	if err := ks.install(ctx, key, salt, saltB64); err != nil {
		return err
	}
	ks.log.Info(ctx, "key store initialized", "reason", "login")
	return nil
}

// Restore reloads the master key and salt persisted by a previous
// register/login in the same session. It reports whether a session was found.
func (ks *KeyStore) Restore(ctx context.Context) (bool, error) {
	saltText, err := ks.sess.Get(ctx, sessionSaltKey)
	if err != nil {
		return false, err
	}
	keyText, err := ks.sess.Get(ctx, sessionMasterKeyKey)
	if err != nil {
		return false, err
	}
	if saltText == nil || keyText == nil {
		return false, nil
	}

	salt, err := common.FromBase64(string(saltText))
	if err != nil {
		return false, fmt.Errorf("decoding persisted salt: %w", err)
	}
	key, err := common.FromBase64(string(keyText))
	if err != nil {
		return false, fmt.Errorf("decoding persisted master key: %w", err)
	}

	ks.mu.Lock()
	ks.masterKey = key
	ks.salt = salt
	ks.mu.Unlock()

	ks.log.Info(ctx, "key store restored from session")
	return true, nil
}

// ClearKeys wipes the master key, salt and both key caches from memory and
// from the session store. It is the only sanctioned way to end a key session
// and must be called on logout.
func (ks *KeyStore) ClearKeys(ctx context.Context) error {
	ks.mu.Lock()
	common.WipeByteArray(ks.masterKey)
	common.WipeByteArray(ks.salt)
	for _, dek := range ks.deks {
		common.WipeByteArray(dek)
	}
	for _, key := range ks.orgKeys {
		common.WipeByteArray(key)
	}
	ks.masterKey = nil
	ks.salt = nil
	ks.deks = make(map[string][]byte)
	ks.orgKeys = make(map[string][]byte)
	ks.mu.Unlock()

	if err := ks.sess.Clear(ctx); err != nil {
		return fmt.Errorf("clearing session store: %w", err)
	}
	ks.log.Info(ctx, "key store cleared")
	return nil
}

// HasMasterKey reports whether the store is initialized.
func (ks *KeyStore) HasMasterKey() bool {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.masterKey != nil
}

// MasterKey returns the session master key, or ErrUninitialized.
func (ks *KeyStore) MasterKey() ([]byte, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	if ks.masterKey == nil {
		return nil, ErrUninitialized
	}
	return ks.masterKey, nil
}

// SaltBase64 returns the session salt in its base64 wire form.
func (ks *KeyStore) SaltBase64() (string, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	if ks.salt == nil {
		return "", ErrUninitialized
	}
	return common.ToBase64(ks.salt), nil
}

// CreateAccountDEK generates a fresh DEK for a new account, wraps it under
// the master key and caches it under accountID.
func (ks *KeyStore) CreateAccountDEK(accountID string) ([]byte, cryptox.SymWrappedKey, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if ks.masterKey == nil {
		return nil, "", ErrUninitialized
	}

	dek := cryptox.GenerateDEK()
	wrapped, err := cryptox.WrapKey(ks.masterKey, dek)
	if err != nil {
		return nil, "", fmt.Errorf("wrapping account key: %w", err)
	}
	ks.deks[accountID] = dek
	return dek, wrapped, nil
}

// LoadAccountDEK returns the DEK for accountID, unwrapping wrapped under the
// master key on a cache miss. Repeated calls with the same id never re-unwrap.
func (ks *KeyStore) LoadAccountDEK(accountID string, wrapped cryptox.SymWrappedKey) ([]byte, error) {
	ks.mu.RLock()
	dek, ok := ks.deks[accountID]
	ks.mu.RUnlock()
	if ok {
		return dek, nil
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()
	if dek, ok := ks.deks[accountID]; ok {
		return dek, nil
	}
	if ks.masterKey == nil {
		return nil, ErrUninitialized
	}

	dek, err := cryptox.UnwrapKey(ks.masterKey, wrapped)
	if err != nil {
		return nil, fmt.Errorf("unwrapping account key: %w", err)
	}
	ks.deks[accountID] = dek
	return dek, nil
}

// RegisterDEK inserts an already-unwrapped DEK into the cache. Used to move a
// DEK created under a temporary placeholder id to the server-assigned real id
// once the create call returns; this is the only sanctioned way to rename a
// cache entry.
func (ks *KeyStore) RegisterDEK(accountID string, dek []byte) {
	ks.mu.Lock()
	ks.deks[accountID] = dek
	ks.mu.Unlock()
}

// ForgetDEK removes the cache entry for accountID. It does not wipe the key
// bytes: RegisterDEK aliases the same slice under the real server-assigned id,
// so wiping here would destroy the live key. Use it to drop the placeholder
// entry left behind by CreateAccountDEK once the rename has happened.
func (ks *KeyStore) ForgetDEK(accountID string) {
	ks.mu.Lock()
	delete(ks.deks, accountID)
	ks.mu.Unlock()
}

// AccountDEK returns the cached DEK for accountID, or ErrDEKNotLoaded.
func (ks *KeyStore) AccountDEK(accountID string) ([]byte, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	dek, ok := ks.deks[accountID]
	if !ok {
		return nil, ErrDEKNotLoaded
	}
	return dek, nil
}

// CreateOrganizationKey generates a fresh organization key, wraps it under
// the creator's master key and caches it under orgID.
func (ks *KeyStore) CreateOrganizationKey(orgID string) ([]byte, cryptox.SymWrappedKey, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if ks.masterKey == nil {
		return nil, "", ErrUninitialized
	}

	key := cryptox.GenerateDEK()
	wrapped, err := cryptox.WrapKey(ks.masterKey, key)
	if err != nil {
		return nil, "", fmt.Errorf("wrapping organization key: %w", err)
	}
	ks.orgKeys[orgID] = key
	return key, wrapped, nil
}

// LoadOrganizationKey returns the organization key for orgID, unwrapping
// wrapped under the master key on a cache miss.
func (ks *KeyStore) LoadOrganizationKey(orgID string, wrapped cryptox.SymWrappedKey) ([]byte, error) {
	ks.mu.RLock()
	key, ok := ks.orgKeys[orgID]
	ks.mu.RUnlock()
	if ok {
		return key, nil
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()
	if key, ok := ks.orgKeys[orgID]; ok {
		return key, nil
	}
	if ks.masterKey == nil {
		return nil, ErrUninitialized
	}

	key, err := cryptox.UnwrapKey(ks.masterKey, wrapped)
	if err != nil {
		return nil, fmt.Errorf("unwrapping organization key: %w", err)
	}
	ks.orgKeys[orgID] = key
	return key, nil
}

// RegisterOrganizationKey inserts an already-unwrapped organization key into
// the cache, e.g. after the server assigns the real id of a newly created
// organization.
func (ks *KeyStore) RegisterOrganizationKey(orgID string, key []byte) {
	ks.mu.Lock()
	ks.orgKeys[orgID] = key
	ks.mu.Unlock()
}

// ForgetOrganizationKey removes the cache entry for orgID without wiping the
// key bytes, for the same aliasing reason as ForgetDEK.
func (ks *KeyStore) ForgetOrganizationKey(orgID string) {
	ks.mu.Lock()
	delete(ks.orgKeys, orgID)
	ks.mu.Unlock()
}

// OrganizationKey returns the cached key for orgID, or ErrOrgKeyNotLoaded.
func (ks *KeyStore) OrganizationKey(orgID string) ([]byte, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	key, ok := ks.orgKeys[orgID]
	if !ok {
		return nil, ErrOrgKeyNotLoaded
	}
	return key, nil
}

// LoadOrgAccountDEK is LoadAccountDEK for an account owned by an
// organization: the wrapped DEK unwraps under the organization key, which
// must have been loaded first.
func (ks *KeyStore) LoadOrgAccountDEK(accountID, orgID string, wrapped cryptox.SymWrappedKey) ([]byte, error) {
	ks.mu.RLock()
	dek, ok := ks.deks[accountID]
	ks.mu.RUnlock()
	if ok {
		return dek, nil
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()
	if dek, ok := ks.deks[accountID]; ok {
		return dek, nil
	}
	orgKey, ok := ks.orgKeys[orgID]
	if !ok {
		return nil, ErrOrgKeyNotLoaded
	}

	dek, err := cryptox.UnwrapKey(orgKey, wrapped)
	if err != nil {
		return nil, fmt.Errorf("unwrapping account key with organization key: %w", err)
	}
	ks.deks[accountID] = dek
	return dek, nil
}

// RewrapDEKWithOrgKey re-wraps an already-cached account DEK under an
// organization key instead of the master key: the operation that migrates a
// personal account into shared organizational ownership. Both the DEK and the
// target organization key must already be cached.
func (ks *KeyStore) RewrapDEKWithOrgKey(accountID, orgID string) (cryptox.SymWrappedKey, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	dek, ok := ks.deks[accountID]
	if !ok {
		return "", ErrDEKNotLoaded
	}
	orgKey, ok := ks.orgKeys[orgID]
	if !ok {
		return "", ErrOrgKeyNotLoaded
	}

	wrapped, err := cryptox.WrapKey(orgKey, dek)
	if err != nil {
		return "", fmt.Errorf("rewrapping account key: %w", err)
	}
	return wrapped, nil
}

// WrapWithMasterKey wraps arbitrary raw key bytes under the master key.
// Used by the invitation flow to normalize a received organization key into
// the same wrapped form used everywhere else.
func (ks *KeyStore) WrapWithMasterKey(raw []byte) (cryptox.SymWrappedKey, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	if ks.masterKey == nil {
		return "", ErrUninitialized
	}
	return cryptox.WrapKey(ks.masterKey, raw)
}

func (ks *KeyStore) install(ctx context.Context, key, salt []byte, saltB64 string) error {
	if err := ks.sess.SetMany(ctx, map[string][]byte{
		sessionSaltKey:      []byte(saltB64),
		sessionMasterKeyKey: []byte(common.ToBase64(key)),
	}); err != nil {
		return fmt.Errorf("persisting session keys: %w", err)
	}

	ks.mu.Lock()
	ks.masterKey = key
	ks.salt = salt
	ks.mu.Unlock()
	return nil
}
