package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgerlock/ledgerlock/internal/client/api"
	"github.com/ledgerlock/ledgerlock/internal/client/keystore"
	"github.com/ledgerlock/ledgerlock/internal/client/models"
	"github.com/ledgerlock/ledgerlock/internal/client/orgexchange"
	"github.com/ledgerlock/ledgerlock/internal/client/session"
	"github.com/ledgerlock/ledgerlock/internal/cryptox"
)

// ---- session store fake ----

type memStore struct {
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte) error {
	s.data[key] = value
	return nil
}

func (s *memStore) SetMany(_ context.Context, values map[string][]byte) error {
	for k, v := range values {
		s.data[k] = v
	}
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	delete(s.data, key)
	return nil
}

func (s *memStore) Clear(_ context.Context) error {
	s.data = map[string][]byte{}
	return nil
}

var _ session.Store = (*memStore)(nil)

// ---- backend fake ----

// fakeBackend is an in-memory stand-in for the whole server, shared between
// the fakeClients of different users so cross-user flows can be exercised.
type fakeBackend struct {
	users        map[string]*fakeUser
	accounts     map[string]*models.Account
	transactions map[string]*models.Transaction
	deletedTxs   map[string]*models.Transaction
	orgs         map[string]*models.Organization
	members      map[string]map[string]orgMembership
	invitations  []*models.Invitation

	seq int
	now time.Time
}

type fakeUser struct {
	password            string
	salt                string
	publicKey           string
	encryptedPrivateKey string
}

type orgMembership struct {
	role          string
	wrappedOrgKey cryptox.SymWrappedKey
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		users:        map[string]*fakeUser{},
		accounts:     map[string]*models.Account{},
		transactions: map[string]*models.Transaction{},
		deletedTxs:   map[string]*models.Transaction{},
		orgs:         map[string]*models.Organization{},
		members:      map[string]map[string]orgMembership{},
		now:          time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (b *fakeBackend) nextID(prefix string) string {
	b.seq++
	return fmt.Sprintf("%s-%d", prefix, b.seq)
}

// tick advances the server clock so every created record gets a distinct
// creation time.
func (b *fakeBackend) tick() time.Time {
	b.now = b.now.Add(time.Second)
	return b.now
}

func (b *fakeBackend) addMember(orgID, email, role string, wrapped cryptox.SymWrappedKey) {
	if b.members[orgID] == nil {
		b.members[orgID] = map[string]orgMembership{}
	}
	b.members[orgID][email] = orgMembership{role: role, wrappedOrgKey: wrapped}
}

// fakeClient implements api.Client for one user against the shared backend.
type fakeClient struct {
	b     *fakeBackend
	email string
	token string
}

var _ api.Client = (*fakeClient)(nil)

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) AccessToken() string { return f.token }

// SetAccessToken also recovers the identity the token encodes, the way a
// real server would authenticate the bearer.
func (f *fakeClient) SetAccessToken(token string) {
	f.token = token
	f.email = strings.TrimPrefix(token, "token-for-")
}

func (f *fakeClient) Register(_ context.Context, req api.RegisterRequest) error {
	if _, ok := f.b.users[req.Email]; ok {
		return fmt.Errorf("server error: email already registered")
	}
	f.b.users[req.Email] = &fakeUser{
		password:  req.Password,
		salt:      req.Salt,
		publicKey: req.PublicKey,
	}

	// Registration provisions a default organization with the caller as its
	// only member.
	orgID := f.b.nextID("org")
	f.b.orgs[orgID] = &models.Organization{ID: orgID, Name: "Personal", CreatedAt: f.b.tick()}
	f.b.addMember(orgID, req.Email, "owner", req.WrappedOrgKey)
	return nil
}

func (f *fakeClient) Login(_ context.Context, email, password string) (string, error) {
	u, ok := f.b.users[email]
	if !ok || u.password != password {
		return "", api.ErrUnauthorized
	}
	f.email = email
	f.token = "token-for-" + email
	return u.salt, nil
}

func (f *fakeClient) GetPublicKey(_ context.Context, email string) (string, error) {
	u, ok := f.b.users[email]
	if !ok || u.publicKey == "" {
		return "", api.ErrRecipientKeyUnavailable
	}
	return u.publicKey, nil
}

func (f *fakeClient) GetEncryptedPrivateKey(context.Context) (string, string, error) {
	u := f.b.users[f.email]
	if u == nil || u.encryptedPrivateKey == "" {
		return "", "", api.ErrNotFound
	}
	return u.encryptedPrivateKey, u.publicKey, nil
}

func (f *fakeClient) StoreEncryptedPrivateKey(_ context.Context, encrypted, public string) error {
	u := f.b.users[f.email]
	if u == nil {
		return api.ErrUnauthorized
	}
	u.encryptedPrivateKey = encrypted
	u.publicKey = public
	return nil
}

func (f *fakeClient) ListAccounts(context.Context) ([]models.Account, error) {
	var out []models.Account
	for _, acc := range f.b.accounts {
		if acc.UserID == f.email || f.isMember(acc.OrganizationID) {
			out = append(out, *acc)
		}
	}
	return out, nil
}

func (f *fakeClient) isMember(orgID string) bool {
	if orgID == "" {
		return false
	}
	_, ok := f.b.members[orgID][f.email]
	return ok
}

func (f *fakeClient) GetAccount(_ context.Context, id string) (*models.Account, error) {
	acc, ok := f.b.accounts[id]
	if !ok {
		return nil, api.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (f *fakeClient) CreateAccount(_ context.Context, req api.CreateAccountRequest) (*models.Account, error) {
	now := f.b.tick()
	acc := &models.Account{
		ID:                f.b.nextID("acc"),
		UserID:            f.email,
		OrganizationID:    req.OrganizationID,
		EncryptedData:     req.EncryptedData,
		EncryptedDEK:      req.EncryptedDEK,
		Currency:          req.Currency,
		EncryptionVersion: req.EncryptionVersion,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	f.b.accounts[acc.ID] = acc
	cp := *acc
	return &cp, nil
}

func (f *fakeClient) UpdateAccount(_ context.Context, id string, req api.UpdateAccountRequest) (*models.Account, error) {
	acc, ok := f.b.accounts[id]
	if !ok {
		return nil, api.ErrNotFound
	}
	if req.EncryptedData != "" {
		acc.EncryptedData = req.EncryptedData
	}
	if req.Migrated != nil && *req.Migrated {
		acc.OrganizationID = req.OrganizationID
		acc.EncryptedDEK = req.WrappedDEK
	}
	acc.UpdatedAt = f.b.tick()
	cp := *acc
	return &cp, nil
}

func (f *fakeClient) DeleteAccount(_ context.Context, id string) error {
	if _, ok := f.b.accounts[id]; !ok {
		return api.ErrNotFound
	}
	delete(f.b.accounts, id)
	return nil
}

func (f *fakeClient) ListTransactions(_ context.Context, accountID string) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, tx := range f.b.transactions {
		if tx.AccountID == accountID {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (f *fakeClient) CreateTransaction(_ context.Context, req api.CreateTransactionRequest) (*models.Transaction, error) {
	now := f.b.tick()
	tx := &models.Transaction{
		ID:                f.b.nextID("tx"),
		AccountID:         req.AccountID,
		Date:              req.Date,
		EncryptedData:     req.EncryptedData,
		EncryptionVersion: req.EncryptionVersion,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	f.b.transactions[tx.ID] = tx
	cp := *tx
	return &cp, nil
}

func (f *fakeClient) UpdateTransaction(_ context.Context, id string, req api.UpdateTransactionRequest) (*models.Transaction, error) {
	tx, ok := f.b.transactions[id]
	if !ok {
		return nil, api.ErrNotFound
	}
	if req.Date != "" {
		tx.Date = req.Date
	}
	if req.EncryptedData != "" {
		tx.EncryptedData = req.EncryptedData
	}
	if req.EncryptionVersion != 0 {
		tx.EncryptionVersion = req.EncryptionVersion
	}
	tx.UpdatedAt = f.b.tick()
	cp := *tx
	return &cp, nil
}

// DeleteTransaction soft-deletes: the row moves aside with its blob intact,
// the way the real server keeps it until restored or purged.
func (f *fakeClient) DeleteTransaction(_ context.Context, id string) error {
	tx, ok := f.b.transactions[id]
	if !ok {
		return api.ErrNotFound
	}
	f.b.deletedTxs[id] = tx
	delete(f.b.transactions, id)
	return nil
}

func (f *fakeClient) RestoreTransaction(_ context.Context, id string) (*models.Transaction, error) {
	tx, ok := f.b.deletedTxs[id]
	if !ok {
		return nil, api.ErrNotFound
	}
	f.b.transactions[id] = tx
	delete(f.b.deletedTxs, id)
	tx.UpdatedAt = f.b.tick()
	cp := *tx
	return &cp, nil
}

func (f *fakeClient) CreateOrganization(_ context.Context, name string, wrappedOrgKey cryptox.SymWrappedKey) (*models.Organization, error) {
	orgID := f.b.nextID("org")
	f.b.orgs[orgID] = &models.Organization{ID: orgID, Name: name, CreatedAt: f.b.tick()}
	f.b.addMember(orgID, f.email, "owner", wrappedOrgKey)

	return &models.Organization{ID: orgID, Name: name, Role: "owner", WrappedOrgKey: wrappedOrgKey}, nil
}

func (f *fakeClient) ListOrganizations(context.Context) ([]models.Organization, error) {
	var out []models.Organization
	for orgID, members := range f.b.members {
		m, ok := members[f.email]
		if !ok {
			continue
		}
		org := *f.b.orgs[orgID]
		org.Role = m.role
		org.WrappedOrgKey = m.wrappedOrgKey
		out = append(out, org)
	}
	return out, nil
}

func (f *fakeClient) CreateInvitation(_ context.Context, orgID string, req api.CreateInvitationRequest) (*models.Invitation, error) {
	if _, ok := f.b.orgs[orgID]; !ok {
		return nil, api.ErrNotFound
	}
	now := f.b.tick()
	inv := &models.Invitation{
		ID:             f.b.nextID("inv"),
		OrganizationID: orgID,
		Email:          req.Email,
		Role:           req.Role,
		WrappedOrgKey:  req.WrappedOrgKey,
		Token:          f.b.nextID("token"),
		Message:        req.Message,
		ExpiresAt:      now.Add(72 * time.Hour),
		CreatedAt:      now,
	}
	f.b.invitations = append(f.b.invitations, inv)
	cp := *inv
	return &cp, nil
}

func (f *fakeClient) ListInvitations(context.Context) ([]models.Invitation, error) {
	var out []models.Invitation
	for _, inv := range f.b.invitations {
		if inv.Email == f.email {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (f *fakeClient) AcceptInvitation(_ context.Context, token string, wrappedOrgKey cryptox.SymWrappedKey) (*models.Invitation, error) {
	for i, inv := range f.b.invitations {
		if inv.Token != token || inv.Email != f.email {
			continue
		}
		f.b.addMember(inv.OrganizationID, f.email, inv.Role, wrappedOrgKey)
		f.b.invitations = append(f.b.invitations[:i], f.b.invitations[i+1:]...)
		cp := *inv
		return &cp, nil
	}
	return nil, api.ErrNotFound
}

func (f *fakeClient) RejectInvitation(_ context.Context, token string) (*models.Invitation, error) {
	for i, inv := range f.b.invitations {
		if inv.Token != token || inv.Email != f.email {
			continue
		}
		f.b.invitations = append(f.b.invitations[:i], f.b.invitations[i+1:]...)
		cp := *inv
		return &cp, nil
	}
	return nil, api.ErrNotFound
}

// ---- per-user test environment ----

type testEnv struct {
	client   *fakeClient
	sess     *memStore
	keys     *keystore.KeyStore
	exchange *orgexchange.Exchanger

	auth AuthService
	accs AccountService
	txs  TransactionService
	orgs OrganizationService
}

func newTestEnv(t *testing.T, backend *fakeBackend) *testEnv {
	t.Helper()
	return newTestEnvWithSession(t, backend, newMemStore())
}

// newTestEnvWithSession builds an environment over an existing session store,
// simulating a process restart on the same machine.
func newTestEnvWithSession(t *testing.T, backend *fakeBackend, sess *memStore) *testEnv {
	t.Helper()

	client := &fakeClient{b: backend}
	keys := keystore.New(sess, nil)
	exchange := orgexchange.New(client, keys, nil)

	return &testEnv{
		client:   client,
		sess:     sess,
		keys:     keys,
		exchange: exchange,
		auth:     NewAuthService(client, keys, exchange, sess, nil),
		accs:     NewAccountService(client, keys, nil),
		txs:      NewTransactionService(client, keys, nil),
		orgs:     NewOrganizationService(client, keys, exchange, nil),
	}
}

func registerUser(t *testing.T, env *testEnv, email string) {
	t.Helper()
	require.NoError(t, env.auth.Register(context.Background(), email, []byte("correct horse battery")))
}
