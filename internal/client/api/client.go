// Package api is the client of the LedgerLock backend REST API.
//
// The backend is untrusted: everything sensitive travels inside opaque
// encrypted blobs (encrypted_data, encrypted_dek, wrapped_org_key) and the
// server only ever sees ciphertext, plaintext dates and timestamps.
package api

import (
	"context"

	"github.com/ledgerlock/ledgerlock/internal/client/models"
	"github.com/ledgerlock/ledgerlock/internal/cryptox"
)

// Client is the request/response contract consumed by the services layer.
type Client interface {
	Close() error

	// Auth and key-pair storage. Login stores the bearer token on the
	// client; AccessToken/SetAccessToken expose it so a session can survive
	// a process restart.
	Register(ctx context.Context, req RegisterRequest) error
	Login(ctx context.Context, email, password string) (saltB64 string, err error)
	AccessToken() string
	SetAccessToken(token string)
	GetPublicKey(ctx context.Context, email string) (string, error)
	GetEncryptedPrivateKey(ctx context.Context) (encryptedPrivateKey, publicKey string, err error)
	StoreEncryptedPrivateKey(ctx context.Context, encryptedPrivateKey, publicKey string) error

	// Accounts.
	ListAccounts(ctx context.Context) ([]models.Account, error)
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	CreateAccount(ctx context.Context, req CreateAccountRequest) (*models.Account, error)
	UpdateAccount(ctx context.Context, id string, req UpdateAccountRequest) (*models.Account, error)
	DeleteAccount(ctx context.Context, id string) error

	// Transactions. Deletion is a server-side soft delete: the encrypted
	// blob stays in place and RestoreTransaction brings the row back.
	ListTransactions(ctx context.Context, accountID string) ([]models.Transaction, error)
	CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, req UpdateTransactionRequest) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	RestoreTransaction(ctx context.Context, id string) (*models.Transaction, error)

	// Organizations and invitations.
	CreateOrganization(ctx context.Context, name string, wrappedOrgKey cryptox.SymWrappedKey) (*models.Organization, error)
	ListOrganizations(ctx context.Context) ([]models.Organization, error)
	CreateInvitation(ctx context.Context, orgID string, req CreateInvitationRequest) (*models.Invitation, error)
	ListInvitations(ctx context.Context) ([]models.Invitation, error)
	AcceptInvitation(ctx context.Context, token string, wrappedOrgKey cryptox.SymWrappedKey) (*models.Invitation, error)
	RejectInvitation(ctx context.Context, token string) (*models.Invitation, error)
}

// RegisterRequest provisions a new user. Salt, the default organization's
// wrapped key and the RSA public key are all generated client-side before
// registration.
type RegisterRequest struct {
	Email         string                `json:"email"`
	Password      string                `json:"password"`
	Salt          string                `json:"salt"`
	WrappedOrgKey cryptox.SymWrappedKey `json:"wrapped_org_key"`
	PublicKey     string                `json:"public_key,omitempty"`
}

type CreateAccountRequest struct {
	EncryptedData     string                `json:"encrypted_data"`
	EncryptedDEK      cryptox.SymWrappedKey `json:"encrypted_dek"`
	Currency          string                `json:"currency"`
	EncryptionVersion int                   `json:"encryption_version"`
	OrganizationID    string                `json:"organization_id,omitempty"`
}

// UpdateAccountRequest also carries the account-migration fields: moving a
// personal account into an organization sends the new organization id plus
// the DEK re-wrapped under that organization's key.
type UpdateAccountRequest struct {
	EncryptedData  string                `json:"encrypted_data,omitempty"`
	OrganizationID string                `json:"organization_id,omitempty"`
	WrappedDEK     cryptox.SymWrappedKey `json:"wrapped_dek,omitempty"`
	Migrated       *bool                 `json:"migrated,omitempty"`
}

type CreateTransactionRequest struct {
	AccountID         string `json:"account_id"`
	Date              string `json:"date"`
	EncryptedData     string `json:"encrypted_data"`
	EncryptionVersion int    `json:"encryption_version"`
}

type UpdateTransactionRequest struct {
	Date              string `json:"date,omitempty"`
	EncryptedData     string `json:"encrypted_data,omitempty"`
	EncryptionVersion int    `json:"encryption_version,omitempty"`
}

type CreateInvitationRequest struct {
	Email         string                `json:"email"`
	Role          string                `json:"role"`
	WrappedOrgKey cryptox.RSAWrappedKey `json:"wrapped_org_key"`
	Message       string                `json:"message,omitempty"`
}
