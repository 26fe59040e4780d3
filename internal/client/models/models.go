// Package models defines the client-side view of server records and the
// versioned plaintext payloads hidden inside their encrypted blobs.
//
// Server records (Account, Transaction, ...) carry the JSON field names of
// the backend API verbatim; the sensitive payload travels only inside
// encrypted_data. Decrypted* types are transient in-memory views and are
// never persisted or sent anywhere.
package models

import (
	"time"

	"github.com/ledgerlock/ledgerlock/internal/cryptox"
)

// Account is the server's record of an account. Everything sensitive lives
// inside EncryptedData; the DEK travels only in wrapped form.
//
// Exactly one wrapping key governs the DEK at any time: the owner's master
// key for a personal account (OrganizationID empty), or the owning
// organization's key for a shared one.
type Account struct {
	ID                string                `json:"id"`
	UserID            string                `json:"user_id,omitempty"`
	OrganizationID    string                `json:"organization_id,omitempty"`
	EncryptedData     string                `json:"encrypted_data"`
	EncryptedDEK      cryptox.SymWrappedKey `json:"encrypted_dek"`
	Currency          string                `json:"currency"`
	EncryptionVersion int                   `json:"encryption_version"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

// Transaction is the server's record of one ledger entry. The date stays
// plaintext so the server can order listings chronologically; amount,
// counterparty and note live inside EncryptedData.
type Transaction struct {
	ID                string    `json:"id"`
	AccountID         string    `json:"account_id"`
	Date              string    `json:"date"`
	EncryptedData     string    `json:"encrypted_data"`
	EncryptionVersion int       `json:"encryption_version"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	// Legacy plaintext columns, populated only on encryption_version 0 rows
	// created before client-side encryption. The server keeps them nullable
	// while the two generations of rows coexist.
	Amount     *float64 `json:"amount,omitempty"`
	PaidToFrom string   `json:"paid_to_from,omitempty"`
	Narration  string   `json:"narration,omitempty"`
}

// Organization is the server's record of an organization as seen by one
// member: it includes that member's own wrapped copy of the organization key.
// Names are not sensitive in this design.
type Organization struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	Role          string                `json:"role"`
	WrappedOrgKey cryptox.SymWrappedKey `json:"wrapped_org_key"`
	CreatedAt     time.Time             `json:"created_at"`
}

// Invitation carries an organization key RSA-wrapped for a single invitee.
// The wrapped key is opaque to the server and to everyone but the invitee.
type Invitation struct {
	ID             string                `json:"id"`
	OrganizationID string                `json:"organization_id"`
	Email          string                `json:"email"`
	Role           string                `json:"role"`
	WrappedOrgKey  cryptox.RSAWrappedKey `json:"wrapped_org_key"`
	Token          string                `json:"token"`
	Message        string                `json:"message,omitempty"`
	ExpiresAt      time.Time             `json:"expires_at"`
	CreatedAt      time.Time             `json:"created_at"`
}

// DecryptedAccount is the transient plaintext view of an account.
type DecryptedAccount struct {
	ID             string
	Name           string
	OpeningBalance float64
	Currency       string
	OrganizationID string
}

// DecryptedTransaction is the transient plaintext view of one ledger entry
// plus its derived fields. BalanceAfter and SerialNumber are computed, not
// stored: they are recomputed from the full ordered set on every mutation.
type DecryptedTransaction struct {
	ID           string
	Date         string
	Amount       float64
	Counterparty string
	Note         string
	BalanceAfter float64
	SerialNumber int
	CreatedAt    time.Time
}
