package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ledgerlock/ledgerlock/internal/client/api"
	"github.com/ledgerlock/ledgerlock/internal/client/keystore"
	"github.com/ledgerlock/ledgerlock/internal/client/ledger"
	"github.com/ledgerlock/ledgerlock/internal/client/models"
	"github.com/ledgerlock/ledgerlock/internal/logging"
)

type AccountService interface {
	Create(ctx context.Context, name string, openingBalance float64, currency string) (*models.Account, error)
	List(ctx context.Context) ([]models.DecryptedAccount, error)
	Update(ctx context.Context, id, name string, openingBalance float64) error
	Delete(ctx context.Context, id string) error
	MigrateToOrganization(ctx context.Context, accountID, orgID string) error
}

type accountService struct {
	client api.Client
	keys   *keystore.KeyStore
	log    logging.Logger
}

func NewAccountService(client api.Client, keys *keystore.KeyStore, log logging.Logger) AccountService {
	if log == nil {
		log = logging.NopLogger{}
	}
	return &accountService{client: client, keys: keys, log: log}
}

// Create mints a fresh DEK for the account, encrypts the payload under it
// and uploads both. The DEK travels only wrapped under the master key.
func (s *accountService) Create(ctx context.Context, name string, openingBalance float64, currency string) (*models.Account, error) {
	// The server assigns the real id; cache the DEK under a placeholder
	// until the response arrives.
	placeholder := uuid.NewString()
	dek, wrappedDEK, err := s.keys.CreateAccountDEK(placeholder)
	if err != nil {
		return nil, fmt.Errorf("creating DEK: %w", err)
	}

	blob, err := ledger.EncryptAccountPayload(dek, models.AccountPayloadV1{
		Name:           name,
		OpeningBalance: openingBalance,
	})
	if err != nil {
		return nil, err
	}

	account, err := s.client.CreateAccount(ctx, api.CreateAccountRequest{
		EncryptedData:     blob,
		EncryptedDEK:      wrappedDEK,
		Currency:          currency,
		EncryptionVersion: models.EncryptionVersionV1,
	})
	if err != nil {
		return nil, fmt.Errorf("creating account: %w", err)
	}

	s.keys.RegisterDEK(account.ID, dek)
	s.keys.ForgetDEK(placeholder)
	return account, nil
}

// List decrypts every account the user can read. A record whose DEK or
// payload does not decrypt is logged and skipped rather than failing the
// whole listing; no balance depends on it.
func (s *accountService) List(ctx context.Context) ([]models.DecryptedAccount, error) {
	accounts, err := s.client.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]models.DecryptedAccount, 0, len(accounts))
	for _, acc := range accounts {
		dek, err := s.accountDEK(acc)
		if err != nil {
			s.log.Warn(ctx, "skipping account: unwrapping DEK", "account_id", acc.ID, "error", err)
			continue
		}
		payload, err := ledger.DecryptAccountPayload(dek, acc.EncryptedData, acc.EncryptionVersion)
		if err != nil {
			s.log.Warn(ctx, "skipping account: decrypting payload", "account_id", acc.ID, "error", err)
			continue
		}
		result = append(result, models.DecryptedAccount{
			ID:             acc.ID,
			Name:           payload.Name,
			OpeningBalance: payload.OpeningBalance,
			Currency:       acc.Currency,
			OrganizationID: acc.OrganizationID,
		})
	}
	return result, nil
}

// Update re-encrypts the account payload under its existing DEK.
func (s *accountService) Update(ctx context.Context, id, name string, openingBalance float64) error {
	acc, err := s.client.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	dek, err := s.accountDEK(*acc)
	if err != nil {
		return fmt.Errorf("unwrapping DEK: %w", err)
	}

	blob, err := ledger.EncryptAccountPayload(dek, models.AccountPayloadV1{
		Name:           name,
		OpeningBalance: openingBalance,
	})
	if err != nil {
		return err
	}

	if _, err := s.client.UpdateAccount(ctx, id, api.UpdateAccountRequest{EncryptedData: blob}); err != nil {
		return fmt.Errorf("updating account: %w", err)
	}
	return nil
}

func (s *accountService) Delete(ctx context.Context, id string) error {
	return s.client.DeleteAccount(ctx, id)
}

// MigrateToOrganization moves a personal account into an organization by
// re-wrapping its DEK under the organization key. The payload itself is not
// re-encrypted: the DEK does not change, only its wrapping.
func (s *accountService) MigrateToOrganization(ctx context.Context, accountID, orgID string) error {
	acc, err := s.client.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if _, err := s.keys.LoadAccountDEK(acc.ID, acc.EncryptedDEK); err != nil {
		return fmt.Errorf("unwrapping DEK: %w", err)
	}

	wrappedDEK, err := s.keys.RewrapDEKWithOrgKey(accountID, orgID)
	if err != nil {
		return fmt.Errorf("re-wrapping DEK: %w", err)
	}

	migrated := true
	_, err = s.client.UpdateAccount(ctx, accountID, api.UpdateAccountRequest{
		EncryptedData:  acc.EncryptedData,
		OrganizationID: orgID,
		WrappedDEK:     wrappedDEK,
		Migrated:       &migrated,
	})
	if err != nil {
		return fmt.Errorf("migrating account: %w", err)
	}
	return nil
}

// accountDEK unwraps the account's DEK with whichever key currently governs
// it: the organization key for shared accounts, the master key otherwise.
func (s *accountService) accountDEK(acc models.Account) ([]byte, error) {
	if acc.OrganizationID != "" {
		return s.keys.LoadOrgAccountDEK(acc.ID, acc.OrganizationID, acc.EncryptedDEK)
	}
	return s.keys.LoadAccountDEK(acc.ID, acc.EncryptedDEK)
}
