package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ledgerlock/ledgerlock/internal/client/api"
	"github.com/ledgerlock/ledgerlock/internal/client/keystore"
	"github.com/ledgerlock/ledgerlock/internal/client/ledger"
	"github.com/ledgerlock/ledgerlock/internal/client/models"
	"github.com/ledgerlock/ledgerlock/internal/logging"
)

// LedgerView is a fully decrypted account statement: the account header plus
// every transaction in creation order with running balances and serials.
type LedgerView struct {
	Account      models.DecryptedAccount
	Transactions []models.DecryptedTransaction
}

type TransactionService interface {
	Ledger(ctx context.Context, accountID string) (*LedgerView, error)
	Add(ctx context.Context, accountID, date string, amount float64, counterparty, note string) (*models.Transaction, error)
	Update(ctx context.Context, accountID, txID, date string, amount float64, counterparty, note string) error
	Delete(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error
}

type transactionService struct {
	client api.Client
	keys   *keystore.KeyStore
	log    logging.Logger
	now    func() time.Time
}

func NewTransactionService(client api.Client, keys *keystore.KeyStore, log logging.Logger) TransactionService {
	if log == nil {
		log = logging.NopLogger{}
	}
	return &transactionService{client: client, keys: keys, log: log, now: time.Now}
}

// Ledger builds the account statement. Decryption here is strict: a single
// unreadable row would silently corrupt every balance after it, so the whole
// call fails instead.
func (s *transactionService) Ledger(ctx context.Context, accountID string) (*LedgerView, error) {
	acc, dek, payload, err := s.openAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	txs, err := s.client.ListTransactions(ctx, accountID)
	if err != nil {
		return nil, err
	}
	rows, err := ledger.DecryptTransactions(dek, txs)
	if err != nil {
		return nil, fmt.Errorf("decrypting ledger: %w", err)
	}

	return &LedgerView{
		Account: models.DecryptedAccount{
			ID:             acc.ID,
			Name:           payload.Name,
			OpeningBalance: payload.OpeningBalance,
			Currency:       acc.Currency,
			OrganizationID: acc.OrganizationID,
		},
		Transactions: ledger.CalculateBalances(payload.OpeningBalance, rows),
	}, nil
}

// Add records a transaction unless an identical one was submitted within the
// duplicate window.
func (s *transactionService) Add(ctx context.Context, accountID, date string, amount float64, counterparty, note string) (*models.Transaction, error) {
	_, dek, _, err := s.openAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	txs, err := s.client.ListTransactions(ctx, accountID)
	if err != nil {
		return nil, err
	}
	rows, err := ledger.DecryptTransactions(dek, txs)
	if err != nil {
		return nil, fmt.Errorf("decrypting ledger: %w", err)
	}
	if ledger.IsDuplicate(rows, date, amount, counterparty, note, s.now(), ledger.DefaultDuplicateWindow) {
		return nil, ErrDuplicateTransaction
	}

	blob, err := ledger.EncryptTransactionPayload(dek, models.TransactionPayloadV1{
		Amount:       amount,
		Counterparty: counterparty,
		Note:         note,
	})
	if err != nil {
		return nil, err
	}

	tx, err := s.client.CreateTransaction(ctx, api.CreateTransactionRequest{
		AccountID:         accountID,
		Date:              date,
		EncryptedData:     blob,
		EncryptionVersion: models.EncryptionVersionV1,
	})
	if err != nil {
		return nil, fmt.Errorf("creating transaction: %w", err)
	}
	return tx, nil
}

func (s *transactionService) Update(ctx context.Context, accountID, txID, date string, amount float64, counterparty, note string) error {
	_, dek, _, err := s.openAccount(ctx, accountID)
	if err != nil {
		return err
	}

	blob, err := ledger.EncryptTransactionPayload(dek, models.TransactionPayloadV1{
		Amount:       amount,
		Counterparty: counterparty,
		Note:         note,
	})
	if err != nil {
		return err
	}

	_, err = s.client.UpdateTransaction(ctx, txID, api.UpdateTransactionRequest{
		Date:              date,
		EncryptedData:     blob,
		EncryptionVersion: models.EncryptionVersionV1,
	})
	if err != nil {
		return fmt.Errorf("updating transaction: %w", err)
	}
	return nil
}

// Delete soft-deletes on the server; the encrypted blob stays in place and
// the row can come back via Restore. Balances and serials are derived on
// every Ledger call, so both mutations need no local bookkeeping.
func (s *transactionService) Delete(ctx context.Context, id string) error {
	return s.client.DeleteTransaction(ctx, id)
}

// Restore undoes a soft delete. The restored row keeps its original creation
// timestamp, so it returns to its old position in the ledger.
func (s *transactionService) Restore(ctx context.Context, id string) error {
	if _, err := s.client.RestoreTransaction(ctx, id); err != nil {
		return fmt.Errorf("restoring transaction: %w", err)
	}
	return nil
}

// openAccount fetches the account, unwraps its DEK and decrypts its payload.
func (s *transactionService) openAccount(ctx context.Context, accountID string) (*models.Account, []byte, models.AccountPayloadV1, error) {
	acc, err := s.client.GetAccount(ctx, accountID)
	if err != nil {
		return nil, nil, models.AccountPayloadV1{}, err
	}

	var dek []byte
	if acc.OrganizationID != "" {
		dek, err = s.keys.LoadOrgAccountDEK(acc.ID, acc.OrganizationID, acc.EncryptedDEK)
	} else {
		dek, err = s.keys.LoadAccountDEK(acc.ID, acc.EncryptedDEK)
	}
	if err != nil {
		return nil, nil, models.AccountPayloadV1{}, fmt.Errorf("unwrapping DEK: %w", err)
	}

	payload, err := ledger.DecryptAccountPayload(dek, acc.EncryptedData, acc.EncryptionVersion)
	if err != nil {
		return nil, nil, models.AccountPayloadV1{}, fmt.Errorf("decrypting account: %w", err)
	}
	return acc, dek, payload, nil
}
