// Package ledger turns encrypted server records into a readable ledger:
// payload encryption/decryption, running balances, serial numbers and
// duplicate detection. Balances and serials are never stored; they are
// recomputed from the full ordered set every time.
package ledger

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ledgerlock/ledgerlock/internal/client/models"
	"github.com/ledgerlock/ledgerlock/internal/cryptox"
)

// DefaultDuplicateWindow bounds how recent an identical transaction must be
// to count as an accidental double submission rather than a real repeat.
const DefaultDuplicateWindow = 5 * time.Second

// Round2 rounds to two decimal places, half away from zero. Running
// balances are rounded after every step so displayed intermediate balances
// always add up.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// EncryptAccountPayload serializes and encrypts the sensitive account fields
// under the account's DEK.
func EncryptAccountPayload(dek []byte, p models.AccountPayloadV1) (string, error) {
	plaintext, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding account payload: %w", err)
	}
	return cryptox.Encrypt(dek, plaintext)
}

// DecryptAccountPayload reverses EncryptAccountPayload, dispatching on the
// record's version discriminant.
func DecryptAccountPayload(dek []byte, blob string, version int) (models.AccountPayloadV1, error) {
	plaintext, err := cryptox.Decrypt(dek, blob)
	if err != nil {
		return models.AccountPayloadV1{}, err
	}
	return models.DecodeAccountPayload(version, plaintext)
}

// EncryptTransactionPayload serializes and encrypts the sensitive
// transaction fields under the account's DEK.
func EncryptTransactionPayload(dek []byte, p models.TransactionPayloadV1) (string, error) {
	plaintext, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding transaction payload: %w", err)
	}
	return cryptox.Encrypt(dek, plaintext)
}

// DecryptTransactionPayload reverses EncryptTransactionPayload.
func DecryptTransactionPayload(dek []byte, blob string, version int) (models.TransactionPayloadV1, error) {
	plaintext, err := cryptox.Decrypt(dek, blob)
	if err != nil {
		return models.TransactionPayloadV1{}, err
	}
	return models.DecodeTransactionPayload(version, plaintext)
}

// DecryptTransactions decrypts every row strictly: one undecryptable or
// unversioned record fails the whole call, because a ledger with silently
// missing rows would show wrong balances. Legacy version 0 rows carry their
// values in plaintext columns and pass through without decryption, so an
// account mid-migration still reconciles.
func DecryptTransactions(dek []byte, txs []models.Transaction) ([]models.DecryptedTransaction, error) {
	out := make([]models.DecryptedTransaction, 0, len(txs))
	for _, tx := range txs {
		if tx.EncryptionVersion == models.EncryptionVersionLegacy {
			if tx.Amount == nil {
				return nil, fmt.Errorf("transaction %s: legacy row has no amount", tx.ID)
			}
			out = append(out, models.DecryptedTransaction{
				ID:           tx.ID,
				Date:         tx.Date,
				Amount:       *tx.Amount,
				Counterparty: tx.PaidToFrom,
				Note:         tx.Narration,
				CreatedAt:    tx.CreatedAt,
			})
			continue
		}

		p, err := DecryptTransactionPayload(dek, tx.EncryptedData, tx.EncryptionVersion)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", tx.ID, err)
		}
		out = append(out, models.DecryptedTransaction{
			ID:           tx.ID,
			Date:         tx.Date,
			Amount:       p.Amount,
			Counterparty: p.Counterparty,
			Note:         p.Note,
			CreatedAt:    tx.CreatedAt,
		})
	}
	return out, nil
}

// CalculateBalances orders rows by creation time and fills in running
// balances and serial numbers starting from the account's opening balance.
// Creation time, not the user-editable date, fixes the order: the ledger
// reflects the sequence entries were actually made in, and backdating an
// entry cannot reshuffle history.
//
// The input slice is not modified.
func CalculateBalances(openingBalance float64, txs []models.DecryptedTransaction) []models.DecryptedTransaction {
	out := make([]models.DecryptedTransaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	balance := openingBalance
	for i := range out {
		balance = Round2(balance + out[i].Amount)
		out[i].BalanceAfter = balance
		out[i].SerialNumber = i + 1
	}
	return out
}

// IsDuplicate reports whether rows already contain a transaction identical
// to the candidate that was created within window of now. Exact match on
// every user-entered field; an intentional repeat only has to wait out the
// window.
func IsDuplicate(rows []models.DecryptedTransaction, date string, amount float64, counterparty, note string, now time.Time, window time.Duration) bool {
	for _, r := range rows {
		if r.Date != date || r.Amount != amount || r.Counterparty != counterparty || r.Note != note {
			continue
		}
		if now.Sub(r.CreatedAt) < window {
			return true
		}
	}
	return false
}
