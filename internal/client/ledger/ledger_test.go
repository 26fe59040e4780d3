package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlock/ledgerlock/internal/client/models"
	"github.com/ledgerlock/ledgerlock/internal/cryptox"
)

func TestRound2(t *testing.T) {
	assert.Equal(t, 0.1, Round2(0.1))
	assert.Equal(t, 0.3, Round2(0.1+0.2))
	assert.Equal(t, 2.68, Round2(2.675000001))
	assert.Equal(t, -1.05, Round2(-1.045))
	assert.Equal(t, 0.0, Round2(0))
}

func TestAccountPayload_RoundTrip(t *testing.T) {
	dek := cryptox.GenerateDEK()
	p := models.AccountPayloadV1{Name: "Checking", OpeningBalance: 1500.50}

	blob, err := EncryptAccountPayload(dek, p)
	require.NoError(t, err)

	got, err := DecryptAccountPayload(dek, blob, models.EncryptionVersionV1)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestTransactionPayload_RoundTrip(t *testing.T) {
	dek := cryptox.GenerateDEK()
	p := models.TransactionPayloadV1{Amount: -42.10, Counterparty: "Grocery Store", Note: "weekly run"}

	blob, err := EncryptTransactionPayload(dek, p)
	require.NoError(t, err)

	got, err := DecryptTransactionPayload(dek, blob, models.EncryptionVersionV1)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestDecryptTransactionPayload_UnknownVersion(t *testing.T) {
	dek := cryptox.GenerateDEK()
	blob, err := EncryptTransactionPayload(dek, models.TransactionPayloadV1{Amount: 1})
	require.NoError(t, err)

	_, err = DecryptTransactionPayload(dek, blob, 99)
	require.ErrorIs(t, err, models.ErrUnsupportedEncryptionVersion)
}

func encryptTx(t *testing.T, dek []byte, id, date string, amount float64, createdAt time.Time) models.Transaction {
	t.Helper()
	blob, err := EncryptTransactionPayload(dek, models.TransactionPayloadV1{Amount: amount})
	require.NoError(t, err)
	return models.Transaction{
		ID:                id,
		Date:              date,
		EncryptedData:     blob,
		EncryptionVersion: models.EncryptionVersionV1,
		CreatedAt:         createdAt,
	}
}

func TestDecryptTransactions_StrictFailure(t *testing.T) {
	dek := cryptox.GenerateDEK()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	txs := []models.Transaction{
		encryptTx(t, dek, "tx-1", "2026-03-01", 10, base),
		{
			ID:                "tx-2",
			Date:              "2026-03-01",
			EncryptedData:     "not-a-valid-blob",
			EncryptionVersion: models.EncryptionVersionV1,
			CreatedAt:         base.Add(time.Minute),
		},
	}

	_, err := DecryptTransactions(dek, txs)
	require.Error(t, err)
	assert.ErrorContains(t, err, "tx-2")
}

func TestDecryptTransactions_LegacyPlaintextRow(t *testing.T) {
	dek := cryptox.GenerateDEK()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// Mid-migration ledger: a pre-encryption row next to an encrypted one.
	amount := -42.5
	txs := []models.Transaction{
		{
			ID:                "tx-legacy",
			Date:              "2025-11-03",
			EncryptionVersion: models.EncryptionVersionLegacy,
			Amount:            &amount,
			PaidToFrom:        "Old Grocer",
			Narration:         "pre-migration",
			CreatedAt:         base,
		},
		encryptTx(t, dek, "tx-new", "2026-03-01", 10, base.Add(time.Minute)),
	}

	rows, err := DecryptTransactions(dek, txs)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, -42.5, rows[0].Amount)
	assert.Equal(t, "Old Grocer", rows[0].Counterparty)
	assert.Equal(t, "pre-migration", rows[0].Note)
	assert.Equal(t, 10.0, rows[1].Amount)
}

func TestDecryptTransactions_LegacyRowWithoutAmount(t *testing.T) {
	dek := cryptox.GenerateDEK()

	txs := []models.Transaction{{
		ID:                "tx-legacy",
		Date:              "2025-11-03",
		EncryptionVersion: models.EncryptionVersionLegacy,
	}}

	_, err := DecryptTransactions(dek, txs)
	require.Error(t, err)
	assert.ErrorContains(t, err, "tx-legacy")
}

func TestCalculateBalances_OrderedByCreationNotDate(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// Backdated entry created last must still land last in the ledger.
	rows := []models.DecryptedTransaction{
		{ID: "tx-backdated", Date: "2026-01-15", Amount: -50, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "tx-first", Date: "2026-03-01", Amount: 100, CreatedAt: base},
		{ID: "tx-second", Date: "2026-03-01", Amount: -30, CreatedAt: base.Add(time.Hour)},
	}

	got := CalculateBalances(1000, rows)

	require.Len(t, got, 3)
	assert.Equal(t, "tx-first", got[0].ID)
	assert.Equal(t, "tx-second", got[1].ID)
	assert.Equal(t, "tx-backdated", got[2].ID)

	assert.Equal(t, 1100.0, got[0].BalanceAfter)
	assert.Equal(t, 1070.0, got[1].BalanceAfter)
	assert.Equal(t, 1020.0, got[2].BalanceAfter)

	for i, r := range got {
		assert.Equal(t, i+1, r.SerialNumber)
	}

	// Input order untouched.
	assert.Equal(t, "tx-backdated", rows[0].ID)
}

func TestCalculateBalances_RoundsEveryStep(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	rows := []models.DecryptedTransaction{
		{ID: "a", Amount: 0.1, CreatedAt: base},
		{ID: "b", Amount: 0.2, CreatedAt: base.Add(time.Second)},
		{ID: "c", Amount: 0.3, CreatedAt: base.Add(2 * time.Second)},
	}

	got := CalculateBalances(0, rows)
	assert.Equal(t, 0.1, got[0].BalanceAfter)
	assert.Equal(t, 0.3, got[1].BalanceAfter)
	assert.Equal(t, 0.6, got[2].BalanceAfter)
}

func TestCalculateBalances_StableForEqualCreation(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	rows := []models.DecryptedTransaction{
		{ID: "a", Amount: 1, CreatedAt: base},
		{ID: "b", Amount: 2, CreatedAt: base},
		{ID: "c", Amount: 3, CreatedAt: base},
	}

	got := CalculateBalances(0, rows)
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestCalculateBalances_Empty(t *testing.T) {
	got := CalculateBalances(100, nil)
	assert.Empty(t, got)
}

func TestIsDuplicate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	row := func(age time.Duration) []models.DecryptedTransaction {
		return []models.DecryptedTransaction{{
			Date:         "2026-03-01",
			Amount:       -25.50,
			Counterparty: "Cafe",
			Note:         "lunch",
			CreatedAt:    now.Add(-age),
		}}
	}

	tests := []struct {
		name         string
		rows         []models.DecryptedTransaction
		date         string
		amount       float64
		counterparty string
		note         string
		want         bool
	}{
		{"identical just inside window", row(4999 * time.Millisecond), "2026-03-01", -25.50, "Cafe", "lunch", true},
		{"identical just outside window", row(5001 * time.Millisecond), "2026-03-01", -25.50, "Cafe", "lunch", false},
		{"different amount", row(time.Second), "2026-03-01", -25.51, "Cafe", "lunch", false},
		{"different date", row(time.Second), "2026-03-02", -25.50, "Cafe", "lunch", false},
		{"different counterparty", row(time.Second), "2026-03-01", -25.50, "Bar", "lunch", false},
		{"different note", row(time.Second), "2026-03-01", -25.50, "Cafe", "dinner", false},
		{"no rows", nil, "2026-03-01", -25.50, "Cafe", "lunch", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsDuplicate(tt.rows, tt.date, tt.amount, tt.counterparty, tt.note, now, DefaultDuplicateWindow)
			assert.Equal(t, tt.want, got)
		})
	}
}
