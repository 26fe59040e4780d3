package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// The discriminant is stored on the server record so schema changes can be
// dispatched exhaustively instead of parsed hopefully. Version 0 rows predate
// client-side encryption: they have no blob, their values sit in plaintext
// columns on the record itself.
const (
	EncryptionVersionLegacy = 0
	EncryptionVersionV1     = 1
)

// ErrUnsupportedEncryptionVersion is returned when a record carries a payload
// schema this client does not know.
var ErrUnsupportedEncryptionVersion = errors.New("unsupported encryption version")

// AccountPayloadV1 is the plaintext of an account's encrypted_data blob.
// JSON keys match what existing clients produce.
type AccountPayloadV1 struct {
	Name           string  `json:"name"`
	OpeningBalance float64 `json:"opening_balance"`
}

// TransactionPayloadV1 is the plaintext of a transaction's encrypted_data
// blob.
type TransactionPayloadV1 struct {
	Amount       float64 `json:"amount"`
	Counterparty string  `json:"paid_to_from"`
	Note         string  `json:"narration"`
}

// DecodeAccountPayload parses a decrypted account payload according to its
// version discriminant.
func DecodeAccountPayload(version int, plaintext []byte) (AccountPayloadV1, error) {
	switch version {
	case EncryptionVersionV1:
		var p AccountPayloadV1
		if err := json.Unmarshal(plaintext, &p); err != nil {
			return AccountPayloadV1{}, fmt.Errorf("parsing account payload: %w", err)
		}
		return p, nil
	default:
		return AccountPayloadV1{}, fmt.Errorf("%w: %d", ErrUnsupportedEncryptionVersion, version)
	}
}

// DecodeTransactionPayload parses a decrypted transaction payload according
// to its version discriminant.
func DecodeTransactionPayload(version int, plaintext []byte) (TransactionPayloadV1, error) {
	switch version {
	case EncryptionVersionV1:
		var p TransactionPayloadV1
		if err := json.Unmarshal(plaintext, &p); err != nil {
			return TransactionPayloadV1{}, fmt.Errorf("parsing transaction payload: %w", err)
		}
		return p, nil
	default:
		return TransactionPayloadV1{}, fmt.Errorf("%w: %d", ErrUnsupportedEncryptionVersion, version)
	}
}
