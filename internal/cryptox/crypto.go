// Package cryptox implements the cryptographic primitives of the LedgerLock
// client: PBKDF2 master-key derivation, AES-256-GCM authenticated encryption,
// symmetric key wrapping, and the RSA-OAEP operations used by the invitation
// key exchange.
//
// Wire formats are fixed for interoperability with existing clients:
//
//   - An encrypted blob is base64(IV(12) || ciphertext || GCM tag(16)), with a
//     fresh random IV per encryption.
//   - A symmetrically wrapped key is an encrypted blob whose plaintext is the
//     base64 text of the raw key bytes.
//   - An RSA-wrapped key is base64 of the raw RSA-OAEP/SHA-256 ciphertext of
//     the 32 raw key bytes (no IV; OAEP is used once per invitation).
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/ledgerlock/ledgerlock/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the size of every symmetric key: AES-256 master keys, DEKs
	// and organization keys.
	KeySize = 32
	// SaltSize is the size of the per-user PBKDF2 salt.
	SaltSize = 16

	nonceSize     = 12
	kdfIterations = 600_000
	rsaKeyBits    = 2048
)

var (
	// ErrAuthenticationFailed is returned when the GCM tag does not verify:
	// wrong key or tampered/corrupted ciphertext. It must never be masked
	// into an empty or default plaintext.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrCiphertextTooShort is returned when a blob is shorter than one IV.
	ErrCiphertextTooShort = errors.New("ciphertext too short")

	// ErrInvalidKeyLength is returned when a symmetric key is not KeySize bytes.
	ErrInvalidKeyLength = errors.New("invalid key length")
)

// SymWrappedKey is a DEK or organization key wrapped with AES-GCM under
// another symmetric key. It is the only form in which key material is stored
// or transmitted outside the key store.
type SymWrappedKey string

// RSAWrappedKey is an organization key wrapped with RSA-OAEP for a single
// invitee. It is a distinct type from SymWrappedKey so an RSA blob can never
// be handed to the symmetric unwrap path by accident.
type RSAWrappedKey string

// DeriveMasterKey derives the user's 256-bit master key from a password and
// salt using PBKDF2-HMAC-SHA256 with 600 000 iterations. The derivation is
// deterministic: the same (password, salt) pair reproduces the same key at
// every login, which is how the key survives without ever being transmitted.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return pbkdf2.Key(password, salt, kdfIterations, KeySize, sha256.New)
}

// GenerateSalt returns a fresh random 16-byte PBKDF2 salt.
func GenerateSalt() []byte {
	return common.GenerateRandByteArray(SaltSize)
}

// GenerateDEK returns a fresh random 256-bit data-encryption key.
func GenerateDEK() []byte {
	return common.GenerateRandByteArray(KeySize)
}

// Encrypt encrypts plaintext with AES-256-GCM under key and returns the
// base64 blob IV || ciphertext || tag. A fresh random IV is generated per call.
func Encrypt(key []byte, plaintext []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	// Seal appends to the nonce so the blob carries its own IV.
	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return common.ToBase64(sealed), nil
}

// Decrypt reverses Encrypt. A failed tag verification is reported as
// ErrAuthenticationFailed so callers can distinguish a wrong key or tampered
// blob from a legitimately empty record.
func Decrypt(key []byte, blob string) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	data, err := common.FromBase64(blob)
	if err != nil {
		return nil, fmt.Errorf("decoding blob: %w", err)
	}
	if len(data) < nonceSize {
		return nil, ErrCiphertextTooShort
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	return plaintext, nil
}

// WrapKey encrypts raw key bytes under wrappingKey. The plaintext of the
// resulting blob is the base64 text of the raw key, matching the format other
// clients produce.
func WrapKey(wrappingKey []byte, raw []byte) (SymWrappedKey, error) {
	blob, err := Encrypt(wrappingKey, []byte(common.ToBase64(raw)))
	if err != nil {
		return "", err
	}
	return SymWrappedKey(blob), nil
}

// UnwrapKey is the inverse of WrapKey.
func UnwrapKey(wrappingKey []byte, wrapped SymWrappedKey) ([]byte, error) {
	plaintext, err := Decrypt(wrappingKey, string(wrapped))
	if err != nil {
		return nil, err
	}
	raw, err := common.FromBase64(string(plaintext))
	if err != nil {
		return nil, fmt.Errorf("decoding unwrapped key: %w", err)
	}
	return raw, nil
}

// GenerateKeyPair generates the RSA-2048 pair used exclusively for the
// invitation key exchange. Exponent 65537 is the crypto/rsa default.
func GenerateKeyPair() (*rsa.PrivateKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generating RSA key pair: %w", err)
	}
	return priv, nil
}

// EncryptWithPublicKey wraps raw symmetric key bytes with RSA-OAEP/SHA-256.
// The payload is a single 32-byte key; RSA is never used for bulk data.
func EncryptWithPublicKey(pub *rsa.PublicKey, raw []byte) (RSAWrappedKey, error) {
	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, raw, nil)
	if err != nil {
		return "", fmt.Errorf("RSA encrypt: %w", err)
	}
	return RSAWrappedKey(common.ToBase64(ciphertext)), nil
}

// DecryptWithPrivateKey recovers the raw symmetric key bytes from an
// RSA-wrapped key.
func DecryptWithPrivateKey(priv *rsa.PrivateKey, wrapped RSAWrappedKey) ([]byte, error) {
	ciphertext, err := common.FromBase64(string(wrapped))
	if err != nil {
		return nil, fmt.Errorf("decoding RSA-wrapped key: %w", err)
	}
	raw, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("RSA decrypt: %w", err)
	}
	return raw, nil
}

// MarshalPublicKey renders a public key as base64 PKIX (SPKI) DER, the format
// the server publishes for every user.
func MarshalPublicKey(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("marshaling public key: %w", err)
	}
	return common.ToBase64(der), nil
}

// ParsePublicKey parses a base64 PKIX DER public key.
func ParsePublicKey(s string) (*rsa.PublicKey, error) {
	der, err := common.FromBase64(s)
	if err != nil {
		return nil, fmt.Errorf("decoding public key: %w", err)
	}
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("parsing public key: not an RSA key")
	}
	return pub, nil
}

// MarshalPrivateKey renders a private key as PKCS#8 DER. The caller is
// expected to encrypt the result before it leaves the process.
func MarshalPrivateKey(priv *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("marshaling private key: %w", err)
	}
	return der, nil
}

// ParsePrivateKey parses a PKCS#8 DER private key.
func ParsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("parsing private key: not an RSA key")
	}
	return priv, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
