// Package vault encrypts the keyring payload under a password-derived key and
// keeps the append-only log of encrypted snapshots.
package vault

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sendnodes-io/sendwallet-sub000/internal/crypto"
	"github.com/sendnodes-io/sendwallet-sub000/internal/metrics"
)

// EncryptedVault is one encrypted snapshot of the vault payload. A new value
// is produced on every mutation; existing values are never modified.
type EncryptedVault struct {
	Salt                 []byte `json:"salt"`
	InitializationVector []byte `json:"initializationVector"`
	CipherText           []byte `json:"cipherText"`
}

// Equal reports whether both vaults carry the same salt, IV and ciphertext.
func (v *EncryptedVault) Equal(other *EncryptedVault) bool {
	if v == nil || other == nil {
		return v == other
	}
	return bytes.Equal(v.Salt, other.Salt) &&
		bytes.Equal(v.InitializationVector, other.InitializationVector) &&
		bytes.Equal(v.CipherText, other.CipherText)
}

// Encrypt serializes payload as JSON and seals it under key with a fresh IV.
// salt is recorded alongside so the key can be re-derived from the password.
// The JSON encoding is deterministic for a given payload value: struct fields
// are emitted in declaration order and map keys sorted.
func Encrypt(payload any, key, salt []byte) (*EncryptedVault, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	defer crypto.ZeroBytes(plaintext)

	iv, err := crypto.GenerateNonce()
	if err != nil {
		return nil, err
	}

	ciphertext, err := crypto.Seal(key, iv, plaintext)
	if err != nil {
		return nil, fmt.Errorf("seal payload: %w", err)
	}
	metrics.EncryptionOperations.WithLabelValues("encrypt").Inc()

	return &EncryptedVault{
		Salt:                 bytes.Clone(salt),
		InitializationVector: iv,
		CipherText:           ciphertext,
	}, nil
}

// Decrypt opens the vault under key and decodes its payload. It fails closed:
// authentication problems yield ErrAuthenticationFailure and undecodable
// plaintext yields ErrMalformedPayload; the zero T is returned in both cases.
func Decrypt[T any](v *EncryptedVault, key []byte) (T, error) {
	var zero T
	if v == nil {
		return zero, fmt.Errorf("%w: no vault", ErrAuthenticationFailure)
	}

	plaintext, err := crypto.Open(key, v.InitializationVector, v.CipherText)
	if err != nil {
		if errors.Is(err, crypto.ErrInvalidKeySize) {
			return zero, err
		}
		return zero, fmt.Errorf("%w: %v", ErrAuthenticationFailure, err)
	}
	defer crypto.ZeroBytes(plaintext)
	metrics.EncryptionOperations.WithLabelValues("decrypt").Inc()

	var payload T
	dec := json.NewDecoder(bytes.NewReader(plaintext))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return payload, nil
}
