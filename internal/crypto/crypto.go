// Package crypto provides the password-based key derivation and authenticated
// encryption primitives used by the keyring vault.
// It implements Argon2id for key derivation and AES-256-GCM for symmetric encryption.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	// KeySize is the size of AES-256 keys in bytes.
	KeySize = 32

	// NonceSize is the size of GCM nonces (the vault initialization vector) in bytes.
	NonceSize = 12

	// TagSize is the size of GCM authentication tags in bytes.
	TagSize = 16

	// SaltSize is the size of salts for key derivation in bytes.
	SaltSize = 16

	// Argon2Time is the default time parameter for Argon2id.
	Argon2Time = 3

	// Argon2Memory is the default memory parameter for Argon2id in KiB.
	Argon2Memory = 64 * 1024

	// Argon2Threads is the default parallelism parameter for Argon2id.
	Argon2Threads = 4
)

var (
	// ErrInvalidKeySize is returned when a key has an incorrect size.
	ErrInvalidKeySize = errors.New("key must be 32 bytes")

	// ErrInvalidNonceSize is returned when an initialization vector has an incorrect size.
	ErrInvalidNonceSize = errors.New("initialization vector must be 12 bytes")

	// ErrInvalidCiphertext is returned when ciphertext is malformed.
	ErrInvalidCiphertext = errors.New("ciphertext too short")

	// ErrDecryptionFailed is returned when decryption fails (authentication error).
	ErrDecryptionFailed = errors.New("decryption failed: authentication error")

	// ErrInvalidSaltSize is returned when a salt has an incorrect size.
	ErrInvalidSaltSize = errors.New("salt must be 16 bytes")

	// ErrInvalidKDFParams is returned when Argon2id parameters are zero.
	ErrInvalidKDFParams = errors.New("kdf parameters must be positive")
)

// KDFParams holds the Argon2id cost parameters.
type KDFParams struct {
	Time    uint32 `json:"time"`
	Memory  uint32 `json:"memory"`
	Threads uint8  `json:"threads"`
}

// DefaultKDFParams returns the production Argon2id parameters.
func DefaultKDFParams() KDFParams {
	return KDFParams{
		Time:    Argon2Time,
		Memory:  Argon2Memory,
		Threads: Argon2Threads,
	}
}

// Validate checks that every parameter is non-zero.
func (p KDFParams) Validate() error {
	if p.Time == 0 || p.Memory == 0 || p.Threads == 0 {
		return ErrInvalidKDFParams
	}
	return nil
}

// DeriveKey derives a 32-byte key from a password using Argon2id.
// When salt is nil a fresh random salt is generated; otherwise it must be 16
// bytes. The salt actually used is returned alongside the key so callers can
// store it and derive the same key again later.
func DeriveKey(password, salt []byte, params KDFParams) ([]byte, []byte, error) {
	if err := params.Validate(); err != nil {
		return nil, nil, err
	}

	if salt == nil {
		var err error
		salt, err = GenerateSalt()
		if err != nil {
			return nil, nil, err
		}
	}
	if len(salt) != SaltSize {
		return nil, nil, ErrInvalidSaltSize
	}

	key := argon2.IDKey(password, salt, params.Time, params.Memory, params.Threads, KeySize)
	return key, salt, nil
}

// Seal encrypts plaintext with AES-256-GCM under the given nonce.
// The returned ciphertext carries the 16-byte tag at its end.
func Seal(key, nonce, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != NonceSize {
		return nil, ErrInvalidNonceSize
	}
	return gcm.Seal(nil, nonce, plaintext, nil), nil
}

// Open decrypts ciphertext produced by Seal. Any tag mismatch or truncated
// input yields ErrDecryptionFailed or ErrInvalidCiphertext; no partial
// plaintext is ever returned.
func Open(key, nonce, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != NonceSize {
		return nil, ErrInvalidNonceSize
	}
	if len(ciphertext) < TagSize {
		return nil, ErrInvalidCiphertext
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// GenerateNonce generates a random 12-byte GCM nonce.
func GenerateNonce() ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return nonce, nil
}

// GenerateSalt generates a cryptographically secure random 16-byte salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// HashToken creates a SHA-256 hash of a token.
func HashToken(token []byte) []byte {
	hash := sha256.Sum256(token)
	return hash[:]
}

// HashTokenString is a convenience function that hashes a string token.
func HashTokenString(token string) []byte {
	return HashToken([]byte(token))
}

// CompareTokens compares two token hashes in constant time.
func CompareTokens(hash1, hash2 []byte) bool {
	return subtle.ConstantTimeCompare(hash1, hash2) == 1
}

// ZeroBytes securely zeros a byte slice.
// Use this to clear sensitive data from memory when done.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
