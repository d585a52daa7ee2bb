// Package validation provides input validation functions for values that
// arrive over the HTTP API, the CLI and MCP.
package validation

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrPasswordEmpty is returned when password is empty.
	ErrPasswordEmpty = errors.New("password is required")
	// ErrPasswordTooLong is returned when password exceeds 1024 bytes.
	ErrPasswordTooLong = errors.New("password must be at most 1024 bytes")

	// ErrMnemonicEmpty is returned when mnemonic is empty.
	ErrMnemonicEmpty = errors.New("mnemonic is required")
	// ErrMnemonicWordCount is returned when mnemonic has an unsupported number of words.
	ErrMnemonicWordCount = errors.New("mnemonic must have 12, 15, 18, 21 or 24 words")

	// ErrPathInvalidFormat is returned when a derivation path is not of the form m/44'/60'/0'/0.
	ErrPathInvalidFormat = errors.New("derivation path must look like m/44'/60'/0'/0")
	// ErrPathTooDeep is returned when a derivation path has more than 10 components.
	ErrPathTooDeep = errors.New("derivation path must have at most 10 components")

	// ErrPrivateKeyEmpty is returned when private key is empty.
	ErrPrivateKeyEmpty = errors.New("private key is required")
	// ErrPrivateKeyInvalidFormat is returned when private key is not 32 or 64 hex encoded bytes.
	ErrPrivateKeyInvalidFormat = errors.New("private key must be 64 or 128 hex characters")

	// ErrAddressEmpty is returned when address is empty.
	ErrAddressEmpty = errors.New("address is required")
	// ErrAddressInvalidFormat is returned when address is neither an EVM nor a POKT address.
	ErrAddressInvalidFormat = errors.New("address must be 0x followed by 40 hex characters, or 40 lowercase hex characters")

	// ErrFingerprintInvalidFormat is returned when fingerprint is not 32 lowercase hex characters.
	ErrFingerprintInvalidFormat = errors.New("fingerprint must be 32 lowercase hex characters")

	// ErrMessageTooLong is returned when a message to sign exceeds 64 KiB.
	ErrMessageTooLong = errors.New("message must be at most 65536 bytes")
)

const (
	maxPasswordLen = 1024
	maxPathDepth   = 10
	maxMessageLen  = 64 * 1024
)

var (
	pathRegex        = regexp.MustCompile(`^m(/[0-9]{1,10}'?)*$`)
	privateKeyRegex  = regexp.MustCompile(`^(0x)?([0-9a-fA-F]{64}|[0-9a-fA-F]{128})$`)
	evmAddressRegex  = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	poktAddressRegex = regexp.MustCompile(`^[0-9a-f]{40}$`)
	fingerprintRegex = regexp.MustCompile(`^[0-9a-f]{32}$`)
)

// Password validates a vault password.
// Rules: 1-1024 bytes. Whitespace is significant.
func Password(password string) error {
	if password == "" {
		return ErrPasswordEmpty
	}
	if len(password) > maxPasswordLen {
		return ErrPasswordTooLong
	}
	return nil
}

// Mnemonic validates the shape of a recovery phrase. Wordlist and checksum
// are checked when the keyring is built.
func Mnemonic(mnemonic string) error {
	words := strings.Fields(mnemonic)
	switch len(words) {
	case 0:
		return ErrMnemonicEmpty
	case 12, 15, 18, 21, 24:
		return nil
	default:
		return ErrMnemonicWordCount
	}
}

// DerivationPath validates an optional BIP-32 path. Empty selects the
// default path for the key type.
func DerivationPath(path string) error {
	if path == "" {
		return nil
	}
	if !pathRegex.MatchString(path) {
		return ErrPathInvalidFormat
	}
	if strings.Count(path, "/") > maxPathDepth {
		return ErrPathTooDeep
	}
	return nil
}

// PrivateKey validates hex encoded key material with an optional 0x prefix.
func PrivateKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrPrivateKeyEmpty
	}
	if !privateKeyRegex.MatchString(key) {
		return ErrPrivateKeyInvalidFormat
	}
	return nil
}

// Address validates an EVM or POKT address.
func Address(address string) error {
	if address == "" {
		return ErrAddressEmpty
	}
	if !evmAddressRegex.MatchString(address) && !poktAddressRegex.MatchString(address) {
		return ErrAddressInvalidFormat
	}
	return nil
}

// Fingerprint validates a keyring fingerprint.
func Fingerprint(fp string) error {
	if !fingerprintRegex.MatchString(fp) {
		return ErrFingerprintInvalidFormat
	}
	return nil
}

// Message validates the size of a message to sign.
func Message(msg []byte) error {
	if len(msg) > maxMessageLen {
		return ErrMessageTooLong
	}
	return nil
}
