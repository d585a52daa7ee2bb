package vault

import "errors"

var (
	// ErrAuthenticationFailure is returned when a vault cannot be decrypted
	// with the supplied key: wrong password, tampered or truncated ciphertext.
	ErrAuthenticationFailure = errors.New("vault authentication failed")

	// ErrMalformedPayload is returned when a vault decrypts cleanly but its
	// plaintext is not a valid payload.
	ErrMalformedPayload = errors.New("vault payload is malformed")

	// ErrCorruptStorage is returned when the persisted vault log does not match
	// a known format. It is never recovered from automatically.
	ErrCorruptStorage = errors.New("vault storage is corrupt")
)
