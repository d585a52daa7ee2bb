package registry

import "errors"

var (
	// ErrKeyringNotFound is returned when no tracked keyring owns the address
	// or fingerprint.
	ErrKeyringNotFound = errors.New("keyring not found")

	// ErrTooManyAddresses is returned when minting would exceed MaxAddresses.
	ErrTooManyAddresses = errors.New("too many addresses")

	// ErrUnsupportedKeyringType is returned for generation strategies other
	// than 256-bit derivable and for operations a keyring variant cannot do.
	ErrUnsupportedKeyringType = errors.New("unsupported keyring type")

	// ErrInvalidSource is returned for an import source other than
	// "import" or "internal".
	ErrInvalidSource = errors.New("invalid keyring source")
)
