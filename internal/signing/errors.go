package signing

import "errors"

var (
	// ErrSigningFailed wraps a failure of the underlying signing primitive.
	ErrSigningFailed = errors.New("signing failed")

	// ErrUnsupportedTransactionType is returned when the request shape does
	// not fit the keyring, or the signer produced a non fee-market EVM
	// transaction.
	ErrUnsupportedTransactionType = errors.New("unsupported transaction type")

	// ErrUnsupportedFamily is returned for an unknown network family.
	ErrUnsupportedFamily = errors.New("unsupported network family")

	// ErrInvalidRequest is returned when a request is missing the fields its
	// family needs to produce a signature.
	ErrInvalidRequest = errors.New("invalid signing request")
)
