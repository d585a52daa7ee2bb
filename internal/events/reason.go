package events

import (
	"errors"

	"github.com/sendnodes-io/sendwallet-sub000/internal/keyring"
)

// Reason classifies a signing failure as userRejected or genericError.
func Reason(err error) string {
	if errors.Is(err, keyring.ErrUserRejected) {
		return ReasonUserRejected
	}
	return ReasonGenericError
}
