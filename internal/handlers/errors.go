package handlers

import (
	"errors"
	"net/http"

	"github.com/sendnodes-io/sendwallet-sub000/internal/keyring"
	"github.com/sendnodes-io/sendwallet-sub000/internal/logging"
	"github.com/sendnodes-io/sendwallet-sub000/internal/registry"
	"github.com/sendnodes-io/sendwallet-sub000/internal/session"
	"github.com/sendnodes-io/sendwallet-sub000/internal/signing"
	"github.com/sendnodes-io/sendwallet-sub000/internal/vault"
)

// errorMapping pairs a sentinel with its HTTP status and stable error code.
type errorMapping struct {
	err    error
	status int
	code   string
}

// errorMappings is checked in order; the first errors.Is match wins.
var errorMappings = []errorMapping{
	{session.ErrNotUnlocked, http.StatusLocked, "NOT_UNLOCKED"},
	{session.ErrWrongPassword, http.StatusUnauthorized, "AUTHENTICATION_FAILED"},
	{vault.ErrAuthenticationFailure, http.StatusUnauthorized, "AUTHENTICATION_FAILED"},
	{vault.ErrCorruptStorage, http.StatusInternalServerError, "CORRUPT_STORAGE"},
	{registry.ErrKeyringNotFound, http.StatusNotFound, "KEYRING_NOT_FOUND"},
	{keyring.ErrAddressNotFound, http.StatusNotFound, "KEYRING_NOT_FOUND"},
	{registry.ErrTooManyAddresses, http.StatusConflict, "TOO_MANY_ADDRESSES"},
	{registry.ErrUnsupportedKeyringType, http.StatusBadRequest, "UNSUPPORTED_KEYRING_TYPE"},
	{keyring.ErrUnsupportedKeyType, http.StatusBadRequest, "UNSUPPORTED_KEYRING_TYPE"},
	{signing.ErrUnsupportedTransactionType, http.StatusBadRequest, "UNSUPPORTED_TRANSACTION_TYPE"},
	{signing.ErrUnsupportedFamily, http.StatusBadRequest, "UNSUPPORTED_TRANSACTION_TYPE"},
	{keyring.ErrUserRejected, http.StatusForbidden, "USER_REJECTED"},
	{signing.ErrSigningFailed, http.StatusUnprocessableEntity, "SIGNING_FAILED"},
	{signing.ErrInvalidRequest, http.StatusBadRequest, "INVALID_INPUT"},
	{registry.ErrInvalidSource, http.StatusBadRequest, "INVALID_INPUT"},
	{keyring.ErrInvalidMnemonic, http.StatusBadRequest, "INVALID_INPUT"},
	{keyring.ErrInvalidPath, http.StatusBadRequest, "INVALID_INPUT"},
	{keyring.ErrInvalidPrivateKey, http.StatusBadRequest, "INVALID_INPUT"},
}

// writeError maps err onto the API error envelope. Unknown errors are logged
// and reported as INTERNAL_ERROR without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			jsonError(w, m.status, m.code, err.Error())
			return
		}
	}

	logging.Logger(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	jsonError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
}

// NotFoundHandler handles 404 errors.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	jsonError(w, http.StatusNotFound, "NOT_FOUND", "The requested resource was not found")
}

// MethodNotAllowedHandler handles 405 errors.
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	jsonError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "The requested method is not allowed for this resource")
}
