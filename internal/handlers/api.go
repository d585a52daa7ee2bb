// Package handlers provides the HTTP API of the keyring daemon.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/go-chi/chi/v5"

	"github.com/sendnodes-io/sendwallet-sub000/internal/keyring"
	"github.com/sendnodes-io/sendwallet-sub000/internal/registry"
	"github.com/sendnodes-io/sendwallet-sub000/internal/session"
	"github.com/sendnodes-io/sendwallet-sub000/internal/signing"
	"github.com/sendnodes-io/sendwallet-sub000/internal/validation"
)

// APIHandler handles REST API endpoints.
type APIHandler struct {
	session            *session.Manager
	signer             *signing.Dispatcher
	maxRequestBodySize int64
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(sess *session.Manager, signer *signing.Dispatcher, maxRequestBodySize int64) *APIHandler {
	return &APIHandler{
		session:            sess,
		signer:             signer,
		maxRequestBodySize: maxRequestBodySize,
	}
}

// Response helpers

type apiResponse struct {
	Data any            `json:"data,omitempty"`
	Meta map[string]any `json:"meta,omitempty"`
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta map[string]any `json:"meta,omitempty"`
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Data: data})
}

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := apiError{}
	resp.Error.Code = code
	resp.Error.Message = message
	json.NewEncoder(w).Encode(resp)
}

// decode reads a JSON body into v. An empty body leaves v untouched when
// optional is set.
func (h *APIHandler) decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, h.maxRequestBodySize)).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	jsonError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body")
	return false
}

func invalid(w http.ResponseWriter, err error) {
	jsonError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
}

// Session

type sessionResponse struct {
	State               session.State `json:"state"`
	LastKeyringActivity *time.Time    `json:"lastKeyringActivity,omitempty"`
	LastOutsideActivity *time.Time    `json:"lastOutsideActivity,omitempty"`
}

func (h *APIHandler) sessionState(w http.ResponseWriter, r *http.Request, status int) {
	state, err := h.session.State(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := sessionResponse{State: state}
	keyringAt, outsideAt := h.session.Activity()
	if !keyringAt.IsZero() {
		resp.LastKeyringActivity = &keyringAt
	}
	if !outsideAt.IsZero() {
		resp.LastOutsideActivity = &outsideAt
	}
	jsonResponse(w, status, resp)
}

// GetSession handles GET /api/v1/session
func (h *APIHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	h.sessionState(w, r, http.StatusOK)
}

// Unlock handles POST /api/v1/session/unlock
func (h *APIHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if !h.decode(w, r, &req, false) {
		return
	}
	if err := validation.Password(req.Password); err != nil {
		invalid(w, err)
		return
	}

	ok, err := h.session.Unlock(r.Context(), req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		jsonError(w, http.StatusUnauthorized, "AUTHENTICATION_FAILED", "Incorrect password")
		return
	}
	h.sessionState(w, r, http.StatusOK)
}

// Lock handles POST /api/v1/session/lock
func (h *APIHandler) Lock(w http.ResponseWriter, r *http.Request) {
	h.session.Lock(r.Context())
	h.sessionState(w, r, http.StatusOK)
}

// MarkActivity handles POST /api/v1/session/activity
func (h *APIHandler) MarkActivity(w http.ResponseWriter, r *http.Request) {
	h.session.MarkOutsideActivity(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// ChangePassword handles POST /api/v1/session/password
func (h *APIHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if !h.decode(w, r, &req, false) {
		return
	}
	if err := validation.Password(req.NewPassword); err != nil {
		invalid(w, err)
		return
	}

	if err := h.session.ChangePassword(r.Context(), req.OldPassword, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Keyrings

type keyringsResponse struct {
	Keyrings        []registry.Info              `json:"keyrings"`
	KeyringMetadata map[string]registry.Metadata `json:"keyringMetadata"`
}

// ListKeyrings handles GET /api/v1/keyrings
func (h *APIHandler) ListKeyrings(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, keyringsResponse{
		Keyrings:        h.session.GetKeyrings(),
		KeyringMetadata: h.session.KeyringMetadata(),
	})
}

func parseKeyType(s string) (keyring.KeyType, error) {
	if s == "" {
		return "", nil
	}
	return keyring.ParseKeyType(s)
}

// GenerateKeyring handles POST /api/v1/keyrings/generate
func (h *APIHandler) GenerateKeyring(w http.ResponseWriter, r *http.Request) {
	var req struct {
		KeyType string `json:"keyType"`
	}
	if !h.decode(w, r, &req, true) {
		return
	}
	keyType, err := parseKeyType(req.KeyType)
	if err != nil {
		writeError(w, r, err)
		return
	}

	gen, err := h.session.GenerateNewKeyring(r.Context(), keyring.MnemonicStrength, keyType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, gen)
}

// ImportKeyring handles POST /api/v1/keyrings/import
func (h *APIHandler) ImportKeyring(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mnemonic string `json:"mnemonic"`
		Source   string `json:"source"`
		Path     string `json:"path"`
		KeyType  string `json:"keyType"`
	}
	if !h.decode(w, r, &req, false) {
		return
	}
	if err := validation.Mnemonic(req.Mnemonic); err != nil {
		invalid(w, err)
		return
	}
	if err := validation.DerivationPath(req.Path); err != nil {
		invalid(w, err)
		return
	}
	source, err := parseSource(req.Source)
	if err != nil {
		writeError(w, r, err)
		return
	}
	keyType, err := parseKeyType(req.KeyType)
	if err != nil {
		writeError(w, r, err)
		return
	}

	fps, err := h.session.ImportKeyring(r.Context(), req.Mnemonic, source, req.Path, keyType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, map[string]any{"fingerprints": fps})
}

// ImportPrivateKey handles POST /api/v1/keyrings/private-key
func (h *APIHandler) ImportPrivateKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PrivateKey string `json:"privateKey"`
		KeyType    string `json:"keyType"`
		Source     string `json:"source"`
	}
	if !h.decode(w, r, &req, false) {
		return
	}
	if err := validation.PrivateKey(req.PrivateKey); err != nil {
		invalid(w, err)
		return
	}
	source, err := parseSource(req.Source)
	if err != nil {
		writeError(w, r, err)
		return
	}
	keyType, err := parseKeyType(req.KeyType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if keyType == "" {
		keyType = keyring.KeyTypeSecp256k1
	}

	fp, err := h.session.ImportPrivateKey(r.Context(), req.PrivateKey, keyType, source)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, map[string]string{"fingerprint": fp})
}

func parseSource(s string) (registry.Source, error) {
	if s == "" {
		return registry.SourceImport, nil
	}
	return registry.ParseSource(s)
}

// DeriveAddress handles POST /api/v1/keyrings/{fingerprint}/addresses
func (h *APIHandler) DeriveAddress(w http.ResponseWriter, r *http.Request) {
	fp := chi.URLParam(r, "fingerprint")
	if err := validation.Fingerprint(fp); err != nil {
		invalid(w, err)
		return
	}

	addr, err := h.session.DeriveAddress(r.Context(), fp)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, map[string]string{"address": addr})
}

// RemoveKeyring handles DELETE /api/v1/keyrings/{fingerprint}
func (h *APIHandler) RemoveKeyring(w http.ResponseWriter, r *http.Request) {
	fp := chi.URLParam(r, "fingerprint")
	if err := validation.Fingerprint(fp); err != nil {
		invalid(w, err)
		return
	}

	if err := h.session.RemoveKeyring(r.Context(), fp); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Accounts

// HideAccount handles POST /api/v1/accounts/{address}/hide
func (h *APIHandler) HideAccount(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")
	if err := validation.Address(addr); err != nil {
		invalid(w, err)
		return
	}

	if err := h.session.HideAccount(r.Context(), addr); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportPrivateKey handles POST /api/v1/accounts/{address}/export
func (h *APIHandler) ExportPrivateKey(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")
	if err := validation.Address(addr); err != nil {
		invalid(w, err)
		return
	}

	key, err := h.session.ExportPrivateKey(r.Context(), addr)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"privateKey": key})
}

// Signing

// SignTransaction handles POST /api/v1/sign/transaction
func (h *APIHandler) SignTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string                     `json:"address"`
		Family  string                     `json:"family"`
		Request signing.TransactionRequest `json:"request"`
	}
	if !h.decode(w, r, &req, false) {
		return
	}
	if err := validation.Address(req.Address); err != nil {
		invalid(w, err)
		return
	}
	family, err := signing.ParseFamily(req.Family)
	if err != nil {
		writeError(w, r, err)
		return
	}

	signed, err := h.signer.SignTransaction(r.Context(), req.Address, family, req.Request)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, signed)
}

type signatureResponse struct {
	Signature hexutil.Bytes `json:"signature"`
}

// SignTypedData handles POST /api/v1/sign/typed-data
func (h *APIHandler) SignTypedData(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address   string             `json:"address"`
		TypedData apitypes.TypedData `json:"typedData"`
	}
	if !h.decode(w, r, &req, false) {
		return
	}
	if err := validation.Address(req.Address); err != nil {
		invalid(w, err)
		return
	}

	sig, err := h.signer.SignTypedData(r.Context(), req.Address, req.TypedData)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, signatureResponse{Signature: sig})
}

// PersonalSign handles POST /api/v1/sign/personal
//
// The message is UTF-8 text unless encoding is "hex", in which case it is
// 0x-prefixed hex.
func (h *APIHandler) PersonalSign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address  string `json:"address"`
		Message  string `json:"message"`
		Encoding string `json:"encoding"`
	}
	if !h.decode(w, r, &req, false) {
		return
	}
	if err := validation.Address(req.Address); err != nil {
		invalid(w, err)
		return
	}

	msg := []byte(req.Message)
	switch req.Encoding {
	case "", "utf8":
	case "hex":
		decoded, err := hexutil.Decode(req.Message)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "INVALID_INPUT", "message is not valid 0x-prefixed hex")
			return
		}
		msg = decoded
	default:
		jsonError(w, http.StatusBadRequest, "INVALID_INPUT", "encoding must be utf8 or hex")
		return
	}
	if err := validation.Message(msg); err != nil {
		invalid(w, err)
		return
	}

	sig, err := h.signer.PersonalSign(r.Context(), req.Address, msg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, signatureResponse{Signature: sig})
}
