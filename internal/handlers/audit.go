package handlers

import (
	"net/http"
	"strconv"

	"github.com/sendnodes-io/sendwallet-sub000/internal/audit"
)

// maxAuditLimit caps a single audit page.
const maxAuditLimit = 1000

// AuditHandler serves the audit trail.
type AuditHandler struct {
	store audit.Store
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(store audit.Store) *AuditHandler {
	return &AuditHandler{store: store}
}

// List handles GET /api/v1/audit
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := audit.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxAuditLimit {
			jsonError(w, http.StatusBadRequest, "INVALID_INPUT", "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	entries, err := h.store.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	jsonResponse(w, http.StatusOK, entries)
}
