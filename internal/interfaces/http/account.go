package http

import (
	"net/http"

	"ofsync/internal/domain/account"
	"ofsync/internal/shared/middleware"
)

// AccountHandler serves the caller's bank accounts.
type AccountHandler struct {
	accountService *account.Service
}

// NewAccountHandler creates a new account handler with service layer
func NewAccountHandler(accountService *account.Service) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

// HandleListAccounts returns the caller's accounts, optionally narrowed to
// the link named by ?link_id.
func (h *AccountHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	linkID, err := queryUUID(r, "link_id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	accounts, err := h.accountService.ListForUser(r.Context(), middleware.UserID(r.Context()), linkID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// HandleGetAccount returns one account if the caller owns it.
func (h *AccountHandler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathUUID(r, "accountID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	acc, err := h.accountService.GetForUser(r.Context(), middleware.UserID(r.Context()), accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}
