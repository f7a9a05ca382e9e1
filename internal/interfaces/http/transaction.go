package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"ofsync/internal/domain/transaction"
	"ofsync/internal/shared/errs"
	"ofsync/internal/shared/middleware"
)

const dateLayout = "2006-01-02"

// TransactionHandler serves paginated transaction listings.
type TransactionHandler struct {
	transactionService *transaction.Service
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(transactionService *transaction.Service) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService}
}

// HandleListTransactions returns one page of the caller's transactions.
//
// Query parameters: account_id, from and to (YYYY-MM-DD, inclusive), limit
// and offset.
func (h *TransactionHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter.UserID = middleware.UserID(r.Context())

	txns, err := h.transactionService.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txns)
}

func parseListFilter(r *http.Request) (transaction.ListFilter, error) {
	var (
		f   transaction.ListFilter
		err error
	)

	if f.AccountID, err = queryUUID(r, "account_id"); err != nil {
		return f, err
	}
	if f.From, err = queryDate(r, "from"); err != nil {
		return f, err
	}
	if f.To, err = queryDate(r, "to"); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(r, "limit", 0); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(r, "offset", 0); err != nil {
		return f, err
	}
	return f, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errs.NewValidationError(name + " must be an integer")
	}
	return n, nil
}

func queryDate(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, errs.NewValidationError(name + " must be a date (YYYY-MM-DD)")
	}
	return &t, nil
}

func queryUUID(r *http.Request, name string) (string, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return "", nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", errs.NewValidationError(name + " must be a UUID")
	}
	return id.String(), nil
}
