package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"ofsync/internal/domain/account"
	"ofsync/internal/domain/link"
	"ofsync/internal/domain/openfinance"
	"ofsync/internal/domain/transaction"
	"ofsync/internal/shared/errs"
	"ofsync/internal/shared/logger"
	"ofsync/internal/shared/validate"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain and transport errors to a status code. Anything it
// does not recognise is logged and reported as a 500 without details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := classify(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func classify(err error) (int, string, string) {
	var (
		validationErr   *errs.ValidationError
		notFoundErr     *errs.NotFoundError
		unauthorizedErr *errs.UnauthorizedError
		externalErr     *errs.ExternalServiceError
	)

	switch {
	case errors.Is(err, openfinance.ErrUnauthenticated),
		errors.Is(err, openfinance.ErrSignatureMissing),
		errors.Is(err, openfinance.ErrSignatureMismatch),
		errors.As(err, &unauthorizedErr):
		return http.StatusUnauthorized, "unauthorized", err.Error()

	case errors.Is(err, link.ErrInvalidInput),
		errors.Is(err, account.ErrInvalidInput),
		errors.Is(err, transaction.ErrInvalidInput),
		errors.Is(err, transaction.ErrInvalidFilter),
		errors.Is(err, openfinance.ErrInvalidPayload),
		errors.As(err, &validationErr):
		return http.StatusBadRequest, "invalid_request", err.Error()

	case errors.Is(err, link.ErrLinkNotFound),
		errors.Is(err, account.ErrAccountNotFound),
		errors.As(err, &notFoundErr):
		return http.StatusNotFound, "not_found", err.Error()

	case errors.Is(err, link.ErrLinkTerminal):
		return http.StatusConflict, "conflict", err.Error()

	case errors.As(err, &externalErr):
		if externalErr.Transient {
			return http.StatusServiceUnavailable, "upstream_unavailable", err.Error()
		}
		return http.StatusBadGateway, "upstream_error", err.Error()
	}

	return http.StatusInternalServerError, "internal_error", "internal server error"
}

// decodeJSON reads an optional JSON body into dst and validates it. An empty
// body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errs.NewValidationError("invalid JSON body")
	}
	if err := validate.Struct(dst); err != nil {
		return errs.NewValidationError(err.Error())
	}
	return nil
}
