package http

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"ofsync/internal/domain/openfinance"
	"ofsync/internal/shared/logger"
	"ofsync/internal/shared/middleware"
)

// SummaryProvider computes the per-user financial summary.
type SummaryProvider interface {
	Summary(ctx context.Context, userID string) (*openfinance.Summary, error)
}

// SummaryHandler serves the dashboard summary.
type SummaryHandler struct {
	summaries SummaryProvider
}

// NewSummaryHandler creates a new summary handler
func NewSummaryHandler(summaries SummaryProvider) *SummaryHandler {
	return &SummaryHandler{summaries: summaries}
}

// HandleSummary returns balances, counts and connection health for the caller.
func (h *SummaryHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.summaries.Summary(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a health handler. db may be nil.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// HandleHealth returns a simple health check response.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			logger.FromContext(r.Context()).Warn("health check: database unreachable", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
