package http

import (
	"context"
	"io"
	"net/http"

	"go.uber.org/zap"

	"ofsync/internal/domain/link"
	"ofsync/internal/domain/openfinance"
	"ofsync/internal/shared/errs"
	"ofsync/internal/shared/logger"
	"ofsync/internal/shared/middleware"
)

// WebhookSignatureHeader carries the hex HMAC-SHA256 of the raw body.
const WebhookSignatureHeader = "X-Webhook-Signature"

// Connector starts and ends user bank connections.
type Connector interface {
	Connect(ctx context.Context, userID string) (*openfinance.ConnectResult, error)
	Disconnect(ctx context.Context, userID, linkID string) (*link.Link, error)
}

// Syncer runs the Sync Engine on demand.
type Syncer interface {
	SyncByID(ctx context.Context, linkID string) (*openfinance.LinkSyncResult, error)
	SyncAll(ctx context.Context) ([]*openfinance.LinkSyncResult, error)
}

// OpenFinanceHandler serves the connect, webhook and sync endpoints.
type OpenFinanceHandler struct {
	connector Connector
	webhooks  *openfinance.WebhookProcessor
	syncer    Syncer
}

// NewOpenFinanceHandler creates a new open finance handler
func NewOpenFinanceHandler(connector Connector, webhooks *openfinance.WebhookProcessor, syncer Syncer) *OpenFinanceHandler {
	return &OpenFinanceHandler{
		connector: connector,
		webhooks:  webhooks,
		syncer:    syncer,
	}
}

// SyncRequest is the optional body of the sync endpoint.
type SyncRequest struct {
	LinkID string `json:"link_id" validate:"omitempty,uuid"`
}

// SyncResponse lists one result per link that was attempted.
type SyncResponse struct {
	Synced []*openfinance.LinkSyncResult `json:"synced"`
}

// HandleConnect creates a pending link and returns the consent URL.
func (h *OpenFinanceHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	result, err := h.connector.Connect(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleWebhook verifies and applies one aggregator event. Parseable events
// are always acknowledged, even when they match no link.
func (h *OpenFinanceHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, errs.NewValidationError("unable to read request body"))
		return
	}

	if err := h.webhooks.Verify(r.Context(), body, r.Header.Get(WebhookSignatureHeader)); err != nil {
		logger.FromContext(r.Context()).Warn("webhook rejected", zap.Error(err))
		writeError(w, r, err)
		return
	}

	ev, err := openfinance.ParseWebhookEvent(body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := h.webhooks.Process(r.Context(), ev); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// HandleSync runs the Sync Engine for one link, or for every syncable link
// when the body names none.
func (h *OpenFinanceHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if req.LinkID != "" {
		res, err := h.syncer.SyncByID(r.Context(), req.LinkID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, SyncResponse{Synced: []*openfinance.LinkSyncResult{res}})
		return
	}

	results, err := h.syncer.SyncAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if results == nil {
		results = []*openfinance.LinkSyncResult{}
	}
	writeJSON(w, http.StatusOK, SyncResponse{Synced: results})
}

// HandleDisconnect revokes one of the caller's links.
func (h *OpenFinanceHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	linkID, err := pathUUID(r, "linkID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	l, err := h.connector.Disconnect(r.Context(), middleware.UserID(r.Context()), linkID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}
