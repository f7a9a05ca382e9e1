package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"ofsync/internal/domain/link"
	"ofsync/internal/domain/synclog"
	"ofsync/internal/shared/errs"
	"ofsync/internal/shared/middleware"
)

// LinkHandler serves the caller's links and their sync history.
type LinkHandler struct {
	links *link.Service
	logs  synclog.Repository
}

// NewLinkHandler creates a new link handler
func NewLinkHandler(links *link.Service, logs synclog.Repository) *LinkHandler {
	return &LinkHandler{links: links, logs: logs}
}

// HandleListLinks returns every link owned by the caller.
func (h *LinkHandler) HandleListLinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.links.ListForUser(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

// HandleGetLink returns one of the caller's links.
func (h *LinkHandler) HandleGetLink(w http.ResponseWriter, r *http.Request) {
	linkID, err := pathUUID(r, "linkID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	l, err := h.links.GetForUser(r.Context(), middleware.UserID(r.Context()), linkID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// HandleSyncLogs returns the most recent sync runs of one of the caller's
// links, newest first.
func (h *LinkHandler) HandleSyncLogs(w http.ResponseWriter, r *http.Request) {
	linkID, err := pathUUID(r, "linkID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	limit, err := queryInt(r, "limit", synclog.DefaultListLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := h.links.GetForUser(r.Context(), middleware.UserID(r.Context()), linkID); err != nil {
		writeError(w, r, err)
		return
	}

	logs, err := h.logs.ListByLinkID(r.Context(), linkID, synclog.ClampLimit(limit))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if logs == nil {
		logs = []*synclog.SyncLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

// pathUUID reads a chi URL parameter that must hold a UUID.
func pathUUID(r *http.Request, name string) (string, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", errs.NewValidationError(name + " must be a UUID")
	}
	return id.String(), nil
}
