// Package synclog records one row per Sync Engine run for audit.
package synclog

import (
	"context"
	"time"
)

// Status of a sync run.
type Status string

const (
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusError   Status = "error"

	DefaultListLimit = 20
	MaxListLimit     = 100
)

// SyncLog references its link by id only; deleting a link keeps its history.
type SyncLog struct {
	ID                  string     `json:"id"`
	LinkID              string     `json:"link_id"`
	Status              Status     `json:"status"`
	AccountsFetched     int        `json:"accounts_fetched"`
	TransactionsFetched int        `json:"transactions_fetched"`
	ErrorMessage        string     `json:"error_message,omitempty"`
	StartedAt           time.Time  `json:"started_at"`
	FinishedAt          *time.Time `json:"finished_at"`
}

// Result is the terminal outcome written by Finish.
type Result struct {
	Status              Status
	AccountsFetched     int
	TransactionsFetched int
	ErrorMessage        string
}

// Repository is append-only: Start opens a running row, Finish closes it
// once. Finished rows are never modified again.
type Repository interface {
	Start(ctx context.Context, linkID string) (*SyncLog, error)
	Finish(ctx context.Context, id string, result Result) error
	ListByLinkID(ctx context.Context, linkID string, limit int) ([]*SyncLog, error)
}

// ClampLimit maps a requested page size into [1, MaxListLimit].
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
