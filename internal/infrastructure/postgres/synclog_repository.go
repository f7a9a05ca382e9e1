package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"ofsync/internal/domain/synclog"
)

// SyncLogRepository implements synclog.Repository for PostgreSQL. Rows are
// only ever inserted and closed once.
type SyncLogRepository struct {
	db *DB
}

func NewSyncLogRepository(db *DB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

var _ synclog.Repository = (*SyncLogRepository)(nil)

const syncLogColumns = `id, link_id, status, accounts_fetched, transactions_fetched,
	error_message, started_at, finished_at`

func scanSyncLog(row rowScanner) (*synclog.SyncLog, error) {
	var l synclog.SyncLog
	var errorMessage sql.NullString
	var finishedAt sql.NullTime

	err := row.Scan(
		&l.ID, &l.LinkID, &l.Status, &l.AccountsFetched, &l.TransactionsFetched,
		&errorMessage, &l.StartedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}

	l.ErrorMessage = errorMessage.String
	l.FinishedAt = timePtr(finishedAt)
	return &l, nil
}

// Start opens a running entry for linkID.
func (r *SyncLogRepository) Start(ctx context.Context, linkID string) (*synclog.SyncLog, error) {
	query := `
		INSERT INTO open_finance_sync_logs (link_id, status)
		VALUES ($1, 'running')
		RETURNING ` + syncLogColumns

	l, err := scanSyncLog(r.db.QueryRowContext(ctx, query, linkID))
	if err != nil {
		return nil, fmt.Errorf("failed to start sync log: %w", err)
	}
	return l, nil
}

// Finish closes a running entry. Entries that are already closed are left
// untouched and reported as an error.
func (r *SyncLogRepository) Finish(ctx context.Context, id string, result synclog.Result) error {
	query := `
		UPDATE open_finance_sync_logs
		SET status = $2,
		    accounts_fetched = $3,
		    transactions_fetched = $4,
		    error_message = $5,
		    finished_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = 'running'
	`

	res, err := r.db.ExecContext(ctx, query,
		id, result.Status, result.AccountsFetched, result.TransactionsFetched, nullString(result.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("failed to finish sync log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sync log %s is not running", id)
	}
	return nil
}

// ListByLinkID lists the newest entries for a link.
func (r *SyncLogRepository) ListByLinkID(ctx context.Context, linkID string, limit int) ([]*synclog.SyncLog, error) {
	query := `
		SELECT ` + syncLogColumns + `
		FROM open_finance_sync_logs
		WHERE link_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, linkID, synclog.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list sync logs: %w", err)
	}
	defer rows.Close()

	logs := []*synclog.SyncLog{}
	for rows.Next() {
		l, err := scanSyncLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync log: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync logs: %w", err)
	}
	return logs, nil
}
