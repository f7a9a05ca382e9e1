package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ofsync/internal/domain/link"
)

const linkColumns = `id, user_id, provider, provider_link_id, institution_name, status,
	consent_expires_at, last_synced_at, error_message, created_at, updated_at`

// LinkRepository implements link.Repository for PostgreSQL
type LinkRepository struct {
	db *DB
}

// NewLinkRepository creates a new PostgreSQL link repository
func NewLinkRepository(db *DB) *LinkRepository {
	return &LinkRepository{db: db}
}

var _ link.Repository = (*LinkRepository)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*link.Link, error) {
	var l link.Link
	var providerLinkID, institution, errorMessage sql.NullString
	var consentExpiresAt, lastSyncedAt sql.NullTime

	err := row.Scan(
		&l.ID, &l.UserID, &l.Provider, &providerLinkID, &institution, &l.Status,
		&consentExpiresAt, &lastSyncedAt, &errorMessage, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.ProviderLinkID = providerLinkID.String
	l.InstitutionName = institution.String
	l.ErrorMessage = errorMessage.String
	l.ConsentExpiresAt = timePtr(consentExpiresAt)
	l.LastSyncedAt = timePtr(lastSyncedAt)

	return &l, nil
}

// Create inserts a pending link.
func (r *LinkRepository) Create(ctx context.Context, params link.CreateParams) (*link.Link, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO open_finance_links (id, user_id, provider, status)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + linkColumns

	l, err := scanLink(r.db.QueryRowContext(ctx, query,
		params.ID, params.UserID, params.Provider, link.Transition("", link.EventConnectInitiated),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create link: %w", err)
	}
	return l, nil
}

// GetByID retrieves a link by its ID
func (r *LinkRepository) GetByID(ctx context.Context, id string) (*link.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM open_finance_links WHERE id = $1`

	l, err := scanLink(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, link.ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return l, nil
}

// GetByProviderLinkID prefers a live link over a terminal one, then the newest.
func (r *LinkRepository) GetByProviderLinkID(ctx context.Context, providerLinkID string) (*link.Link, error) {
	if providerLinkID == "" {
		return nil, link.ErrLinkNotFound
	}

	query := `
		SELECT ` + linkColumns + `
		FROM open_finance_links
		WHERE provider_link_id = $1
		ORDER BY (status IN ('revoked', 'expired')), created_at DESC
		LIMIT 1
	`

	l, err := scanLink(r.db.QueryRowContext(ctx, query, providerLinkID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, link.ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link by provider id: %w", err)
	}
	return l, nil
}

// ListByUserID lists a user's links, newest first.
func (r *LinkRepository) ListByUserID(ctx context.Context, userID string) ([]*link.Link, error) {
	query := `
		SELECT ` + linkColumns + `
		FROM open_finance_links
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, userID)
}

// ListSyncable lists connected links that have a provider link id.
func (r *LinkRepository) ListSyncable(ctx context.Context) ([]*link.Link, error) {
	query := `
		SELECT ` + linkColumns + `
		FROM open_finance_links
		WHERE status = 'connected' AND provider_link_id IS NOT NULL AND provider_link_id <> ''
		ORDER BY last_synced_at ASC NULLS FIRST, created_at ASC
	`
	return r.list(ctx, query)
}

func (r *LinkRepository) list(ctx context.Context, query string, args ...any) ([]*link.Link, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	links := []*link.Link{}
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}
	return links, nil
}

// UpdateState writes a lifecycle change. The WHERE clause refuses to move a
// terminal link anywhere except expired to revoked, so concurrent webhook
// deliveries cannot resurrect a dead link.
func (r *LinkRepository) UpdateState(ctx context.Context, id string, u link.StateUpdate) (*link.Link, error) {
	if !u.Status.Valid() {
		return nil, fmt.Errorf("%w: status %q", link.ErrInvalidInput, u.Status)
	}

	query := `
		UPDATE open_finance_links
		SET status = $2,
		    error_message = CASE WHEN $3::boolean THEN NULLIF($4, '') ELSE error_message END,
		    provider_link_id = COALESCE($5, provider_link_id),
		    institution_name = COALESCE($6, institution_name),
		    consent_expires_at = COALESCE($7, consent_expires_at),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		  AND (
		    status NOT IN ('revoked', 'expired')
		    OR status = $2
		    OR (status = 'expired' AND $2 = 'revoked')
		  )
		RETURNING ` + linkColumns

	var errorMessage string
	if u.ErrorMessage != nil {
		errorMessage = *u.ErrorMessage
	}

	l, err := scanLink(r.db.QueryRowContext(ctx, query,
		id, u.Status, u.ErrorMessage != nil, errorMessage,
		stringPtrArg(u.ProviderLinkID), stringPtrArg(u.InstitutionName), timePtrArg(u.ConsentExpiresAt),
	))
	if errors.Is(err, sql.ErrNoRows) {
		// either the row is gone or the terminal guard rejected the update
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, link.ErrLinkTerminal
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update link state: %w", err)
	}
	return l, nil
}

// MarkSynced records a completed sync without touching the status.
func (r *LinkRepository) MarkSynced(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE open_finance_links SET last_synced_at = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("failed to mark link synced: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return link.ErrLinkNotFound
	}
	return nil
}
