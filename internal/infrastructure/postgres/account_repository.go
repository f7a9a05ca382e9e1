package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"ofsync/internal/domain/account"
)

const accountColumns = `a.id, a.link_id, a.provider_account_id, a.name, a.account_type, a.subtype,
	a.currency, a.balance_current, a.balance_available, a.balance_updated_at, a.raw,
	a.created_at, a.updated_at`

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	db *DB
}

// NewAccountRepository creates a new PostgreSQL account repository
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

var _ account.Repository = (*AccountRepository)(nil)

func scanAccount(row rowScanner) (*account.Account, error) {
	var acc account.Account
	var subtype sql.NullString
	var available decimal.NullDecimal
	var balanceUpdatedAt sql.NullTime
	var raw []byte

	err := row.Scan(
		&acc.ID, &acc.LinkID, &acc.ProviderAccountID, &acc.Name, &acc.Type, &subtype,
		&acc.Currency, &acc.BalanceCurrent, &available, &balanceUpdatedAt, &raw,
		&acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	acc.Subtype = subtype.String
	acc.BalanceAvailable = decimalPtr(available)
	acc.BalanceUpdatedAt = timePtr(balanceUpdatedAt)
	acc.Raw = raw

	return &acc, nil
}

// Upsert creates or refreshes an account keyed by (link_id, provider_account_id).
// Balances always take the incoming snapshot.
func (r *AccountRepository) Upsert(ctx context.Context, params account.UpsertParams) (*account.Account, error) {
	query := `
		INSERT INTO open_finance_accounts AS a (
			link_id, provider_account_id, name, account_type, subtype, currency,
			balance_current, balance_available, balance_updated_at, raw
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (link_id, provider_account_id)
		DO UPDATE SET
			name = EXCLUDED.name,
			account_type = EXCLUDED.account_type,
			subtype = EXCLUDED.subtype,
			currency = EXCLUDED.currency,
			balance_current = EXCLUDED.balance_current,
			balance_available = EXCLUDED.balance_available,
			balance_updated_at = EXCLUDED.balance_updated_at,
			raw = EXCLUDED.raw,
			updated_at = CURRENT_TIMESTAMP
		RETURNING ` + accountColumns

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query,
		params.LinkID, params.ProviderAccountID, params.Name, params.Type, nullString(params.Subtype), params.Currency,
		params.BalanceCurrent, decimalPtrArg(params.BalanceAvailable), timePtrArg(params.BalanceUpdatedAt), rawJSON(params.Raw),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert account: %w", err)
	}
	return acc, nil
}

// ListByUserID retrieves the user's accounts through their links. An empty
// linkID lists every account.
func (r *AccountRepository) ListByUserID(ctx context.Context, userID, linkID string) ([]*account.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM open_finance_accounts a
		JOIN open_finance_links l ON l.id = a.link_id
		WHERE l.user_id = $1
		  AND ($2 = '' OR a.link_id::text = $2)
		ORDER BY a.created_at ASC, a.id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, linkID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []*account.Account{}
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

// GetForUser retrieves one account, scoped to its owner.
func (r *AccountRepository) GetForUser(ctx context.Context, userID, accountID string) (*account.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM open_finance_accounts a
		JOIN open_finance_links l ON l.id = a.link_id
		WHERE a.id = $1 AND l.user_id = $2
	`

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, accountID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acc, nil
}

// CountByUserID counts the user's accounts across all links.
func (r *AccountRepository) CountByUserID(ctx context.Context, userID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM open_finance_accounts a
		JOIN open_finance_links l ON l.id = a.link_id
		WHERE l.user_id = $1
	`

	var n int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return n, nil
}
