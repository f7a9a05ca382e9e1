package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"ofsync/internal/domain/transaction"
)

const transactionColumns = `t.id, t.account_id, t.provider_transaction_id, t.amount, t.currency,
	t.transaction_type, t.status, t.category, t.description, t.merchant_name,
	t.transaction_date, t.raw, t.created_at, t.updated_at`

type TransactionRepository struct {
	db *DB
}

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

var _ transaction.Repository = (*TransactionRepository)(nil)

func scanTransaction(row rowScanner, extra ...any) (*transaction.Transaction, error) {
	var txn transaction.Transaction
	var currency, txnType, status, category, merchant sql.NullString
	var raw []byte

	dest := []any{
		&txn.ID, &txn.AccountID, &txn.ProviderTransactionID, &txn.Amount, &currency,
		&txnType, &status, &category, &txn.Description, &merchant,
		&txn.Date, &raw, &txn.CreatedAt, &txn.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	txn.Currency = currency.String
	txn.Type = txnType.String
	txn.Status = status.String
	txn.Category = category.String
	txn.MerchantName = merchant.String
	txn.Raw = raw

	return &txn, nil
}

// Upsert inserts or refreshes a transaction (used for syncing from the
// aggregator). Mutable fields follow the latest fetch.
func (r *TransactionRepository) Upsert(ctx context.Context, params transaction.UpsertParams) (*transaction.Transaction, bool, error) {
	query := `
		INSERT INTO open_finance_transactions AS t (
			account_id, provider_transaction_id, amount, currency, transaction_type, status,
			category, description, merchant_name, transaction_date, raw
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (account_id, provider_transaction_id) DO UPDATE SET
		    amount = EXCLUDED.amount,
		    currency = EXCLUDED.currency,
		    transaction_type = EXCLUDED.transaction_type,
		    status = EXCLUDED.status,
		    category = EXCLUDED.category,
		    description = EXCLUDED.description,
		    merchant_name = EXCLUDED.merchant_name,
		    transaction_date = EXCLUDED.transaction_date,
		    raw = EXCLUDED.raw,
		    updated_at = CURRENT_TIMESTAMP
		RETURNING ` + transactionColumns + `, (xmax = 0) AS inserted`

	var inserted bool
	txn, err := scanTransaction(r.db.QueryRowContext(ctx, query,
		params.AccountID, params.ProviderTransactionID, params.Amount, nullString(params.Currency),
		nullString(params.Type), nullString(params.Status), nullString(params.Category),
		params.Description, nullString(params.MerchantName), params.Date, rawJSON(params.Raw),
	), &inserted)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert transaction: %w", err)
	}

	return txn, inserted, nil
}

// List returns the user's transactions, newest first. The filter must have
// been validated by the caller.
func (r *TransactionRepository) List(ctx context.Context, f transaction.ListFilter) ([]*transaction.Transaction, error) {
	query, args := buildListQuery(f)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	txns := []*transaction.Transaction{}
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return txns, nil
}

// buildListQuery turns a filter into SQL. From and To are inclusive dates,
// so To becomes an exclusive bound one day later.
func buildListQuery(f transaction.ListFilter) (string, []any) {
	var b strings.Builder
	b.WriteString(`
		SELECT ` + transactionColumns + `
		FROM open_finance_transactions t
		JOIN open_finance_accounts a ON a.id = t.account_id
		JOIN open_finance_links l ON l.id = a.link_id
		WHERE l.user_id = $1`)
	args := []any{f.UserID}

	if f.AccountID != "" {
		args = append(args, f.AccountID)
		fmt.Fprintf(&b, "\n\t\t  AND t.account_id = $%d", len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		fmt.Fprintf(&b, "\n\t\t  AND t.transaction_date >= $%d", len(args))
	}
	if f.To != nil {
		args = append(args, f.To.AddDate(0, 0, 1))
		fmt.Fprintf(&b, "\n\t\t  AND t.transaction_date < $%d", len(args))
	}

	args = append(args, f.Limit, f.Offset)
	fmt.Fprintf(&b, "\n\t\tORDER BY t.transaction_date DESC, t.id DESC\n\t\tLIMIT $%d OFFSET $%d", len(args)-1, len(args))

	return b.String(), args
}

// CountByUserID counts the user's transactions across all accounts.
func (r *TransactionRepository) CountByUserID(ctx context.Context, userID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM open_finance_transactions t
		JOIN open_finance_accounts a ON a.id = t.account_id
		JOIN open_finance_links l ON l.id = a.link_id
		WHERE l.user_id = $1
	`

	var n int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return n, nil
}

func (r *TransactionRepository) CountByAccountID(ctx context.Context, accountID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM open_finance_transactions WHERE account_id = $1`, accountID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return n, nil
}
