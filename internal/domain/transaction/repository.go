package transaction

import "context"

// Repository defines the interface for transaction data access
type Repository interface {
	// Upsert inserts or refreshes a transaction keyed by (account, provider
	// transaction id). inserted is false when an existing row was updated.
	Upsert(ctx context.Context, params UpsertParams) (txn *Transaction, inserted bool, err error)

	// List returns the user's transactions newest first.
	List(ctx context.Context, filter ListFilter) ([]*Transaction, error)

	CountByUserID(ctx context.Context, userID string) (int, error)
	CountByAccountID(ctx context.Context, accountID string) (int, error)
}
