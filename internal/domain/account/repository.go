package account

import "context"

// Repository defines the interface for account data access
// This interface is defined in the domain layer, but implemented in the infrastructure layer
type Repository interface {
	// Upsert creates or updates an account keyed by (link, provider account id).
	// Balances are overwritten with the newest snapshot.
	Upsert(ctx context.Context, params UpsertParams) (*Account, error)

	// ListByUserID lists the user's accounts. An empty linkID lists all of them.
	ListByUserID(ctx context.Context, userID, linkID string) ([]*Account, error)

	// GetForUser returns ErrAccountNotFound when the account does not exist or
	// belongs to another user.
	GetForUser(ctx context.Context, userID, accountID string) (*Account, error)

	CountByUserID(ctx context.Context, userID string) (int, error)
}
