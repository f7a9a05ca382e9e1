package link

import (
	"context"
	"time"
)

// Repository defines the interface for link data access.
type Repository interface {
	// Create inserts a new pending link.
	Create(ctx context.Context, params CreateParams) (*Link, error)

	// GetByID returns ErrLinkNotFound when no row matches.
	GetByID(ctx context.Context, id string) (*Link, error)

	// GetByProviderLinkID prefers the newest non-terminal link carrying the
	// provider-assigned id.
	GetByProviderLinkID(ctx context.Context, providerLinkID string) (*Link, error)

	ListByUserID(ctx context.Context, userID string) ([]*Link, error)

	// ListSyncable returns connected links with a provider link id.
	ListSyncable(ctx context.Context) ([]*Link, error)

	// UpdateState applies a StateUpdate. It returns ErrLinkTerminal when the
	// stored status is terminal and the update would leave it, except for
	// expired to revoked.
	UpdateState(ctx context.Context, id string, update StateUpdate) (*Link, error)

	// MarkSynced sets last_synced_at without touching status.
	MarkSynced(ctx context.Context, id string, at time.Time) error
}
