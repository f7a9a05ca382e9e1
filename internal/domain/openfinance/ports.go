package openfinance

import (
	"context"

	"ofsync/internal/domain/link"
)

// SyncQueue schedules a background sync for a link. Implementations must
// return without waiting for the sync to run.
type SyncQueue interface {
	EnqueueSync(ctx context.Context, linkID string) error
}

// Locker provides non-blocking exclusive locks keyed by string. unlock must
// be called exactly once when acquired is true.
type Locker interface {
	TryLock(ctx context.Context, key string) (unlock func(), acquired bool, err error)
}

// LinkNotifier is told when a link enters an error-like status.
type LinkNotifier interface {
	LinkStatusChanged(ctx context.Context, l *link.Link) error
}
