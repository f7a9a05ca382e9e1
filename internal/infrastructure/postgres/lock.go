package postgres

import (
	"context"
	"database/sql/driver"
	"fmt"
	"hash/fnv"

	"ofsync/internal/shared/logger"

	"go.uber.org/zap"
)

// AdvisoryLocker hands out session-level PostgreSQL advisory locks. Each
// held lock pins one pooled connection until it is released.
type AdvisoryLocker struct {
	db *DB
}

func NewAdvisoryLocker(db *DB) *AdvisoryLocker {
	return &AdvisoryLocker{db: db}
}

// TryLock attempts pg_try_advisory_lock for key without waiting.
func (l *AdvisoryLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire connection for lock: %w", err)
	}

	id := lockID(key)

	var acquired bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, id).Scan(&acquired); err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("failed to try advisory lock: %w", err)
	}
	if !acquired {
		conn.Close()
		return nil, false, nil
	}

	unlock := func() {
		// the caller's context may already be done
		if _, err := conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, id); err != nil {
			logger.Get().Warn("failed to release advisory lock", zap.String("key", key), zap.Error(err))
			// a broken session drops its locks, so discard the connection
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		}
		conn.Close()
	}
	return unlock, true, nil
}

// lockID maps a lock key onto the bigint key space of advisory locks.
func lockID(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}
