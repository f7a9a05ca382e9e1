// Package listener carries sync requests between processes over PostgreSQL
// LISTEN/NOTIFY.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"ofsync/internal/domain/openfinance"
	"ofsync/internal/infrastructure/postgres"
	"ofsync/internal/shared/logger"
)

const (
	channelName       = "link_sync"
	reconnectInterval = 5 * time.Second
	pingInterval      = 90 * time.Second
)

// SyncNotification is the NOTIFY payload.
type SyncNotification struct {
	LinkID string `json:"link_id"`
}

// NotifyQueue publishes sync requests with pg_notify. Any process running a
// SyncListener may pick them up.
type NotifyQueue struct {
	db *postgres.DB
}

func NewNotifyQueue(db *postgres.DB) *NotifyQueue {
	return &NotifyQueue{db: db}
}

var _ openfinance.SyncQueue = (*NotifyQueue)(nil)

// EnqueueSync publishes one request and returns without waiting for it.
func (q *NotifyQueue) EnqueueSync(ctx context.Context, linkID string) error {
	payload, err := encodeNotification(linkID)
	if err != nil {
		return err
	}
	if _, err := q.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, channelName, payload); err != nil {
		return fmt.Errorf("failed to publish sync request: %w", err)
	}
	return nil
}

func encodeNotification(linkID string) (string, error) {
	b, err := json.Marshal(SyncNotification{LinkID: linkID})
	if err != nil {
		return "", fmt.Errorf("failed to encode sync request: %w", err)
	}
	return string(b), nil
}

func decodeNotification(extra string) (string, error) {
	var n SyncNotification
	if err := json.Unmarshal([]byte(extra), &n); err != nil {
		return "", fmt.Errorf("failed to parse notification payload: %w", err)
	}
	if n.LinkID == "" {
		return "", fmt.Errorf("notification payload has no link_id")
	}
	return n.LinkID, nil
}

// SyncListener consumes link_sync notifications and hands each link to a
// local queue.
type SyncListener struct {
	connStr    string
	local      openfinance.SyncQueue
	log        *zap.Logger
	shutdownCh chan struct{}
	done       chan struct{}
}

// NewSyncListener creates a listener that forwards to local.
func NewSyncListener(connStr string, local openfinance.SyncQueue) *SyncListener {
	return &SyncListener{
		connStr:    connStr,
		local:      local,
		log:        logger.Get().With(zap.String("component", "sync_listener")),
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start begins listening for notifications in a background goroutine
func (l *SyncListener) Start(ctx context.Context) {
	go l.listen(ctx)
	l.log.Info("sync notification listener started", zap.String("channel", channelName))
}

// Stop gracefully shuts down the listener
func (l *SyncListener) Stop() {
	close(l.shutdownCh)
	<-l.done
	l.log.Info("sync notification listener stopped")
}

func (l *SyncListener) listen(ctx context.Context) {
	defer close(l.done)

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		default:
			l.connectAndListen(ctx)
		}

		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(reconnectInterval):
			l.log.Info("reconnecting to PostgreSQL for notifications")
		}
	}
}

func (l *SyncListener) connectAndListen(ctx context.Context) {
	listener := pq.NewListener(l.connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			l.log.Info("connected to notification channel")
		case pq.ListenerEventDisconnected:
			l.log.Warn("disconnected from notification channel", zap.Error(err))
		case pq.ListenerEventReconnected:
			l.log.Info("reconnected to notification channel")
		case pq.ListenerEventConnectionAttemptFailed:
			l.log.Warn("notification connection attempt failed", zap.Error(err))
		}
	})
	defer listener.Close()

	if err := listener.Listen(channelName); err != nil {
		l.log.Error("failed to listen on channel", zap.String("channel", channelName), zap.Error(err))
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case n := <-listener.Notify:
			if n == nil {
				// connection lost; pq re-delivers nothing, so reconnect
				return
			}
			l.handle(ctx, n)
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					l.log.Warn("listener ping failed", zap.Error(err))
				}
			}()
		}
	}
}

func (l *SyncListener) handle(ctx context.Context, n *pq.Notification) {
	linkID, err := decodeNotification(n.Extra)
	if err != nil {
		l.log.Warn("dropping sync notification", zap.Error(err))
		return
	}

	if err := l.local.EnqueueSync(ctx, linkID); err != nil {
		l.log.Warn("failed to enqueue sync from notification", zap.String("link_id", linkID), zap.Error(err))
		return
	}
	l.log.Debug("sync queued from notification", zap.String("link_id", linkID))
}
