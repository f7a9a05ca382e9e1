package listener

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingQueue struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (q *recordingQueue) EnqueueSync(ctx context.Context, linkID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, linkID)
	return q.err
}

func TestNotificationRoundTrip(t *testing.T) {
	payload, err := encodeNotification("7a1c2d3e-4f50-4a6b-8c7d-9e0f1a2b3c4d")
	if err != nil {
		t.Fatalf("encodeNotification() error = %v", err)
	}
	if payload != `{"link_id":"7a1c2d3e-4f50-4a6b-8c7d-9e0f1a2b3c4d"}` {
		t.Errorf("payload = %s", payload)
	}

	got, err := decodeNotification(payload)
	if err != nil || got != "7a1c2d3e-4f50-4a6b-8c7d-9e0f1a2b3c4d" {
		t.Errorf("decodeNotification() = %q, %v", got, err)
	}
}

func TestDecodeNotification_Invalid(t *testing.T) {
	for _, extra := range []string{"", "not json", `{}`, `{"link_id":""}`} {
		if _, err := decodeNotification(extra); err == nil {
			t.Errorf("decodeNotification(%q) expected error", extra)
		}
	}
}

func newTestListener(q *recordingQueue) (*SyncListener, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewSyncListener("", q)
	l.log = zap.New(core)
	return l, logs
}

func TestSyncListener_Handle(t *testing.T) {
	q := &recordingQueue{}
	l, _ := newTestListener(q)

	l.handle(context.Background(), &pq.Notification{Channel: channelName, Extra: `{"link_id":"abc"}`})
	l.handle(context.Background(), &pq.Notification{Channel: channelName, Extra: `garbage`})

	if len(q.ids) != 1 || q.ids[0] != "abc" {
		t.Errorf("enqueued = %v, want [abc]", q.ids)
	}
}

func TestSyncListener_HandleQueueFull(t *testing.T) {
	q := &recordingQueue{err: errors.New("queue full")}
	l, logs := newTestListener(q)

	l.handle(context.Background(), &pq.Notification{Channel: channelName, Extra: `{"link_id":"abc"}`})

	if logs.FilterMessage("failed to enqueue sync from notification").Len() != 1 {
		t.Error("expected enqueue failure to be logged")
	}
}
