package scheduler

import (
	"context"
	"errors"
	"testing"

	"ofsync/internal/domain/link"
	"ofsync/internal/domain/openfinance"
)

type mockSyncer struct {
	SyncByIDFunc func(ctx context.Context, linkID string) (*openfinance.LinkSyncResult, error)
}

func (m *mockSyncer) SyncByID(ctx context.Context, linkID string) (*openfinance.LinkSyncResult, error) {
	return m.SyncByIDFunc(ctx, linkID)
}

func TestLinkSyncJob_Execute(t *testing.T) {
	tests := []struct {
		name    string
		result  *openfinance.LinkSyncResult
		err     error
		wantErr bool
	}{
		{name: "success", result: &openfinance.LinkSyncResult{LinkID: "l1", Accounts: 2}},
		{name: "skipped", result: &openfinance.LinkSyncResult{LinkID: "l1", Skipped: true}},
		{name: "partial failure", result: &openfinance.LinkSyncResult{LinkID: "l1", Error: "account a: boom"}, wantErr: true},
		{name: "unknown link", err: link.ErrLinkNotFound, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewLinkSyncJob("l1", &mockSyncer{
				SyncByIDFunc: func(ctx context.Context, linkID string) (*openfinance.LinkSyncResult, error) {
					if linkID != "l1" {
						t.Errorf("SyncByID(%q), want l1", linkID)
					}
					return tt.result, tt.err
				},
			})
			err := job.Execute(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.err != nil && !errors.Is(err, tt.err) {
				t.Errorf("Execute() error = %v, want wrapped %v", err, tt.err)
			}
		})
	}

	job := NewLinkSyncJob("l1", nil)
	if job.Subject() != "l1" || job.Description() == "" {
		t.Errorf("Subject() = %q, Description() = %q", job.Subject(), job.Description())
	}
}

type stubLinks struct {
	link.Repository
	syncable []*link.Link
	err      error
}

func (s *stubLinks) ListSyncable(ctx context.Context) ([]*link.Link, error) {
	return s.syncable, s.err
}

func TestSyncJobProvider(t *testing.T) {
	provider := SyncJobProvider(&stubLinks{syncable: []*link.Link{{ID: "a"}, {ID: "b"}}}, &mockSyncer{})

	jobs, err := provider(context.Background())
	if err != nil {
		t.Fatalf("provider() error = %v", err)
	}
	if len(jobs) != 2 || jobs[0].Subject() != "a" || jobs[1].Subject() != "b" {
		t.Errorf("jobs = %v", jobs)
	}

	failing := SyncJobProvider(&stubLinks{err: errors.New("db down")}, &mockSyncer{})
	if _, err := failing(context.Background()); err == nil {
		t.Error("expected provider error")
	}
}

type recordingPool struct {
	jobs []Job
	err  error
}

func (p *recordingPool) Submit(job Job) error {
	p.jobs = append(p.jobs, job)
	return p.err
}

func TestPoolQueue_EnqueueSync(t *testing.T) {
	pool := &recordingPool{}
	q := NewPoolQueue(pool, &mockSyncer{})

	if err := q.EnqueueSync(context.Background(), "l1"); err != nil {
		t.Fatalf("EnqueueSync() error = %v", err)
	}
	if len(pool.jobs) != 1 || pool.jobs[0].Subject() != "l1" {
		t.Errorf("submitted = %v", pool.jobs)
	}

	pool.err = ErrQueueFull
	if err := q.EnqueueSync(context.Background(), "l2"); !errors.Is(err, ErrQueueFull) {
		t.Errorf("EnqueueSync() error = %v, want ErrQueueFull", err)
	}
}
