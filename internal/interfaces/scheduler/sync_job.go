package scheduler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ofsync/internal/domain/link"
	"ofsync/internal/domain/openfinance"
	"ofsync/internal/shared/logger"
)

// LinkSyncer runs the sync engine for one link.
type LinkSyncer interface {
	SyncByID(ctx context.Context, linkID string) (*openfinance.LinkSyncResult, error)
}

// LinkSyncJob implements the Job interface for syncing one link.
type LinkSyncJob struct {
	linkID string
	syncer LinkSyncer
}

// NewLinkSyncJob creates a new sync job for a link
func NewLinkSyncJob(linkID string, syncer LinkSyncer) *LinkSyncJob {
	return &LinkSyncJob{linkID: linkID, syncer: syncer}
}

// Execute runs the sync. A run skipped because another one holds the link
// counts as success.
func (j *LinkSyncJob) Execute(ctx context.Context) error {
	res, err := j.syncer.SyncByID(ctx, j.linkID)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	if res.Skipped {
		logger.FromContext(ctx).Info("sync skipped, already running", zap.String("link_id", j.linkID))
		return nil
	}
	if res.Error != "" {
		return fmt.Errorf("sync completed with errors: %s", res.Error)
	}
	return nil
}

// Subject returns the link id this job syncs.
func (j *LinkSyncJob) Subject() string {
	return j.linkID
}

func (j *LinkSyncJob) Description() string {
	return "link sync"
}

// SyncJobProvider emits one LinkSyncJob per syncable link.
func SyncJobProvider(links link.Repository, syncer LinkSyncer) JobProvider {
	return func(ctx context.Context) ([]Job, error) {
		syncable, err := links.ListSyncable(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list syncable links: %w", err)
		}

		jobs := make([]Job, 0, len(syncable))
		for _, l := range syncable {
			jobs = append(jobs, NewLinkSyncJob(l.ID, syncer))
		}
		return jobs, nil
	}
}

// jobSubmitter is the part of *WorkerPool PoolQueue uses.
type jobSubmitter interface {
	Submit(job Job) error
}

// PoolQueue is the in-process openfinance.SyncQueue: each request becomes a
// LinkSyncJob on the worker pool.
type PoolQueue struct {
	pool   jobSubmitter
	syncer LinkSyncer
}

func NewPoolQueue(pool jobSubmitter, syncer LinkSyncer) *PoolQueue {
	return &PoolQueue{pool: pool, syncer: syncer}
}

var _ openfinance.SyncQueue = (*PoolQueue)(nil)

// EnqueueSync submits without blocking; a full pool returns ErrQueueFull.
func (q *PoolQueue) EnqueueSync(ctx context.Context, linkID string) error {
	return q.pool.Submit(NewLinkSyncJob(linkID, q.syncer))
}
