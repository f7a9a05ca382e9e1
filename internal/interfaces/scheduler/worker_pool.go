package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"ofsync/internal/shared/logger"
)

var (
	jobTracer = otel.Tracer("ofsync/scheduler")
	jobMeter  = otel.Meter("ofsync/scheduler")

	jobDuration, _ = jobMeter.Float64Histogram("scheduler.job.duration",
		metric.WithDescription("Job execution time in seconds"),
		metric.WithUnit("s"),
	)
	jobOutcomes, _ = jobMeter.Int64Counter("scheduler.job.total",
		metric.WithDescription("Executed jobs by outcome"),
	)
	jobsDropped, _ = jobMeter.Int64Counter("scheduler.job.queue_dropped",
		metric.WithDescription("Jobs rejected because the queue was full"),
	)
)

var (
	// ErrQueueFull is returned by Submit when the job buffer is full.
	ErrQueueFull = errors.New("job queue full")
	// ErrPoolClosed is returned by Submit after shutdown has begun.
	ErrPoolClosed = errors.New("worker pool is shut down")
)

const defaultJobTimeout = 2 * time.Minute

// WorkerPoolConfig sizes a WorkerPool. JobDelay throttles each worker
// between jobs so a sweep does not burst the aggregator.
type WorkerPoolConfig struct {
	Workers    int
	QueueSize  int
	JobDelay   time.Duration
	JobTimeout time.Duration
}

// WorkerPool runs queued jobs on a fixed number of goroutines. Both the
// webhook-triggered syncs and the scheduled sweep share one pool, which
// bounds how many syncs hit the aggregator at once.
type WorkerPool struct {
	cfg   WorkerPoolConfig
	queue chan Job
	log   *zap.Logger

	// base is cancelled when shutdown gives up waiting.
	base  context.Context
	abort context.CancelFunc

	running sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
}

// NewWorkerPool fills zero values with one worker, a one-slot queue and
// defaultJobTimeout.
func NewWorkerPool(cfg WorkerPoolConfig) *WorkerPool {
	cfg.Workers = max(cfg.Workers, 1)
	cfg.QueueSize = max(cfg.QueueSize, 1)
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = defaultJobTimeout
	}

	base, abort := context.WithCancel(context.Background())
	return &WorkerPool{
		cfg:   cfg,
		queue: make(chan Job, cfg.QueueSize),
		log:   logger.Get().With(zap.String("component", "worker_pool")),
		base:  base,
		abort: abort,
	}
}

// Start launches the workers.
func (wp *WorkerPool) Start() {
	wp.log.Info("starting worker pool",
		zap.Int("workers", wp.cfg.Workers),
		zap.Int("queue_size", wp.cfg.QueueSize),
	)
	wp.running.Add(wp.cfg.Workers)
	for id := range wp.cfg.Workers {
		go wp.work(id + 1)
	}
}

func (wp *WorkerPool) work(id int) {
	defer wp.running.Done()

	for job := range wp.queue {
		if wp.base.Err() != nil {
			return
		}
		wp.run(id, job)
		if !wp.pause() {
			return
		}
	}
}

// pause waits JobDelay and reports false when the pool was aborted meanwhile.
func (wp *WorkerPool) pause() bool {
	if wp.cfg.JobDelay <= 0 {
		return true
	}
	t := time.NewTimer(wp.cfg.JobDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-wp.base.Done():
		return false
	}
}

func (wp *WorkerPool) run(workerID int, job Job) {
	log := wp.log.With(
		zap.Int("worker_id", workerID),
		zap.String("job", job.Description()),
		zap.String("subject", job.Subject()),
	)

	ctx, cancel := context.WithTimeout(wp.base, wp.cfg.JobTimeout)
	defer cancel()

	ctx, span := jobTracer.Start(logger.ToContext(ctx, log), "job.execute", trace.WithAttributes(
		attribute.Int("worker.id", workerID),
		attribute.String("job.description", job.Description()),
		attribute.String("job.subject", job.Subject()),
	))
	defer span.End()

	start := time.Now()
	err := job.Execute(ctx)
	elapsed := time.Since(start)

	outcome := "success"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("job failed", zap.Duration("duration", elapsed), zap.Error(err))
	} else {
		log.Info("job completed", zap.Duration("duration", elapsed))
	}

	jobDuration.Record(ctx, elapsed.Seconds())
	jobOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("status", outcome)))
}

// Submit enqueues without blocking. A full queue drops the job and returns
// ErrQueueFull.
func (wp *WorkerPool) Submit(job Job) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.closed {
		return ErrPoolClosed
	}

	select {
	case wp.queue <- job:
		return nil
	default:
		jobsDropped.Add(context.Background(), 1)
		wp.log.Warn("job queue full, dropping job", zap.String("subject", job.Subject()))
		return fmt.Errorf("%w: %s", ErrQueueFull, job.Subject())
	}
}

// SubmitBatch enqueues jobs and returns how many were accepted.
func (wp *WorkerPool) SubmitBatch(jobs []Job) int {
	accepted := 0
	for _, job := range jobs {
		if wp.Submit(job) == nil {
			accepted++
		}
	}
	wp.log.Info("submitted jobs to worker pool", zap.Int("accepted", accepted), zap.Int("total", len(jobs)))
	return accepted
}

// closeQueue reports whether this call performed the close.
func (wp *WorkerPool) closeQueue() bool {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.closed {
		return false
	}
	wp.closed = true
	close(wp.queue)
	return true
}

// Shutdown stops accepting jobs, lets the workers drain the queue and waits
// for them.
func (wp *WorkerPool) Shutdown() {
	if !wp.closeQueue() {
		return
	}
	wp.running.Wait()
	wp.abort()
	wp.log.Info("worker pool shutdown complete")
}

// ShutdownWithTimeout is Shutdown bounded by timeout. On expiry the running
// jobs see their context cancelled and queued jobs are discarded.
func (wp *WorkerPool) ShutdownWithTimeout(timeout time.Duration) {
	if !wp.closeQueue() {
		return
	}

	drained := make(chan struct{})
	go func() {
		wp.running.Wait()
		close(drained)
	}()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-drained:
		wp.log.Info("worker pool drained")
	case <-t.C:
		wp.log.Warn("worker pool shutdown timed out, cancelling jobs", zap.Duration("timeout", timeout))
	}
	wp.abort()
}
