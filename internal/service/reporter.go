package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/neverl0se/forgeModsConflictMediator/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultReporterWorkers   = 2
	defaultReporterQueueSize = 64
)

var (
	ErrQueueFull       = errors.New("failure report queue is full")
	ErrReporterStopped = errors.New("failure reporter is not running")
	ErrEmptyReport     = errors.New("failure report is empty")
)

type reportJob struct {
	id      uuid.UUID
	failure *domain.FailureDescriptor
	signal  *domain.ConflictSignal
}

// Reporter is the inbound port the host calls with failures, possibly from
// many goroutines at once. Queued reports are mediated by a fixed worker pool.
type Reporter struct {
	svc     *MediationService
	logger  *zap.Logger
	workers int

	queue  chan reportJob
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	running bool
}

func NewReporter(svc *MediationService, workers, queueSize int, logger *zap.Logger) *Reporter {
	if workers <= 0 {
		workers = defaultReporterWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultReporterQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reporter{
		svc:     svc,
		logger:  logger,
		workers: workers,
		queue:   make(chan reportJob, queueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the mediation workers.
func (r *Reporter) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running || r.ctx.Err() != nil {
		return
	}
	r.running = true
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.work(i)
	}
	r.logger.Info("failure reporter started", zap.Int("workers", r.workers), zap.Int("queue_size", cap(r.queue)))
}

// Stop rejects new reports, releases sessions waiting on a decision and waits
// for queued reports to drain.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.cancel()
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("failure reporter stopped")
}

func (r *Reporter) work(n int) {
	defer r.wg.Done()
	for job := range r.queue {
		reporterQueueDepth.Set(float64(len(r.queue)))
		r.run(r.ctx, job)
	}
	r.logger.Debug("reporter worker exited", zap.Int("worker", n))
}

// Submit queues a failure for mediation and returns its session id.
func (r *Reporter) Submit(f *domain.FailureDescriptor) (uuid.UUID, error) {
	if f == nil {
		return uuid.Nil, ErrEmptyReport
	}
	return r.enqueue(reportJob{id: uuid.New(), failure: f})
}

// SubmitSignal queues a host-reported conflict for mediation.
func (r *Reporter) SubmitSignal(sig domain.ConflictSignal) (uuid.UUID, error) {
	return r.enqueue(reportJob{id: uuid.New(), signal: &sig})
}

func (r *Reporter) enqueue(job reportJob) (uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.running {
		reportsDropped.Inc()
		return uuid.Nil, ErrReporterStopped
	}
	select {
	case r.queue <- job:
		reporterQueueDepth.Set(float64(len(r.queue)))
		return job.id, nil
	default:
		reportsDropped.Inc()
		r.logger.Warn("failure report dropped, queue full", zap.String("session_id", job.id.String()))
		return uuid.Nil, ErrQueueFull
	}
}

// ReportFailure mediates f in the calling goroutine. It never panics, so the
// host's own failure handling always completes.
func (r *Reporter) ReportFailure(ctx context.Context, f *domain.FailureDescriptor) *domain.MediationOutcome {
	if f == nil {
		return nil
	}
	return r.run(ctx, reportJob{id: uuid.New(), failure: f})
}

// ReportSignal is the synchronous counterpart of SubmitSignal.
func (r *Reporter) ReportSignal(ctx context.Context, sig domain.ConflictSignal) *domain.MediationOutcome {
	return r.run(ctx, reportJob{id: uuid.New(), signal: &sig})
}

func (r *Reporter) run(ctx context.Context, job reportJob) (out *domain.MediationOutcome) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("mediation panicked, failure left to host handling",
				zap.String("session_id", job.id.String()),
				zap.Any("panic", rec),
			)
			out = nil
		}
	}()
	if job.signal != nil {
		return r.svc.mediateSignal(ctx, job.id, *job.signal)
	}
	return r.svc.mediateFailure(ctx, job.id, job.failure)
}
