package mail

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// OutboxStore is the persistence surface the dispatcher drains. Messages are
// written to the outbox inside the same transaction as the state they announce,
// so a committed accept always has a deliverable email and vice versa.
type OutboxStore interface {
	GetQueued(ctx context.Context, id string) (*Message, error)
	ListQueued(ctx context.Context, limit int) ([]string, error)
	CountQueued(ctx context.Context) (int, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id string, attempts int, lastErr string) error
	MarkAbandoned(ctx context.Context, id string, lastErr string) error
}

// DispatcherConfig configures worker behaviour. OnResult, when set, is called
// after every delivery attempt with "sent", "retried" or "failed". OnBacklog,
// when set, receives the queued-row count every BacklogInterval.
type DispatcherConfig struct {
	Workers         int
	BufferSize      int
	MaxRetries      int
	RetryDelay      time.Duration
	BacklogInterval time.Duration
	Logger          *zap.Logger
	OnResult        func(result string)
	OnBacklog       func(queued int)
}

// Dispatcher drains the email outbox with a small worker pool. Services hand
// it outbox IDs after their transaction commits; on startup it also re-queues
// anything a previous process left behind.
type Dispatcher struct {
	store  OutboxStore
	mailer Mailer

	workers         int
	maxRetries      int
	retryDelay      time.Duration
	backlogInterval time.Duration
	logger          *zap.Logger
	onResult        func(result string)
	onBacklog       func(queued int)

	ids     chan dispatchJob
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

type dispatchJob struct {
	id      string
	attempt int
}

// NewDispatcher builds a dispatcher over the given store and mailer.
func NewDispatcher(store OutboxStore, mailer Mailer, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 8
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 30 * time.Second
	}
	if cfg.BacklogInterval <= 0 {
		cfg.BacklogInterval = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Dispatcher{
		store:           store,
		mailer:          mailer,
		workers:         cfg.Workers,
		maxRetries:      cfg.MaxRetries,
		retryDelay:      cfg.RetryDelay,
		backlogInterval: cfg.BacklogInterval,
		logger:          cfg.Logger,
		onResult:        cfg.OnResult,
		onBacklog:       cfg.OnBacklog,
		ids:             make(chan dispatchJob, cfg.BufferSize),
	}
}

// Start launches the workers and re-queues messages left over from a prior
// run. Safe to call once.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.started = true

	go d.recover()
	if d.onBacklog != nil {
		d.wg.Add(1)
		go d.reportBacklog()
	}
	d.logger.Sugar().Infow("mail dispatcher started", "workers", d.workers)
}

func (d *Dispatcher) reportBacklog() {
	defer d.wg.Done()
	ticker := time.NewTicker(d.backlogInterval)
	defer ticker.Stop()
	for {
		if n, err := d.store.CountQueued(d.ctx); err == nil {
			d.onBacklog(n)
		}
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Stop cancels workers and waits for them to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.cancel()
	d.mu.Unlock()
	d.wg.Wait()
	d.logger.Sugar().Infow("mail dispatcher stopped")
}

// Enqueue schedules an outbox message for delivery.
func (d *Dispatcher) Enqueue(id string) error {
	d.mu.Lock()
	ctx := d.ctx
	started := d.started
	d.mu.Unlock()

	if !started {
		return fmt.Errorf("mail dispatcher not started")
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("mail dispatcher stopped: %w", ctx.Err())
	case d.ids <- dispatchJob{id: id}:
		return nil
	}
}

func (d *Dispatcher) recover() {
	leftover, err := d.store.ListQueued(d.ctx, 100)
	if err != nil {
		d.logger.Sugar().Warnw("failed to list queued outbox messages", "error", err)
		return
	}
	for _, id := range leftover {
		if err := d.Enqueue(id); err != nil {
			return
		}
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case job := <-d.ids:
			d.deliver(job)
		}
	}
}

func (d *Dispatcher) deliver(job dispatchJob) {
	msg, err := d.store.GetQueued(d.ctx, job.id)
	if err != nil {
		d.logger.Sugar().Warnw("outbox message unavailable", "outbox_id", job.id, "error", err)
		return
	}

	if err := d.mailer.Send(d.ctx, *msg); err != nil {
		d.handleFailure(job, err)
		return
	}

	if err := d.store.MarkSent(d.ctx, job.id, time.Now().UTC()); err != nil {
		d.logger.Sugar().Warnw("failed to mark outbox message sent", "outbox_id", job.id, "error", err)
	}
	d.report("sent")
}

func (d *Dispatcher) report(result string) {
	if d.onResult != nil {
		d.onResult(result)
	}
}

func (d *Dispatcher) handleFailure(job dispatchJob, sendErr error) {
	job.attempt++
	if err := d.store.MarkFailed(d.ctx, job.id, job.attempt, sendErr.Error()); err != nil {
		d.logger.Sugar().Warnw("failed to record outbox failure", "outbox_id", job.id, "error", err)
	}
	if job.attempt >= d.maxRetries {
		// Terminal: flip the row out of the queued state so the startup
		// recovery sweep stops re-enqueueing it.
		if err := d.store.MarkAbandoned(d.ctx, job.id, sendErr.Error()); err != nil {
			d.logger.Sugar().Warnw("failed to abandon outbox message", "outbox_id", job.id, "error", err)
		}
		d.logger.Sugar().Errorw("outbox message exceeded retries, abandoned", "outbox_id", job.id, "error", sendErr)
		d.report("failed")
		return
	}
	d.logger.Sugar().Warnw("mail send failed, retrying", "outbox_id", job.id, "attempt", job.attempt, "error", sendErr)
	d.report("retried")

	go func(j dispatchJob) {
		timer := time.NewTimer(d.retryDelay)
		defer timer.Stop()
		select {
		case <-d.ctx.Done():
			return
		case <-timer.C:
			select {
			case <-d.ctx.Done():
			case d.ids <- j:
			}
		}
	}(job)
}
