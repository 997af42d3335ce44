package settlement

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/punchamoorthee/txnrelay/internal/domain"
	"github.com/punchamoorthee/txnrelay/internal/events"
	"github.com/punchamoorthee/txnrelay/internal/guard"
	"github.com/punchamoorthee/txnrelay/internal/metrics"
	"github.com/punchamoorthee/txnrelay/internal/store"
	"go.uber.org/zap"
)

const (
	resultProcessed = "processed"
	resultFailed    = "failed"
)

type Config struct {
	// StoreTimeout bounds each store call made by a job.
	StoreTimeout time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Processor runs one detached settlement job per accepted transaction and
// moves it from PROCESSING to PROCESSED.
type Processor struct {
	store     store.TransactionStore
	guard     *guard.Set
	simulator Simulator
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *zap.SugaredLogger

	storeTimeout time.Duration
	clock        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewProcessor(
	txStore store.TransactionStore,
	intakeGuard *guard.Set,
	simulator Simulator,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *zap.SugaredLogger,
	cfg Config,
) *Processor {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Processor{
		store:        txStore,
		guard:        intakeGuard,
		simulator:    simulator,
		publisher:    publisher,
		metrics:      m,
		logger:       logger,
		storeTimeout: cfg.StoreTimeout,
		clock:        cfg.Clock,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Schedule starts settlement of transactionID and returns immediately. The
// caller must already hold the guard entry for the id; the job releases it
// when it finishes, whatever the outcome. After Shutdown the id is released
// at once and the record stays in PROCESSING.
func (p *Processor) Schedule(transactionID string) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.guard.Remove(transactionID)
		p.logger.Warnw("Settlement refused, processor is shutting down", "transaction_id", transactionID)
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go p.run(transactionID)
}

// Wait blocks until all scheduled jobs are done.
func (p *Processor) Wait() {
	p.wg.Wait()
}

// Shutdown interrupts pending settlements and waits for the jobs to record
// their outcome, or for ctx to expire. Interrupted transactions stay in
// PROCESSING.
func (p *Processor) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.cancel()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for settlement jobs")
	}
}

func (p *Processor) run(transactionID string) {
	defer p.wg.Done()
	defer p.guard.Remove(transactionID)

	start := time.Now()
	p.metrics.JobStarted()
	p.logger.Infow("Starting settlement", "transaction_id", transactionID)

	processedAt, err := p.settle(transactionID)
	if err != nil {
		p.metrics.JobFinished(resultFailed, time.Since(start).Seconds())
		p.logger.Errorw("Settlement failed, transaction stays in PROCESSING", "transaction_id", transactionID, "error", err)
		p.compensate(transactionID)
		return
	}

	p.metrics.JobFinished(resultProcessed, time.Since(start).Seconds())
	p.logger.Infow("Transaction processed", "transaction_id", transactionID, "duration", time.Since(start))
	p.publish(transactionID, processedAt)
}

func (p *Processor) settle(transactionID string) (processedAt time.Time, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic during settlement: %v", r)
		}
	}()

	if err := p.simulator.Settle(p.ctx, transactionID); err != nil {
		return time.Time{}, errors.Wrap(err, "settling")
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.storeTimeout)
	defer cancel()

	now := p.clock().UTC()
	err = p.store.Update(ctx, transactionID, domain.TransactionUpdate{
		Status:      domain.StatusProcessed,
		ProcessedAt: &now,
		UpdatedAt:   now,
	})
	if err != nil {
		return time.Time{}, errors.Wrap(err, "updating status to processed")
	}
	return now, nil
}

// compensate touches updated_at and keeps the record retryable. It never
// marks a terminal failure.
func (p *Processor) compensate(transactionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), p.storeTimeout)
	defer cancel()

	err := p.store.Update(ctx, transactionID, domain.TransactionUpdate{
		Status:    domain.StatusProcessing,
		UpdatedAt: p.clock().UTC(),
	})
	if err != nil {
		p.logger.Errorw("Failed to update transaction status after error", "transaction_id", transactionID, "error", err)
	}
}

func (p *Processor) publish(transactionID string, processedAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), p.storeTimeout)
	defer cancel()

	err := p.publisher.PublishStatusChanged(ctx, events.StatusChanged{
		Type:          events.TypeTransactionProcessed,
		TransactionID: transactionID,
		Status:        domain.StatusProcessed,
		ProcessedAt:   &processedAt,
	})
	if err != nil {
		p.metrics.IncEventPublishFailures()
		p.logger.Warnw("Publishing status change failed", "transaction_id", transactionID, "error", err)
	}
}
