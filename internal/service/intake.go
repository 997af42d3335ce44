package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/punchamoorthee/txnrelay/internal/domain"
	"github.com/punchamoorthee/txnrelay/internal/guard"
	"github.com/punchamoorthee/txnrelay/internal/metrics"
	"github.com/punchamoorthee/txnrelay/internal/store"
	"go.uber.org/zap"
)

const (
	msgMissingFields    = "missing required fields"
	msgAmountPositive   = "amount must be positive"
	msgAmountOutOfRange = "amount out of range"
)

// Scheduler starts deferred settlement and takes over the guard entry.
type Scheduler interface {
	Schedule(transactionID string)
}

type IntakeConfig struct {
	// RequeueStuck re-schedules deliveries for records still in PROCESSING
	// that have no job in this process.
	RequeueStuck bool
	Clock        func() time.Time
}

type IntakeService struct {
	store        store.TransactionStore
	guard        *guard.Set
	scheduler    Scheduler
	metrics      *metrics.Metrics
	logger       *zap.SugaredLogger
	requeueStuck bool
	clock        func() time.Time
}

func NewIntakeService(
	txStore store.TransactionStore,
	intakeGuard *guard.Set,
	scheduler Scheduler,
	m *metrics.Metrics,
	logger *zap.SugaredLogger,
	cfg IntakeConfig,
) *IntakeService {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &IntakeService{
		store:        txStore,
		guard:        intakeGuard,
		scheduler:    scheduler,
		metrics:      m,
		logger:       logger,
		requeueStuck: cfg.RequeueStuck,
		clock:        cfg.Clock,
	}
}

// Receive validates and deduplicates a webhook delivery, persists new
// transactions and schedules their settlement. It never waits for the
// settlement itself.
func (s *IntakeService) Receive(ctx context.Context, payload domain.WebhookPayload) (*domain.WebhookAck, error) {
	tx, err := newTransaction(payload)
	if err != nil {
		s.metrics.IncIntakeOutcome("invalid")
		return nil, err
	}
	id := tx.TransactionID

	// 1. in-process dedup, no store round trip
	if !s.guard.TryAdd(id) {
		s.logger.Infow("Transaction is already being processed", "transaction_id", id)
		return s.ack(id, domain.AckAlreadyProcessing), nil
	}
	release := true
	defer func() {
		if release {
			s.guard.Remove(id)
		}
	}()

	// 2. durable dedup
	existing, err := s.store.Get(ctx, id)
	if err == nil {
		if existing.Status == domain.StatusProcessing && s.requeueStuck {
			s.logger.Warnw("Re-scheduling transaction stuck in PROCESSING", "transaction_id", id)
			release = false
			s.scheduler.Schedule(id)
			return s.ack(id, domain.AckProcessing), nil
		}
		s.logger.Infow("Transaction already exists", "transaction_id", id, "status", existing.Status)
		return s.ack(id, domain.AckDuplicate), nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, internal("looking up transaction", err)
	}

	// 3. persist
	now := s.clock().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now
	err = s.store.Insert(ctx, tx)
	if errors.Is(err, store.ErrDuplicate) {
		// inserted concurrently elsewhere since the lookup
		return s.ack(id, domain.AckDuplicate), nil
	}
	if err != nil {
		return nil, internal("inserting transaction", err)
	}

	// 4. hand the guard entry over to the job
	release = false
	s.scheduler.Schedule(id)
	s.logger.Infow("Transaction accepted", "transaction_id", id, "amount", tx.Amount, "currency", tx.Currency)
	return s.ack(id, domain.AckProcessing), nil
}

func (s *IntakeService) ack(id, status string) *domain.WebhookAck {
	s.metrics.IncIntakeOutcome(status)
	return &domain.WebhookAck{Acknowledged: true, TransactionID: id, Status: status}
}

func newTransaction(payload domain.WebhookPayload) (*domain.Transaction, error) {
	id := strings.TrimSpace(payload.TransactionID)
	source := strings.TrimSpace(payload.SourceAccount)
	destination := strings.TrimSpace(payload.DestinationAccount)
	if id == "" || source == "" || destination == "" || payload.Amount == nil {
		return nil, invalid(msgMissingFields)
	}

	amount := *payload.Amount
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return nil, invalid(msgAmountPositive)
	}
	minor, err := domain.ToMinorUnits(amount)
	if err != nil {
		return nil, invalid(msgAmountOutOfRange)
	}
	if minor <= 0 {
		// positive but below one minor unit
		return nil, invalid(msgAmountPositive)
	}

	currency := strings.TrimSpace(payload.Currency)
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	return &domain.Transaction{
		TransactionID:      id,
		SourceAccount:      source,
		DestinationAccount: destination,
		Amount:             minor,
		Currency:           currency,
		Status:             domain.StatusProcessing,
	}, nil
}
