package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/punchamoorthee/txnrelay/internal/domain"
	"github.com/punchamoorthee/txnrelay/internal/events"
	"github.com/punchamoorthee/txnrelay/internal/guard"
	"github.com/punchamoorthee/txnrelay/internal/metrics"
	"github.com/punchamoorthee/txnrelay/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var ErrMock = errors.New("mock error")

var fixedNow = time.Date(2024, 1, 1, 0, 0, 30, 0, time.UTC)

type MockPublisher struct {
	published []events.StatusChanged
	err       error
	locker    sync.Mutex
}

func (mp *MockPublisher) PublishStatusChanged(_ context.Context, event events.StatusChanged) error {
	mp.locker.Lock()
	defer mp.locker.Unlock()
	if mp.err != nil {
		return mp.err
	}
	mp.published = append(mp.published, event)
	return nil
}

type PanickingSimulator struct{}

func (PanickingSimulator) Settle(context.Context, string) error {
	panic("settlement exploded")
}

type fixture struct {
	store     *storetest.FakeTransactionStore
	guard     *guard.Set
	publisher *MockPublisher
	metrics   *metrics.Metrics
	processor *Processor
}

func newFixture(t *testing.T, simulator Simulator) *fixture {
	f := &fixture{
		store:     storetest.NewFakeTransactionStore(),
		guard:     guard.New(),
		publisher: &MockPublisher{},
		metrics:   metrics.NewMetrics("test", prometheus.NewRegistry()),
	}
	f.processor = NewProcessor(f.store, f.guard, simulator, f.publisher, f.metrics, zaptest.NewLogger(t).Sugar(), Config{
		StoreTimeout: time.Second,
		Clock:        func() time.Time { return fixedNow },
	})
	return f
}

// accept mimics intake: the record exists and the guard entry is held.
func (f *fixture) accept(id string) {
	created := fixedNow.Add(-30 * time.Second)
	f.store.Put(domain.Transaction{
		TransactionID: id,
		Amount:        100,
		Currency:      "INR",
		Status:        domain.StatusProcessing,
		CreatedAt:     created,
		UpdatedAt:     created,
	})
	f.guard.TryAdd(id)
}

func TestProcessor_Schedule_givenSuccessfulSettlement_thenProcessed(t *testing.T) {
	f := newFixture(t, InstantSimulator{})
	f.accept("txn_1")

	f.processor.Schedule("txn_1")
	f.processor.Wait()

	tx, ok := f.store.Transaction("txn_1")
	require.True(t, ok)
	assert.Equal(t, domain.StatusProcessed, tx.Status)
	require.NotNil(t, tx.ProcessedAt)
	assert.Equal(t, fixedNow, *tx.ProcessedAt)
	assert.Equal(t, fixedNow, tx.UpdatedAt)
	assert.False(t, f.guard.Contains("txn_1"))

	require.Len(t, f.publisher.published, 1)
	assert.Equal(t, events.TypeTransactionProcessed, f.publisher.published[0].Type)
	assert.Equal(t, "txn_1", f.publisher.published[0].TransactionID)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Jobs().WithLabelValues(resultProcessed)))
	assert.Equal(t, float64(0), testutil.ToFloat64(f.metrics.InFlight()))
}

func TestProcessor_Schedule_givenSettlementError_thenCompensatesAndReleases(t *testing.T) {
	f := newFixture(t, FailingSimulator{Err: ErrMock})
	f.accept("txn_1")

	f.processor.Schedule("txn_1")
	f.processor.Wait()

	tx, _ := f.store.Transaction("txn_1")
	assert.Equal(t, domain.StatusProcessing, tx.Status)
	assert.Nil(t, tx.ProcessedAt)
	assert.Equal(t, fixedNow, tx.UpdatedAt) // compensating update touched it

	updates := f.store.Updates()
	require.Len(t, updates, 1)
	assert.Equal(t, domain.StatusProcessing, updates[0].Status)
	assert.Nil(t, updates[0].ProcessedAt)

	assert.False(t, f.guard.Contains("txn_1"))
	assert.Empty(t, f.publisher.published)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Jobs().WithLabelValues(resultFailed)))
}

func TestProcessor_Schedule_givenUpdateError_thenCompensatesAndReleases(t *testing.T) {
	f := newFixture(t, InstantSimulator{})
	f.store.UpdateErr = func(update domain.TransactionUpdate) error {
		if update.Status == domain.StatusProcessed {
			return ErrMock
		}
		return nil
	}
	f.accept("txn_1")

	f.processor.Schedule("txn_1")
	f.processor.Wait()

	updates := f.store.Updates()
	require.Len(t, updates, 2)
	assert.Equal(t, domain.StatusProcessed, updates[0].Status)
	assert.Equal(t, domain.StatusProcessing, updates[1].Status)

	tx, _ := f.store.Transaction("txn_1")
	assert.Equal(t, domain.StatusProcessing, tx.Status)
	assert.False(t, f.guard.Contains("txn_1"))
}

func TestProcessor_Schedule_givenStoreDown_thenReleasesGuard(t *testing.T) {
	f := newFixture(t, InstantSimulator{})
	f.store.UpdateErr = func(domain.TransactionUpdate) error { return ErrMock }
	f.accept("txn_1")

	f.processor.Schedule("txn_1")
	f.processor.Wait()

	assert.Len(t, f.store.Updates(), 2)
	assert.False(t, f.guard.Contains("txn_1"))
}

func TestProcessor_Schedule_givenPanickingSimulator_thenRecovers(t *testing.T) {
	f := newFixture(t, PanickingSimulator{})
	f.accept("txn_1")

	f.processor.Schedule("txn_1")
	f.processor.Wait()

	tx, _ := f.store.Transaction("txn_1")
	assert.Equal(t, domain.StatusProcessing, tx.Status)
	assert.False(t, f.guard.Contains("txn_1"))
}

func TestProcessor_Schedule_givenPublishError_thenStillProcessed(t *testing.T) {
	f := newFixture(t, InstantSimulator{})
	f.publisher.err = ErrMock
	f.accept("txn_1")

	f.processor.Schedule("txn_1")
	f.processor.Wait()

	tx, _ := f.store.Transaction("txn_1")
	assert.Equal(t, domain.StatusProcessed, tx.Status)
	assert.False(t, f.guard.Contains("txn_1"))
}

func TestProcessor_Schedule_givenManyTransactions_thenAllProcessed(t *testing.T) {
	f := newFixture(t, DelaySimulator{Delay: 10 * time.Millisecond})
	ids := []string{"txn_a", "txn_b", "txn_c", "txn_d", "txn_e"}
	for _, id := range ids {
		f.accept(id)
		f.processor.Schedule(id)
	}
	f.processor.Wait()

	for _, id := range ids {
		tx, _ := f.store.Transaction(id)
		assert.Equal(t, domain.StatusProcessed, tx.Status, id)
	}
	assert.Equal(t, 0, f.guard.Len())
}

func TestProcessor_Shutdown_givenPendingSettlement_thenInterruptsAndLeavesProcessing(t *testing.T) {
	f := newFixture(t, DelaySimulator{Delay: time.Hour})
	f.accept("txn_1")
	f.processor.Schedule("txn_1")

	assert.True(t, f.guard.Contains("txn_1"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.processor.Shutdown(ctx))

	tx, _ := f.store.Transaction("txn_1")
	assert.Equal(t, domain.StatusProcessing, tx.Status)
	assert.False(t, f.guard.Contains("txn_1"))
}

func TestProcessor_Schedule_givenShutdown_thenRefusesAndReleasesGuard(t *testing.T) {
	f := newFixture(t, InstantSimulator{})
	require.NoError(t, f.processor.Shutdown(context.Background()))

	f.accept("txn_late")
	f.processor.Schedule("txn_late")
	f.processor.Wait()

	assert.False(t, f.guard.Contains("txn_late"))
	assert.Empty(t, f.store.Updates())
	tx, _ := f.store.Transaction("txn_late")
	assert.Equal(t, domain.StatusProcessing, tx.Status)
	assert.Equal(t, float64(0), testutil.ToFloat64(f.metrics.InFlight()))
}

func TestProcessor_Schedule_givenConcurrentShutdown_thenEveryGuardReleased(t *testing.T) {
	f := newFixture(t, DelaySimulator{Delay: time.Hour})
	ids := make([]string, 100)
	for i := range ids {
		ids[i] = domain.NewTransactionID()
		f.accept(ids[i])
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			f.processor.Schedule(id)
		}(id)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.processor.Shutdown(ctx))
	wg.Wait()
	f.processor.Wait()

	assert.Equal(t, 0, f.guard.Len())
	for _, id := range ids {
		tx, _ := f.store.Transaction(id)
		assert.Equal(t, domain.StatusProcessing, tx.Status, id)
	}
}

func TestDelaySimulator_Settle(t *testing.T) {
	start := time.Now()
	require.NoError(t, DelaySimulator{Delay: 20 * time.Millisecond}.Settle(context.Background(), "txn_1"))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, DelaySimulator{Delay: time.Hour}.Settle(ctx, "txn_1"), context.Canceled)
}
