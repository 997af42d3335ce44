// Package storetest provides in-memory stores with failure injection for
// tests of the packages built on top of the store interfaces.
package storetest

import (
	"context"
	"sync"

	"github.com/punchamoorthee/txnrelay/internal/domain"
	"github.com/punchamoorthee/txnrelay/internal/store"
)

type FakeTransactionStore struct {
	mu           sync.Mutex
	transactions map[string]domain.Transaction
	updates      []domain.TransactionUpdate

	InsertErr error
	GetErr    error
	PingErr   error
	// UpdateErr is consulted on every update; nil means success.
	UpdateErr func(update domain.TransactionUpdate) error

	Inserts int
	Gets    int
}

func NewFakeTransactionStore() *FakeTransactionStore {
	return &FakeTransactionStore{transactions: make(map[string]domain.Transaction)}
}

func (f *FakeTransactionStore) Insert(_ context.Context, tx *domain.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Inserts++
	if f.InsertErr != nil {
		return f.InsertErr
	}
	if _, ok := f.transactions[tx.TransactionID]; ok {
		return store.ErrDuplicate
	}
	f.transactions[tx.TransactionID] = *tx
	return nil
}

func (f *FakeTransactionStore) Get(_ context.Context, transactionID string) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Gets++
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	tx, ok := f.transactions[transactionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &tx, nil
}

func (f *FakeTransactionStore) Update(_ context.Context, transactionID string, update domain.TransactionUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.updates = append(f.updates, update)
	if f.UpdateErr != nil {
		if err := f.UpdateErr(update); err != nil {
			return err
		}
	}
	tx, ok := f.transactions[transactionID]
	if !ok {
		return store.ErrNotFound
	}
	f.transactions[transactionID] = update.Apply(tx)
	return nil
}

func (f *FakeTransactionStore) Ping(_ context.Context) error {
	return f.PingErr
}

// Put stores tx without any checks.
func (f *FakeTransactionStore) Put(tx domain.Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactions[tx.TransactionID] = tx
}

// Transaction returns the stored record and whether it exists.
func (f *FakeTransactionStore) Transaction(id string) (domain.Transaction, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.transactions[id]
	return tx, ok
}

// Updates returns all updates received, including failed ones.
func (f *FakeTransactionStore) Updates() []domain.TransactionUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.TransactionUpdate(nil), f.updates...)
}

type FakeChartStore struct {
	mu     sync.Mutex
	charts map[string]domain.UserChart

	UpsertErr error
	GetErr    error
	PingErr   error
}

func NewFakeChartStore() *FakeChartStore {
	return &FakeChartStore{charts: make(map[string]domain.UserChart)}
}

func (f *FakeChartStore) Upsert(_ context.Context, chart *domain.UserChart) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.UpsertErr != nil {
		return f.UpsertErr
	}
	f.charts[chart.Email] = *chart
	return nil
}

func (f *FakeChartStore) Get(_ context.Context, email string) (*domain.UserChart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.GetErr != nil {
		return nil, f.GetErr
	}
	chart, ok := f.charts[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &chart, nil
}

func (f *FakeChartStore) Ping(_ context.Context) error {
	return f.PingErr
}
