package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
	"github.com/punchamoorthee/txnrelay/internal/domain"
)

const (
	transactionKeyPrefix = "tx:"
	chartKeyPrefix       = "chart:"
	healthKey            = "health"
)

// PebbleStore is an embedded transaction and chart store for single node
// deployments. Writes are synced.
type PebbleStore struct {
	db *pebble.DB
	// serializes read-modify-write sequences, pebble has no conditional put
	mu sync.Mutex
}

func NewPebbleStore(storeDir string) (*PebbleStore, error) {
	db, err := pebble.Open(filepath.Join(storeDir, "txnrelay-store"), &pebble.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "opening pebble db")
	}

	return &PebbleStore{db: db}, nil
}

func (ps *PebbleStore) Close() error {
	return ps.db.Close()
}

func (ps *PebbleStore) Ping(_ context.Context) error {
	_, closer, err := ps.db.Get([]byte(healthKey))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "reading health key")
	}
	return closer.Close()
}

func (ps *PebbleStore) Insert(_ context.Context, tx *domain.Transaction) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	key := transactionKey(tx.TransactionID)
	var existing domain.Transaction
	err := ps.load(key, &existing)
	if err == nil {
		return ErrDuplicate
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	return ps.save(key, tx)
}

func (ps *PebbleStore) Get(_ context.Context, transactionID string) (*domain.Transaction, error) {
	var tx domain.Transaction
	if err := ps.load(transactionKey(transactionID), &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (ps *PebbleStore) Update(_ context.Context, transactionID string, update domain.TransactionUpdate) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	key := transactionKey(transactionID)
	var tx domain.Transaction
	if err := ps.load(key, &tx); err != nil {
		return err
	}

	updated := update.Apply(tx)
	return ps.save(key, &updated)
}

// ChartStore returns a view of the store that serves user charts.
func (ps *PebbleStore) ChartStore() *PebbleChartStore {
	return &PebbleChartStore{ps: ps}
}

type PebbleChartStore struct {
	ps *PebbleStore
}

func (cs *PebbleChartStore) Ping(ctx context.Context) error {
	return cs.ps.Ping(ctx)
}

func (cs *PebbleChartStore) Upsert(_ context.Context, chart *domain.UserChart) error {
	return cs.ps.save(chartKey(chart.Email), chart)
}

func (cs *PebbleChartStore) Get(_ context.Context, email string) (*domain.UserChart, error) {
	var chart domain.UserChart
	if err := cs.ps.load(chartKey(email), &chart); err != nil {
		return nil, err
	}
	return &chart, nil
}

func (ps *PebbleStore) load(key []byte, target any) error {
	value, closer, err := ps.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return errors.Wrapf(err, "getting value for key [%s]", key)
	}
	defer closer.Close()

	if err := json.Unmarshal(value, target); err != nil {
		return errors.Wrapf(err, "decoding value for key [%s]", key)
	}
	return nil
}

func (ps *PebbleStore) save(key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encoding value for key [%s]", key)
	}

	err = ps.db.Set(key, data, pebble.Sync)
	if err != nil {
		return errors.Wrapf(err, "setting key [%s]", key)
	}
	return nil
}

func transactionKey(id string) []byte {
	return []byte(transactionKeyPrefix + id)
}

func chartKey(email string) []byte {
	return []byte(chartKeyPrefix + email)
}
