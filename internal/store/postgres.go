package store

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/punchamoorthee/txnrelay/internal/domain"
)

// Schema creates the tables used by Store.
const Schema = `
CREATE TABLE IF NOT EXISTS transactions (
	transaction_id      TEXT PRIMARY KEY,
	source_account      TEXT NOT NULL,
	destination_account TEXT NOT NULL,
	amount              BIGINT NOT NULL CHECK (amount > 0),
	currency            TEXT NOT NULL DEFAULT 'INR',
	status              TEXT NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	processed_at        TIMESTAMPTZ,
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_charts (
	email      TEXT PRIMARY KEY,
	chart_data JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

const uniqueViolation = "23505"

// Store is the Postgres backed transaction and chart store.
type Store struct {
	Db *pgxpool.Pool
}

func NewStore(ctx context.Context, connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse database config")
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create connection pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "unable to ping database")
	}

	return &Store{Db: pool}, nil
}

func (s *Store) Close() {
	s.Db.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.Db.Exec(ctx, Schema)
	if err != nil {
		return errors.Wrap(err, "applying schema")
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Db.Ping(ctx)
}

func (s *Store) Insert(ctx context.Context, tx *domain.Transaction) error {
	_, err := s.Db.Exec(ctx,
		`INSERT INTO transactions
			(transaction_id, source_account, destination_account, amount, currency, status, created_at, processed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		tx.TransactionID, tx.SourceAccount, tx.DestinationAccount, tx.Amount, tx.Currency,
		string(tx.Status), tx.CreatedAt, tx.ProcessedAt, tx.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicate
		}
		return errors.Wrapf(err, "inserting transaction [%s]", tx.TransactionID)
	}
	return nil
}

// Get retrieves a transaction by id.
func (s *Store) Get(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	var t domain.Transaction
	var status string
	err := s.Db.QueryRow(ctx,
		`SELECT transaction_id, source_account, destination_account, amount, currency, status, created_at, processed_at, updated_at
		FROM transactions WHERE transaction_id = $1`,
		transactionID,
	).Scan(&t.TransactionID, &t.SourceAccount, &t.DestinationAccount, &t.Amount, &t.Currency,
		&status, &t.CreatedAt, &t.ProcessedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "getting transaction [%s]", transactionID)
	}
	t.Status = domain.Status(status)
	return &t, nil
}

func (s *Store) Update(ctx context.Context, transactionID string, update domain.TransactionUpdate) error {
	tag, err := s.Db.Exec(ctx,
		`UPDATE transactions
		SET status = $2, processed_at = COALESCE($3, processed_at), updated_at = $4
		WHERE transaction_id = $1`,
		transactionID, string(update.Status), update.ProcessedAt, update.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "updating transaction [%s]", transactionID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ChartStore returns a view of the store that serves user charts.
func (s *Store) ChartStore() *PostgresChartStore {
	return &PostgresChartStore{Db: s.Db}
}

// PostgresChartStore shares the pool of the transaction store.
type PostgresChartStore struct {
	Db *pgxpool.Pool
}

func (s *PostgresChartStore) Ping(ctx context.Context) error {
	return s.Db.Ping(ctx)
}

func (s *PostgresChartStore) Upsert(ctx context.Context, chart *domain.UserChart) error {
	data, err := json.Marshal(chart.ChartData)
	if err != nil {
		return errors.Wrap(err, "marshalling chart data")
	}

	_, err = s.Db.Exec(ctx,
		`INSERT INTO user_charts (email, chart_data, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET chart_data = EXCLUDED.chart_data, updated_at = EXCLUDED.updated_at`,
		chart.Email, data, chart.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "upserting chart")
	}
	return nil
}

func (s *PostgresChartStore) Get(ctx context.Context, email string) (*domain.UserChart, error) {
	chart := domain.UserChart{Email: email}
	var data []byte
	err := s.Db.QueryRow(ctx,
		"SELECT chart_data, updated_at FROM user_charts WHERE email = $1", email,
	).Scan(&data, &chart.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "getting chart")
	}

	if err := json.Unmarshal(data, &chart.ChartData); err != nil {
		return nil, errors.Wrap(err, "unmarshalling chart data")
	}
	return &chart, nil
}
