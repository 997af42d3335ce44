package store

import (
	"context"

	"github.com/pkg/errors"
	"github.com/punchamoorthee/txnrelay/internal/domain"
)

var (
	ErrNotFound  = errors.New("store resource not found")
	ErrDuplicate = errors.New("store resource already exists")
)

// TransactionStore persists transactions keyed by transaction id.
type TransactionStore interface {
	// Insert fails with ErrDuplicate if the id already exists.
	Insert(ctx context.Context, tx *domain.Transaction) error
	// Get fails with ErrNotFound if the id is unknown.
	Get(ctx context.Context, transactionID string) (*domain.Transaction, error)
	// Update fails with ErrNotFound if the id is unknown.
	Update(ctx context.Context, transactionID string, update domain.TransactionUpdate) error
	Ping(ctx context.Context) error
}

// ChartStore persists one chart blob per normalized email.
type ChartStore interface {
	// Upsert replaces any existing chart for the email.
	Upsert(ctx context.Context, chart *domain.UserChart) error
	// Get fails with ErrNotFound if no chart was saved for the email.
	Get(ctx context.Context, email string) (*domain.UserChart, error)
	Ping(ctx context.Context) error
}
