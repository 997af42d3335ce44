package service

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/punchamoorthee/txnrelay/internal/domain"
	"github.com/punchamoorthee/txnrelay/internal/store"
)

type QueryService struct {
	store store.TransactionStore
}

func NewQueryService(txStore store.TransactionStore) *QueryService {
	return &QueryService{store: txStore}
}

// Get returns the transaction with its amount in major units.
func (s *QueryService) Get(ctx context.Context, transactionID string) (*domain.TransactionResponse, error) {
	if strings.TrimSpace(transactionID) == "" {
		return nil, invalid("transaction id is required")
	}

	tx, err := s.store.Get(ctx, transactionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Message: "Transaction not found"}
	}
	if err != nil {
		return nil, internal("getting transaction", err)
	}

	resp := domain.NewTransactionResponse(tx)
	return &resp, nil
}
