package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/punchamoorthee/txnrelay/internal/domain"
	"github.com/punchamoorthee/txnrelay/internal/store"
)

type ChartService struct {
	store store.ChartStore
	clock func() time.Time
}

func NewChartService(chartStore store.ChartStore, clock func() time.Time) *ChartService {
	if clock == nil {
		clock = time.Now
	}
	return &ChartService{store: chartStore, clock: clock}
}

// Handle saves or loads the chart of a user. Saving replaces the whole blob.
// Loading a chart that was never saved is not an error.
func (s *ChartService) Handle(ctx context.Context, req domain.UserChartRequest) (*domain.UserChartResponse, error) {
	email := domain.NormalizeEmail(req.Email)
	if !domain.ValidEmail(email) {
		return nil, invalid("Valid email is required")
	}

	switch req.Action {
	case domain.ChartActionSave:
		return s.save(ctx, email, req.ChartData)
	case domain.ChartActionGet:
		return s.get(ctx, email)
	default:
		return nil, invalid("invalid action: use 'save' or 'get'")
	}
}

func (s *ChartService) save(ctx context.Context, email string, data *domain.ChartData) (*domain.UserChartResponse, error) {
	if data == nil {
		return nil, invalid("Chart data is required for save action")
	}
	if !data.Complete() {
		return nil, invalid("Invalid chart data structure")
	}

	err := s.store.Upsert(ctx, &domain.UserChart{
		Email:     email,
		ChartData: *data,
		UpdatedAt: s.clock().UTC(),
	})
	if err != nil {
		return nil, internal("saving chart", err)
	}

	return &domain.UserChartResponse{Success: true, Message: "Chart data saved successfully"}, nil
}

func (s *ChartService) get(ctx context.Context, email string) (*domain.UserChartResponse, error) {
	chart, err := s.store.Get(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return &domain.UserChartResponse{Success: true}, nil
	}
	if err != nil {
		return nil, internal("getting chart", err)
	}

	updatedAt := chart.UpdatedAt
	return &domain.UserChartResponse{
		Success:     true,
		ChartData:   &chart.ChartData,
		LastUpdated: &updatedAt,
	}, nil
}
