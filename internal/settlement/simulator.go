package settlement

import (
	"context"
	"time"
)

// Simulator stands in for the external settlement call made before a
// transaction can be marked as processed.
type Simulator interface {
	Settle(ctx context.Context, transactionID string) error
}

// DelaySimulator waits a fixed delay. It returns early with the context error
// when ctx is cancelled.
type DelaySimulator struct {
	Delay time.Duration
}

func (d DelaySimulator) Settle(ctx context.Context, _ string) error {
	timer := time.NewTimer(d.Delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type InstantSimulator struct{}

func (InstantSimulator) Settle(context.Context, string) error {
	return nil
}

type FailingSimulator struct {
	Err error
}

func (f FailingSimulator) Settle(context.Context, string) error {
	return f.Err
}
