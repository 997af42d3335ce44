package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/punchamoorthee/txnrelay/internal/domain"
	"github.com/twmb/franz-go/pkg/kgo"
)

const TypeTransactionProcessed = "transaction.processed"

// StatusChanged is published after a transaction reaches a new status.
type StatusChanged struct {
	Type          string        `json:"type"`
	TransactionID string        `json:"transaction_id"`
	Status        domain.Status `json:"status"`
	ProcessedAt   *time.Time    `json:"processed_at,omitempty"`
}

type Publisher interface {
	PublishStatusChanged(ctx context.Context, event StatusChanged) error
}

// NoopPublisher is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishStatusChanged(context.Context, StatusChanged) error {
	return nil
}

type KafkaProducer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaPublisher writes events keyed by transaction id so that all events of
// one transaction land on the same partition.
type KafkaPublisher struct {
	kcl   KafkaProducer
	topic string
}

func NewKafkaPublisher(kcl KafkaProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{kcl: kcl, topic: topic}
}

func (kp *KafkaPublisher) PublishStatusChanged(ctx context.Context, event StatusChanged) error {
	record, err := createRecord(kp.topic, event)
	if err != nil {
		return errors.Wrap(err, "creating status changed record")
	}

	err = kp.kcl.ProduceSync(ctx, record).FirstErr()
	if err != nil {
		return errors.Wrapf(err, "producing status changed record for [%s]", event.TransactionID)
	}
	return nil
}

func createRecord(topic string, event StatusChanged) (*kgo.Record, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling to json")
	}

	return &kgo.Record{
		Topic: topic,
		Key:   []byte(event.TransactionID),
		Value: payload,
	}, nil
}
