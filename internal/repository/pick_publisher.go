package repository

import (
	"context"
	"time"

	"FinRank/internal/domain/models"
	pkgkafka "FinRank/pkg/kafka"

	"github.com/segmentio/kafka-go"
)

// PickEvent is the Kafka payload for one pick.
type PickEvent struct {
	RunID string    `json:"run_id"`
	List  string    `json:"list"`
	Rank  int       `json:"rank"`
	AsOf  time.Time `json:"as_of"`
	models.Pick
}

// KafkaPickPublisher publishes each pick keyed by ticker, one batch per list.
type KafkaPickPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaPickPublisher(p *pkgkafka.Producer, topic string) *KafkaPickPublisher {
	return &KafkaPickPublisher{producer: p, topic: topic}
}

func (k *KafkaPickPublisher) PublishPicks(ctx context.Context, runID string, list models.PickList) error {
	msgs := make([]pkgkafka.Message, len(list.Picks))
	for i, p := range list.Picks {
		msgs[i] = pkgkafka.Message{
			Key: []byte(p.Ticker),
			Value: PickEvent{
				RunID: runID,
				List:  list.Name,
				Rank:  i + 1,
				AsOf:  list.AsOf,
				Pick:  p,
			},
			Headers: []kafka.Header{
				{Key: "run_id", Value: []byte(runID)},
				{Key: "list", Value: []byte(list.Name)},
			},
		}
	}
	return k.producer.PublishBatch(ctx, k.topic, msgs)
}

func (k *KafkaPickPublisher) Close() error { return k.producer.Close() }
