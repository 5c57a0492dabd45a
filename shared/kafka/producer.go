package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"comicbot/shared/types"

	"github.com/IBM/sarama"
	"github.com/apex/log"
	"github.com/cenkalti/backoff"
)

// maxReplyBytes leaves room for a base64 image in a reply event
const maxReplyBytes = 32 << 20

// Publisher sends reply events to the reply topic
type Publisher interface {
	Publish(ctx context.Context, ev types.ReplyEvent) error
}

// Producer publishes reply events keyed by chat id
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducer creates a synchronous producer for topic
func NewProducer(brokers []string, topic string) (*Producer, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_6_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.MaxMessageBytes = maxReplyBytes
	cfg.Producer.Retry.Max = 3

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return NewProducerFrom(p, topic), nil
}

// NewProducerFrom wraps an existing sarama producer
func NewProducerFrom(p sarama.SyncProducer, topic string) *Producer {
	return &Producer{producer: p, topic: topic}
}

// Publish sends ev. Events of one chat share a partition, so they keep
// their order.
func (p *Producer) Publish(ctx context.Context, ev types.ReplyEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode reply event: %w", err)
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.ChatID),
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		return fmt.Errorf("failed to publish reply event: %w", err)
	}
	return nil
}

// Close flushes and closes the producer
func (p *Producer) Close() error {
	return p.producer.Close()
}

// ConnectWithRetry retries connect with exponential backoff for up to
// maxElapsed. The first interval is a second, or a quarter of maxElapsed
// when that is shorter.
func ConnectWithRetry[T any](what string, maxElapsed time.Duration, logger log.Interface, connect func() (T, error)) (T, error) {
	if logger == nil {
		logger = log.Log
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = time.Second
	if q := maxElapsed / 4; q > 0 && q < expBackoff.InitialInterval {
		expBackoff.InitialInterval = q
	}
	expBackoff.MaxElapsedTime = maxElapsed

	var out T
	operation := func() error {
		var err error
		out, err = connect()
		if err != nil {
			logger.WithError(err).WithField("target", what).Warn("failed to connect to kafka, will retry")
			return err
		}
		return nil
	}

	if err := backoff.Retry(operation, expBackoff); err != nil {
		var zero T
		return zero, fmt.Errorf("failed to connect %s to kafka after retries: %w", what, err)
	}
	return out, nil
}
